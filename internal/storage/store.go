// Package storage contains the store-agnostic connector contracts used by the
// job runner, the query renderer for fetches, and the backend registry.
//
// Backends (mysql, postgres, sqlite, mssql, duckdb) register a Factory for
// their kind at init time; callers obtain a Store through New or WithStore
// without importing a backend directly. Import internal/storage/all to enable
// every built-in backend.
package storage

import (
	"context"

	"go.uber.org/zap"

	"logreduce/internal/ddl"
	"logreduce/internal/records"
	"logreduce/internal/staging"
)

// Store is a connection to one record store.
type Store interface {
	// Kind is the registry kind the store was opened with.
	Kind() string

	// ListTables returns the base tables of dataset, sorted by name.
	ListTables(ctx context.Context, dataset string) ([]string, error)

	// Fetch runs q and materializes every matching row.
	Fetch(ctx context.Context, q Query) ([]records.Record, error)

	// Begin starts a unit of work for creating and loading target tables.
	Begin(ctx context.Context) (Tx, error)

	// Transactional reports whether a Tx spanning several tables is atomic.
	// Stores whose DDL commits implicitly return false.
	Transactional() bool

	Close() error
}

// Tx creates and loads target relations.
type Tx interface {
	CreateTable(ctx context.Context, def ddl.TableDef) error
	BulkLoad(ctx context.Context, def ddl.TableDef, art *staging.Artifact) (int64, error)
	Commit() error
	Rollback() error
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registry key, e.g. "mysql".
	Kind string

	// DSN is passed to the backend driver.
	DSN string

	// Attach maps dataset names to database files for backends where a
	// dataset is a separate database (SQLite ATTACH).
	Attach map[string]string

	// Logger receives load progress; nil discards it.
	Logger *zap.Logger
}
