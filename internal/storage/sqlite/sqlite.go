// Package sqlite implements a SQLite-backed storage.Store using
// database/sql and modernc.org/sqlite. A dataset is an attached database:
// "main" (the DSN itself) or a name configured through Config.Attach.
//
// SQLite has no dedicated bulk-load API; staged rows are inserted with a
// prepared statement inside the caller's transaction.
package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"logreduce/internal/ddl"
	"logreduce/internal/storage/sqlstore"
)

// Kind is the registry key of this backend.
const Kind = "sqlite"

// Config holds SQLite store configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:logs.db?_pragma=busy_timeout(5000)"
	//   "logs.db"
	DSN string

	// Attach maps dataset names to database files attached at open.
	Attach map[string]string

	Logger *zap.Logger
}

// Dialect is the SQLite flavour of the shared SQL connector.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Kind:          Kind,
		Quote:         ddl.QuoteDouble,
		Transactional: true,
		ListTables:    listTables,
	}
}

func listTables(dataset string) (string, []any) {
	if dataset == "" {
		dataset = "main"
	}
	return "SELECT name FROM " + ddl.QuoteDouble(dataset) + ".sqlite_master " +
		"WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name", nil
}

// NewStore opens the database and attaches every configured dataset.
//
// The pool is limited to one connection: ATTACH is per connection, and a
// single writer is what SQLite supports anyway.
func NewStore(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	var opts []sqlstore.Option
	if cfg.Logger != nil {
		opts = append(opts, sqlstore.WithLogger(cfg.Logger))
	}
	s, err := sqlstore.Open(ctx, "sqlite", cfg.DSN, Dialect(), opts...)
	if err != nil {
		return nil, err
	}
	db := s.DB()
	db.SetMaxOpenConns(1)

	names := make([]string, 0, len(cfg.Attach))
	for name := range cfg.Attach {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(name) == "" || name == "main" {
			_ = s.Close()
			return nil, fmt.Errorf("sqlite: invalid attach name %q", name)
		}
		stmt := "ATTACH DATABASE ? AS " + ddl.QuoteDouble(name)
		if _, err := db.ExecContext(ctx, stmt, cfg.Attach[name]); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("sqlite: attach %s: %w", name, err)
		}
	}
	return s, nil
}
