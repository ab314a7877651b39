// Package duckdb provides the DuckDB-backed storage.Store for local
// analytical targets. A dataset is a schema ("main" by default); staged rows
// are inserted with a prepared statement inside the caller's transaction.
package duckdb

import (
	"context"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	"go.uber.org/zap"

	"logreduce/internal/ddl"
	"logreduce/internal/storage/sqlstore"
)

// Kind is the registry key of this backend.
const Kind = "duckdb"

// Config holds DuckDB store configuration.
type Config struct {
	// Path is the database file; empty or ":memory:" opens an in-memory
	// database.
	Path   string
	Logger *zap.Logger
}

// Dialect is the DuckDB flavour of the shared SQL connector.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Kind:          Kind,
		Quote:         ddl.QuoteDouble,
		Transactional: true,
		ListTables: func(dataset string) (string, []any) {
			if dataset == "" {
				dataset = "main"
			}
			return sqlstore.InfoSchemaTables("?")(dataset)
		},
	}
}

// NewStore opens the database at cfg.Path.
func NewStore(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = ":memory:"
	}
	var opts []sqlstore.Option
	if cfg.Logger != nil {
		opts = append(opts, sqlstore.WithLogger(cfg.Logger))
	}
	return sqlstore.Open(ctx, "duckdb", path, Dialect(), opts...)
}
