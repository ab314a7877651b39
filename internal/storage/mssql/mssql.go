// Package mssql implements the Microsoft SQL Server storage.Store on top of
// the shared SQL connector. A dataset is a schema; staged artifacts are
// loaded with the go-mssqldb bulk copy API inside the caller's transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"go.uber.org/zap"

	"logreduce/internal/ddl"
	"logreduce/internal/staging"
	"logreduce/internal/storage"
	"logreduce/internal/storage/sqlstore"
)

// Kind is the registry key of this backend.
const Kind = "mssql"

// DefaultBatchSize is the number of staged rows sent per bulk-copy flush.
const DefaultBatchSize = 5000

// Config holds MSSQL store configuration.
type Config struct {
	DSN    string
	Logger *zap.Logger
}

// Dialect is the SQL Server flavour of the shared SQL connector.
func Dialect(log *zap.Logger) sqlstore.Dialect {
	return sqlstore.Dialect{
		Kind:          Kind,
		Quote:         ddl.QuoteBracket,
		Transactional: true,
		ListTables:    sqlstore.InfoSchemaTables("@p1"),
		Placeholder:   func(i int) string { return "@p" + strconv.Itoa(i) },
		Load:          bulkCopy(log),
	}
}

// NewStore validates the DSN, opens the pool and pings it.
func NewStore(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return sqlstore.Open(ctx, "sqlserver", cfg.DSN, Dialect(log), sqlstore.WithLogger(log))
}

// bulkCopy streams the staged rows into a CopyIn statement and finalizes it
// once the artifact is drained. Staged text is converted to the Go type of
// each declared column first, since the bulk-copy encoder does not cast.
func bulkCopy(log *zap.Logger) sqlstore.LoadFunc {
	return func(ctx context.Context, tx *sql.Tx, def ddl.TableDef, art *staging.Artifact) (int64, error) {
		table := ddl.QuoteFQN(def.FQN, ddl.QuoteBracket)
		stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, art.Columns...))
		if err != nil {
			return 0, fmt.Errorf("mssql: prepare bulk: %w", err)
		}
		defer stmt.Close()

		conv := converters(def, art.Columns)
		var row int64
		_, err = storage.LoadArtifact(ctx, log, art, DefaultBatchSize,
			func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
				for i := range rows {
					row++
					if err := convertRow(conv, art.Columns, rows[i]); err != nil {
						return 0, fmt.Errorf("mssql: bulk row %d: %w", row, err)
					}
					if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
						return 0, fmt.Errorf("mssql: bulk row %d: %w", row, err)
					}
				}
				return int64(len(rows)), nil
			})
		if err != nil {
			return 0, err
		}

		res, err := stmt.ExecContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("mssql: rows affected: %w", err)
		}
		return n, nil
	}
}
