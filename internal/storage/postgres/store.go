// Package postgres implements the Postgres-backed storage.Store using pgx v5.
// A dataset is a schema; staged artifacts are streamed with COPY FROM STDIN in
// text format, which is the staging file format verbatim.
package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"logreduce/internal/ddl"
	"logreduce/internal/records"
	"logreduce/internal/staging"
	"logreduce/internal/storage"
)

// Kind is the registry key of this backend.
const Kind = "postgres"

// Config holds Postgres store configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Store is a Postgres-backed implementation of storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store and returns a close function for cleanup.
func NewStore(ctx context.Context, cfg Config) (*Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", pgError(err))
	}
	return &Store{pool: pool}, pool.Close, nil
}

// Kind implements storage.Store.
func (s *Store) Kind() string { return Kind }

// Transactional implements storage.Store; Postgres DDL is transactional.
func (s *Store) Transactional() bool { return true }

// ListTables implements storage.Store.
func (s *Store) ListTables(ctx context.Context, dataset string) ([]string, error) {
	rows, err := s.pool.Query(ctx, listTablesSQL, dataset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables in %s: %w", dataset, pgError(err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list tables in %s: %w", dataset, pgError(err))
	}
	return names, nil
}

const listTablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`

// Fetch implements storage.Store.
func (s *Store) Fetch(ctx context.Context, q storage.Query) ([]records.Record, error) {
	rows, err := s.pool.Query(ctx, q.SQL(ddl.QuoteDouble))
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch %s: %w", ddl.FQN(q.Dataset, q.Table), pgError(err))
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []records.Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: decode row: %w", err)
		}
		rec := make(records.Record, len(fields))
		for i, f := range fields {
			v, err := pgValue(vals[i])
			if err != nil {
				return nil, fmt.Errorf("postgres: decode %s: %w", f.Name, err)
			}
			rec[f.Name] = v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch %s: %w", ddl.FQN(q.Dataset, q.Table), pgError(err))
	}
	return out, nil
}

// pgValue reduces a value decoded by pgx to one records.Text renders the way
// Postgres reads it back in COPY text format. pgtype values (numeric,
// interval, ...) are unwrapped through driver.Valuer, uuid arrays are
// formatted canonically and decoded json is re-encoded.
func pgValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return v, nil
	case []byte:
		return string(t), nil
	case [16]byte:
		return uuid.UUID(t).String(), nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return nil, err
		}
		if b, ok := dv.([]byte); ok {
			return string(b), nil
		}
		return dv, nil
	default:
		return v, nil
	}
}

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", pgError(err))
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) CreateTable(ctx context.Context, def ddl.TableDef) error {
	stmt, err := ddl.BuildCreateTableSQL(def, ddl.WithQuoter(ddl.QuoteDouble))
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("postgres: create %s: %w", def.FQN, pgError(err))
	}
	return nil
}

func (t *pgTx) BulkLoad(ctx context.Context, def ddl.TableDef, art *staging.Artifact) (int64, error) {
	f, err := os.Open(art.Path)
	if err != nil {
		return 0, fmt.Errorf("postgres: open staging file: %w", err)
	}
	defer f.Close()

	tag, err := t.tx.Conn().PgConn().CopyFrom(ctx, f, CopySQL(def.FQN, art.Columns))
	if err != nil {
		return 0, fmt.Errorf("postgres: copy into %s: %w", def.FQN, pgError(err))
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(context.Background()); err != nil {
		return fmt.Errorf("postgres: commit: %w", pgError(err))
	}
	return nil
}

func (t *pgTx) Rollback() error {
	if err := t.tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rollback: %w", err)
	}
	return nil
}

// CopySQL renders the COPY statement for a staging file. Text format with the
// default tab delimiter and \N null marker matches the staging encoding.
func CopySQL(fqn string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = ddl.QuoteDouble(c)
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN", ddl.QuoteFQN(fqn, ddl.QuoteDouble), strings.Join(cols, ", "))
}

// pgError surfaces the server detail and SQLSTATE of a *pgconn.PgError while
// keeping the original error in the chain.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}
