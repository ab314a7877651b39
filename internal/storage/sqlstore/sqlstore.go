// Package sqlstore is the shared database/sql implementation of storage.Store
// used by the MySQL, SQLite, MSSQL and DuckDB backends. Each backend supplies
// a Dialect describing identifier quoting, base-table listing and, where the
// driver offers one, a native bulk-load path.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"logreduce/internal/ddl"
	"logreduce/internal/records"
	"logreduce/internal/staging"
	"logreduce/internal/storage"
)

// DefaultBatchSize is the number of staged rows per insert batch.
const DefaultBatchSize = 1000

// LoadFunc bulk-loads a staged artifact into def inside tx and returns the
// number of rows loaded.
type LoadFunc func(ctx context.Context, tx *sql.Tx, def ddl.TableDef, art *staging.Artifact) (int64, error)

// Dialect describes backend specifics.
type Dialect struct {
	Kind  string
	Quote ddl.Quoter

	// Transactional reports whether DDL and loads of several tables can share
	// one atomic transaction.
	Transactional bool

	// ListTables renders the query listing base tables of a dataset. The
	// query returns a single name column.
	ListTables func(dataset string) (string, []any)

	// Placeholder renders the i-th (1-based) bind parameter; nil means "?".
	Placeholder func(i int) string

	// Load is the native bulk path; nil falls back to prepared INSERTs.
	Load LoadFunc
}

// Store implements storage.Store over a *sql.DB.
type Store struct {
	db        *sql.DB
	d         Dialect
	log       *zap.Logger
	batchSize int
}

var _ storage.Store = (*Store)(nil)

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for load progress.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithBatchSize sets the insert batch size of the fallback load path.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New wraps an open database handle.
func New(db *sql.DB, d Dialect, opts ...Option) *Store {
	s := &Store{db: db, d: d, log: zap.NewNop(), batchSize: DefaultBatchSize}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens driver/dsn, pings it and wraps the handle.
func Open(ctx context.Context, driver, dsn string, d Dialect, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", d.Kind)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Kind, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Kind, err)
	}
	return New(db, d, opts...), nil
}

// DB exposes the underlying handle for backend-specific setup.
func (s *Store) DB() *sql.DB { return s.db }

// Kind implements storage.Store.
func (s *Store) Kind() string { return s.d.Kind }

// Transactional implements storage.Store.
func (s *Store) Transactional() bool { return s.d.Transactional }

// Close implements storage.Store.
func (s *Store) Close() error { return s.db.Close() }

// ListTables implements storage.Store.
func (s *Store) ListTables(ctx context.Context, dataset string) ([]string, error) {
	query, args := s.d.ListTables(dataset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: list tables in %s: %w", s.d.Kind, dataset, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%s: scan table name: %w", s.d.Kind, err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: list tables in %s: %w", s.d.Kind, dataset, err)
	}
	sort.Strings(out)
	return out, nil
}

// Fetch implements storage.Store. Driver []byte values are returned as
// strings.
func (s *Store) Fetch(ctx context.Context, q storage.Query) ([]records.Record, error) {
	query := q.SQL(s.d.Quote)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch %s: %w", s.d.Kind, ddl.FQN(q.Dataset, q.Table), err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: columns: %w", s.d.Kind, err)
	}

	var out []records.Record
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.d.Kind, err)
		}
		rec := make(records.Record, len(cols))
		for i, c := range cols {
			rec[c] = normalize(values[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: fetch %s: %w", s.d.Kind, ddl.FQN(q.Dataset, q.Table), err)
	}
	return out, nil
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Begin implements storage.Store.
func (s *Store) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", s.d.Kind, err)
	}
	return &Tx{tx: tx, s: s}, nil
}

// Tx implements storage.Tx over a *sql.Tx.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

var _ storage.Tx = (*Tx)(nil)

// CreateTable implements storage.Tx.
func (t *Tx) CreateTable(ctx context.Context, def ddl.TableDef) error {
	stmt, err := ddl.BuildCreateTableSQL(def, ddl.WithQuoter(t.s.d.Quote))
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: create %s: %w", t.s.d.Kind, def.FQN, err)
	}
	return nil
}

// BulkLoad implements storage.Tx.
func (t *Tx) BulkLoad(ctx context.Context, def ddl.TableDef, art *staging.Artifact) (int64, error) {
	if t.s.d.Load != nil {
		return t.s.d.Load(ctx, t.tx, def, art)
	}
	return t.insertLoad(ctx, def, art)
}

func (t *Tx) insertLoad(ctx context.Context, def ddl.TableDef, art *staging.Artifact) (int64, error) {
	stmt, err := t.tx.PrepareContext(ctx, InsertSQL(t.s.d, def.FQN, art.Columns))
	if err != nil {
		return 0, fmt.Errorf("%s: prepare insert: %w", t.s.d.Kind, err)
	}
	defer stmt.Close()

	return storage.LoadArtifact(ctx, t.s.log, art, t.s.batchSize,
		func(ctx context.Context, _ []string, rows [][]any) (int64, error) {
			var inserted int64
			for _, row := range rows {
				if _, err := stmt.ExecContext(ctx, row...); err != nil {
					return inserted, fmt.Errorf("%s: insert: %w", t.s.d.Kind, err)
				}
				inserted++
			}
			return inserted, nil
		})
}

// Commit implements storage.Tx.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", t.s.d.Kind, err)
	}
	return nil
}

// Rollback implements storage.Tx. Rolling back a finished transaction is a
// no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: rollback: %w", t.s.d.Kind, err)
	}
	return nil
}

// InsertSQL renders INSERT INTO <fqn> (<cols>) VALUES (<placeholders>).
func InsertSQL(d Dialect, fqn string, columns []string) string {
	cols := make([]string, len(columns))
	ph := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = c
		if d.Quote != nil {
			cols[i] = d.Quote(c)
		}
		ph[i] = "?"
		if d.Placeholder != nil {
			ph[i] = d.Placeholder(i + 1)
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		ddl.QuoteFQN(fqn, d.Quote), strings.Join(cols, ", "), strings.Join(ph, ", "))
}

// InfoSchemaTables renders a base-table listing over information_schema with
// the given placeholder for the schema name.
func InfoSchemaTables(placeholder string) func(dataset string) (string, []any) {
	return func(dataset string) (string, []any) {
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = " + placeholder +
			" AND table_type = 'BASE TABLE' ORDER BY table_name", []any{dataset}
	}
}
