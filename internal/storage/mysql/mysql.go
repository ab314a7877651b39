// Package mysql provides the MySQL-backed storage.Store. A dataset is a
// database; staged artifacts are bulk-loaded with LOAD DATA LOCAL INFILE.
//
// MySQL commits implicitly on CREATE TABLE, so the store reports itself as
// non-transactional and every table is its own commit unit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"logreduce/internal/ddl"
	"logreduce/internal/staging"
	"logreduce/internal/storage/sqlstore"
)

// Kind is the registry key of this backend.
const Kind = "mysql"

// Config holds MySQL store configuration derived from storage.Config.
type Config struct {
	// DSN in go-sql-driver form, e.g. "user:pass@tcp(host:3306)/general_log".
	DSN    string
	Logger *zap.Logger
}

// Dialect is the MySQL flavour of the shared SQL connector.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Kind:       Kind,
		Quote:      ddl.QuoteBacktick,
		ListTables: sqlstore.InfoSchemaTables("?"),
		Load:       loadData,
	}
}

// NormalizeDSN parses dsn and enables parseTime so DATETIME columns scan as
// time.Time.
func NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// NewStore opens a MySQL store.
func NewStore(ctx context.Context, cfg Config) (*sqlstore.Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	dsn, err := NormalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	var opts []sqlstore.Option
	if cfg.Logger != nil {
		opts = append(opts, sqlstore.WithLogger(cfg.Logger))
	}
	return sqlstore.Open(ctx, "mysql", dsn, Dialect(), opts...)
}

// loadData registers the staging file with the driver for the duration of the
// statement so no other local path is ever readable.
func loadData(ctx context.Context, tx *sql.Tx, def ddl.TableDef, art *staging.Artifact) (int64, error) {
	mysql.RegisterLocalFile(art.Path)
	defer mysql.DeregisterLocalFile(art.Path)

	res, err := tx.ExecContext(ctx, LoadDataSQL(art.Path, def.FQN, art.Columns))
	if err != nil {
		return 0, fmt.Errorf("mysql: load data into %s: %w", def.FQN, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	return n, nil
}

// LoadDataSQL renders the LOAD DATA statement for a staging file. The field
// and line options match the staging format.
func LoadDataSQL(path, fqn string, columns []string) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = ddl.QuoteBacktick(c)
	}
	return fmt.Sprintf(
		"LOAD DATA LOCAL INFILE %s INTO TABLE %s CHARACTER SET utf8mb4 "+
			`FIELDS TERMINATED BY '\t' ESCAPED BY '\\' LINES TERMINATED BY '\n' (%s)`,
		quoteString(path), ddl.QuoteFQN(fqn, ddl.QuoteBacktick), strings.Join(cols, ", "))
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
