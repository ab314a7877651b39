package mysql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logreduce/internal/ddl"
	"logreduce/internal/staging"
	"logreduce/internal/storage"
	"logreduce/internal/storage/sqlstore"
)

// TestMySQLRegistrationUsesNewStoreHook verifies that the "mysql" backend
// registered in init() passes the DSN through the newStore hook.
func TestMySQLRegistrationUsesNewStoreHook(t *testing.T) {
	orig := newStore
	defer func() { newStore = orig }()

	var got Config
	want := errors.New("no server")
	newStore = func(_ context.Context, cfg Config) (storage.Store, error) {
		got = cfg
		return nil, want
	}

	_, err := storage.New(context.Background(), storage.Config{Kind: Kind, DSN: "u:p@tcp(db:3306)/general_log"})
	require.ErrorIs(t, err, want)
	assert.Equal(t, "u:p@tcp(db:3306)/general_log", got.DSN)
	assert.Contains(t, storage.ListKinds(), Kind)
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("u:p@tcp(db:3306)/general_log")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "/general_log")

	_, err = NormalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestLoadDataSQL(t *testing.T) {
	got := LoadDataSQL("/tmp/it's.tsv", "processed_log.general_log_1", []string{"event_time", "user"})
	assert.Equal(t,
		"LOAD DATA LOCAL INFILE '/tmp/it''s.tsv' INTO TABLE `processed_log`.`general_log_1` CHARACTER SET utf8mb4 "+
			`FIELDS TERMINATED BY '\t' ESCAPED BY '\\' LINES TERMINATED BY '\n' `+"(`event_time`, `user`)",
		got)
}

// TestStore_BulkLoadUsesLoadData verifies the mysql dialect routes BulkLoad
// through LOAD DATA instead of row inserts.
func TestStore_BulkLoadUsesLoadData(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	art, err := staging.Write(t.TempDir(), "general_log_1", []string{"user"}, [][]any{{"alice"}, {"bob"}})
	require.NoError(t, err)
	def := ddl.TableDef{FQN: "processed_log.general_log_1", Columns: []ddl.ColumnDef{{Name: "user", SQLType: "MEDIUMTEXT", Nullable: true}}}

	mock.ExpectBegin()
	mock.ExpectExec(LoadDataSQL(art.Path, def.FQN, art.Columns)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	s := sqlstore.New(db, Dialect())
	assert.False(t, s.Transactional())

	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.BulkLoad(ctx, def, art)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
