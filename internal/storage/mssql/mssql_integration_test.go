//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"logreduce/internal/ddl"
	"logreduce/internal/staging"
)

// getTestDSN reads the MSSQL_TEST_DSN environment variable.
// If it is empty, the caller should skip the test.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

// TestBulkCopyIntegration creates a table and bulk-loads a staged artifact
// inside a transaction that is rolled back afterwards.
func TestBulkCopyIntegration(t *testing.T) {
	dsn := getTestDSN(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := NewStore(ctx, Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	defer st.Close()

	def := ddl.TableDef{
		FQN:     "dbo.logreduce_it_" + time.Now().Format("150405"),
		Columns: []ddl.ColumnDef{
			{Name: "event_time", SQLType: "DATETIME2(6)", Nullable: true},
			{Name: "thread_id", SQLType: "BIGINT", Nullable: true},
			{Name: "user", SQLType: "NVARCHAR(100)", Nullable: true},
		},
	}
	art, err := staging.Write(t.TempDir(), "it", def.ColumnNames(), [][]any{
		{time.Date(2024, 5, 1, 10, 0, 0, 6000, time.UTC), int64(42), "alice"},
		{nil, nil, nil},
	})
	if err != nil {
		t.Fatalf("staging.Write error: %v", err)
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin error: %v", err)
	}
	defer tx.Rollback()

	if err := tx.CreateTable(ctx, def); err != nil {
		t.Fatalf("CreateTable error: %v", err)
	}
	n, err := tx.BulkLoad(ctx, def, art)
	if err != nil {
		t.Fatalf("BulkLoad error: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d rows, want 2", n)
	}
}
