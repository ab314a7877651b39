package mssql

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"logreduce/internal/ddl"
	"logreduce/internal/records"
	"logreduce/internal/staging"
)

// TestConvertRow_StagedTextToColumnTypes stages typed values, reads them back
// as text and converts them to what the bulk-copy encoder expects for each
// declared column type.
func TestConvertRow_StagedTextToColumnTypes(t *testing.T) {
	t.Parallel()

	def := ddl.TableDef{FQN: "dbo.general_log_1", Columns: []ddl.ColumnDef{
		{Name: "event_time", SQLType: "DATETIME2(6)"},
		{Name: "thread_id", SQLType: "BIGINT"},
		{Name: "server_id", SQLType: "int"},
		{Name: "ok", SQLType: "BIT"},
		{Name: "score", SQLType: "FLOAT"},
		{Name: "day", SQLType: "DATE"},
		{Name: "query", SQLType: "NVARCHAR(MAX)"},
		{Name: "cost", SQLType: "DECIMAL(10,2)"},
	}}
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	art, err := staging.Write(t.TempDir(), "t", def.ColumnNames(), [][]any{
		{ts, int64(42), 7, true, 1.5, "2024-01-02", "SELECT 1", "12.50"},
		{nil, nil, nil, nil, nil, nil, nil, nil},
	})
	if err != nil {
		t.Fatalf("staging.Write: %v", err)
	}
	defer art.Remove()
	rows, err := art.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	conv := converters(def, art.Columns)
	for _, row := range rows {
		if err := convertRow(conv, art.Columns, row); err != nil {
			t.Fatalf("convertRow: %v", err)
		}
	}

	want := []any{ts, int64(42), int64(7), true, 1.5, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "SELECT 1", "12.50"}
	if !reflect.DeepEqual(rows[0], want) {
		t.Fatalf("row 0 = %#v\nwant %#v", rows[0], want)
	}
	for i, v := range rows[1] {
		if v != nil {
			t.Fatalf("row 1 col %d = %#v, want nil", i, v)
		}
	}
}

// TestConvertRow_TimeWithoutZone checks the staging time layout, which has
// no zone suffix, is accepted.
func TestConvertRow_TimeWithoutZone(t *testing.T) {
	t.Parallel()
	v, err := parseTime(records.Text(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("parseTime: %v", err)
	}
	if got := v.(time.Time); !got.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("parseTime = %v", got)
	}
}

// TestConvertRow_RejectsBadField names the column that failed.
func TestConvertRow_RejectsBadField(t *testing.T) {
	t.Parallel()
	def := ddl.TableDef{Columns: []ddl.ColumnDef{{Name: "thread_id", SQLType: "BIGINT"}}}
	cols := def.ColumnNames()
	err := convertRow(converters(def, cols), cols, []any{"seven"})
	if err == nil || !strings.Contains(err.Error(), "column thread_id") {
		t.Fatalf("err = %v, want column thread_id error", err)
	}
}
