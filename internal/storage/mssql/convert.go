package mssql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"logreduce/internal/ddl"
	"logreduce/internal/records"
)

// converter turns one staged text field into the Go value the bulk-copy
// encoder accepts for the target column. Staged NULLs arrive as nil and
// stay nil.
type converter func(s string) (any, error)

// converters returns one converter per artifact column, chosen from the
// SQLType the column is declared with in def. Columns the definition does
// not know, and character or decimal types, are passed through as text.
func converters(def ddl.TableDef, columns []string) []converter {
	types := make(map[string]string, len(def.Columns))
	for _, c := range def.Columns {
		types[c.Name] = c.SQLType
	}
	out := make([]converter, len(columns))
	for i, name := range columns {
		out[i] = converterFor(types[name])
	}
	return out
}

func converterFor(sqlType string) converter {
	base := strings.ToUpper(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = strings.TrimSpace(base[:i])
	}
	switch base {
	case "TINYINT", "SMALLINT", "INT", "INTEGER", "BIGINT":
		return func(s string) (any, error) { return strconv.ParseInt(strings.TrimSpace(s), 10, 64) }
	case "BIT", "BOOL", "BOOLEAN":
		return func(s string) (any, error) { return strconv.ParseBool(strings.TrimSpace(s)) }
	case "REAL", "FLOAT":
		return func(s string) (any, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) }
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET":
		return parseTime
	default:
		return func(s string) (any, error) { return s, nil }
	}
}

// parseTime accepts the staging time layout and a bare date.
func parseTime(s string) (any, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(records.TimeLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return nil, fmt.Errorf("invalid time %q (want %s)", s, records.TimeLayout)
}

// convertRow converts row in place.
func convertRow(conv []converter, columns []string, row []any) error {
	for i, v := range row {
		s, ok := v.(string)
		if !ok || i >= len(conv) {
			continue
		}
		c, err := conv[i](s)
		if err != nil {
			return fmt.Errorf("column %s: %w", columns[i], err)
		}
		row[i] = c
	}
	return nil
}
