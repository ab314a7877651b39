package stages

import "strings"

// ColumnStringValues renders "column IN ('a', 'b')". Single quotes inside a
// value are doubled.
func ColumnStringValues(column string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return column + " IN (" + strings.Join(quoted, ", ") + ")"
}

// ColumnValue renders "column = value" with value emitted verbatim, so it may
// be a number or any SQL expression.
func ColumnValue(column, value string) string {
	return column + " = " + value
}

// ColumnString renders "column = 'value'" with single quotes doubled.
func ColumnString(column, value string) string {
	return column + " = '" + strings.ReplaceAll(value, "'", "''") + "'"
}
