// Package records defines the row representation that flows through the
// pipeline: a column-name to value mapping fetched from the source store.
//
// A Record is treated as an immutable snapshot. Stages never mutate the map
// they receive; With returns a copy carrying the new columns merged on top,
// so an earlier snapshot is never changed by a later stage.
package records

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Record is one row of source data keyed by column name. Values are whatever
// the store driver produced: string, int64, float64, time.Time, bool or nil.
type Record map[string]any

// Get returns the value stored under col and whether the column is present.
func (r Record) Get(col string) (any, bool) {
	v, ok := r[col]
	return v, ok
}

// String returns the textual value of col, or "" when absent or NULL.
func (r Record) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	return Text(v)
}

// Has reports whether col is present on the record (even if NULL).
func (r Record) Has(col string) bool {
	_, ok := r[col]
	return ok
}

// Columns returns the record's column names in lexical order.
func (r Record) Columns() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// With returns a copy of r with cols[i] set to vals[i], replacing any prior
// value under the same name. It panics if the slices differ in length; callers
// validate lengths before merging.
func (r Record) With(cols []string, vals []any) Record {
	if len(cols) != len(vals) {
		panic(fmt.Sprintf("records: With called with %d columns and %d values", len(cols), len(vals)))
	}
	out := make(Record, len(r)+len(cols))
	for k, v := range r {
		out[k] = v
	}
	for i, c := range cols {
		out[c] = vals[i]
	}
	return out
}

// Project returns the values of cols in order. Absent columns yield nil.
func (r Record) Project(cols []string) []any {
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = r[c]
	}
	return out
}

// TimeLayout is used when a time.Time is rendered as text.
const TimeLayout = "2006-01-02 15:04:05.999999"

// Text renders v the way it is written to a staging artifact. nil renders as
// "" here; the staging writer handles NULL separately.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(TimeLayout)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}
