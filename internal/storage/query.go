package storage

import (
	"strings"

	"logreduce/internal/ddl"
)

// Query describes a fetch of one source table.
type Query struct {
	Dataset string
	Table   string

	// Columns to select; empty selects every column.
	Columns []string

	// Where holds opaque filter clauses. Each is parenthesized and the
	// clauses are joined with AND.
	Where []string

	// OrderBy is an ORDER BY body without the keywords, e.g. "event_time DESC".
	OrderBy string
}

// WhereClause renders the conjunction of q.Where, or "" when there is none.
func (q Query) WhereClause() string {
	parts := make([]string, 0, len(q.Where))
	for _, w := range q.Where {
		if w = strings.TrimSpace(w); w != "" {
			parts = append(parts, "("+w+")")
		}
	}
	return strings.Join(parts, " AND ")
}

// OrderByClause returns the trimmed sort expression, or "".
func (q Query) OrderByClause() string { return strings.TrimSpace(q.OrderBy) }

// SQL renders a SELECT statement using quote for identifiers.
func (q Query) SQL(quote ddl.Quoter) string {
	ident := func(s string) string {
		if quote == nil {
			return s
		}
		return quote(s)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		sb.WriteByte('*')
	} else {
		for i, c := range q.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(ident(c))
		}
	}
	sb.WriteString(" FROM ")
	if q.Dataset != "" {
		sb.WriteString(ident(q.Dataset))
		sb.WriteByte('.')
	}
	sb.WriteString(ident(q.Table))
	if w := q.WhereClause(); w != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(w)
	}
	if o := q.OrderByClause(); o != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(o)
	}
	return sb.String()
}
