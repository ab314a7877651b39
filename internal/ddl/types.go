package ddl

import "strings"

// ColumnDef describes a single column of a target relation.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target store type, emitted verbatim (e.g., MEDIUMTEXT, TIMESTAMP)
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the fully-qualified table name (FQN) and an ordered list of
// columns. The FQN is expected in dotted form (e.g., "dataset.table"). The
// dataset never contains a dot; the table name may.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// ColumnNames returns the column names in declared order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Quoter quotes a single identifier for a given dialect.
type Quoter func(ident string) string

// FQN joins a dataset and a table name. An empty dataset yields the bare
// table name.
func FQN(dataset, table string) string {
	if dataset == "" {
		return table
	}
	return dataset + "." + table
}

// SplitFQN splits "dataset.table" at the first dot. A name without a dot has
// an empty dataset.
func SplitFQN(fqn string) (dataset, table string) {
	i := strings.IndexByte(fqn, '.')
	if i < 0 {
		return "", fqn
	}
	return fqn[:i], fqn[i+1:]
}

// QuoteFQN quotes the dataset and table of fqn with q. A nil q returns fqn
// as-is.
func QuoteFQN(fqn string, q Quoter) string {
	if q == nil {
		return fqn
	}
	dataset, table := SplitFQN(fqn)
	if dataset == "" {
		return q(table)
	}
	return q(dataset) + "." + q(table)
}

// QuoteWith returns a Quoter that wraps identifiers in open/close and doubles
// any embedded close character.
func QuoteWith(open, close string) Quoter {
	return func(ident string) string {
		return open + strings.ReplaceAll(ident, close, close+close) + close
	}
}

// Common quoters.
var (
	QuoteBacktick = QuoteWith("`", "`")
	QuoteDouble   = QuoteWith(`"`, `"`)
	QuoteBracket  = QuoteWith("[", "]")
)
