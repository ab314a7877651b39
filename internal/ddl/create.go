// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model.
//
// Rendering stays generic: identifiers are emitted as-is unless a Quoter is
// supplied and column types are emitted verbatim (the caller is responsible
// for dialect correctness). Store connectors pass their own Quoter. No IF NOT EXISTS clause is ever rendered: a target
// relation that already exists is an error.
package ddl

import (
	"fmt"
	"strings"
)

type buildOptions struct {
	quote Quoter
}

// Option customizes BuildCreateTableSQL.
type Option func(*buildOptions)

// WithQuoter quotes the table FQN and every column name with q.
func WithQuoter(q Quoter) Option { return func(o *buildOptions) { o.quote = q } }

// BuildCreateTableSQL renders a CREATE TABLE statement from a TableDef.
//
// Rules:
//
//   - t.FQN must be non-empty.
//
//   - Each column must have a non-empty Name and SQLType.
//
//   - A column is rendered as:
//
//     <Name> <SQLType> [NOT NULL]
//
//     where NOT NULL is added when Nullable == false.
//
// Column names must be unique; a duplicate is an error.
func BuildCreateTableSQL(t TableDef, opts ...Option) (string, error) {
	var o buildOptions
	for _, fn := range opts {
		fn(&o)
	}
	ident := func(s string) string {
		if o.quote == nil {
			return s
		}
		return o.quote(s)
	}

	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	seen := make(map[string]struct{}, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		if _, dup := seen[name]; dup {
			return "", fmt.Errorf("ddl: duplicate column %s in table %s", name, fqn)
		}
		seen[name] = struct{}{}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(ident(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", QuoteFQN(fqn, o.quote), strings.Join(cols, ",\n  ")), nil
}
