package stages

import (
	"strings"
	"unicode"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// KindClassify derives the statement type of a query.
const KindClassify = "classify"

// TypeOther is the class of statements with an unrecognized leading keyword.
const TypeOther = "OTHER"

var statementTypes = set([]string{
	"ALTER", "BEGIN", "CALL", "COMMIT", "CREATE", "DELETE", "DESCRIBE", "DO",
	"DROP", "EXPLAIN", "GRANT", "INSERT", "LOAD", "LOCK", "RENAME", "REPLACE",
	"REVOKE", "ROLLBACK", "SELECT", "SET", "SHOW", "START", "TRUNCATE",
	"UNLOCK", "UPDATE", "USE", "WITH",
})

// Classify writes the upper-cased leading keyword of a query, or OTHER.
// Rows whose class is on the reject list are skipped.
type Classify struct {
	pipeline.Decl
	reject map[string]struct{}
}

func newClassify(opts config.Options) (pipeline.Stage, error) {
	var reject []string
	for _, r := range opts.StringSlice("reject") {
		reject = append(reject, strings.ToUpper(r))
	}
	return &Classify{
		Decl: pipeline.Decl{
			Label: label(KindClassify, opts),
			In:    []string{opts.String("input", "query")},
			Out:   []string{opts.String("output", "query_type")},
		},
		reject: set(reject),
	}, nil
}

// Process implements pipeline.Stage.
func (c *Classify) Process(rec records.Record) (pipeline.Result, error) {
	class := StatementType(rec.String(c.In[0]))
	if _, ok := c.reject[class]; ok {
		return pipeline.Skip(), nil
	}
	return pipeline.Keep(class), nil
}

// StatementType returns the upper-cased leading keyword of q when it is a
// known statement keyword, otherwise TypeOther. Leading parentheses are
// ignored so "(SELECT ...)" classifies as SELECT.
func StatementType(q string) string {
	q = strings.TrimLeftFunc(q, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
	end := strings.IndexFunc(q, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(q)
	}
	kw := strings.ToUpper(q[:end])
	if _, ok := statementTypes[kw]; ok {
		return kw
	}
	return TypeOther
}
