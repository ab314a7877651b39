package stages

import (
	"fmt"
	"strings"
	"unicode"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// Prefilter kinds.
const (
	KindUnwantedStarts = "unwanted_starts"
	KindUnwantedTerms  = "unwanted_terms"
	KindColumnValues   = "column_values"
)

// UnwantedStarts rejects records whose column starts with any of prefixes,
// ignoring case and leading whitespace. Absent columns are accepted.
func UnwantedStarts(column string, prefixes []string) pipeline.Prefilter {
	upper := upperAll(prefixes)
	return pipeline.PrefilterFunc(func(rec records.Record) bool {
		s := strings.ToUpper(strings.TrimLeftFunc(rec.String(column), unicode.IsSpace))
		for _, p := range upper {
			if strings.HasPrefix(s, p) {
				return false
			}
		}
		return true
	})
}

// UnwantedTerms rejects records whose column contains any of terms, ignoring
// case.
func UnwantedTerms(column string, terms []string) pipeline.Prefilter {
	upper := upperAll(terms)
	return pipeline.PrefilterFunc(func(rec records.Record) bool {
		s := strings.ToUpper(rec.String(column))
		for _, t := range upper {
			if strings.Contains(s, t) {
				return false
			}
		}
		return true
	})
}

// ColumnValues accepts records whose column, in textual form, is one of
// values. Absent or NULL columns are rejected.
func ColumnValues(column string, values []string) pipeline.Prefilter {
	allowed := set(values)
	return pipeline.PrefilterFunc(func(rec records.Record) bool {
		v, ok := rec.Get(column)
		if !ok || v == nil {
			return false
		}
		_, ok = allowed[records.Text(v)]
		return ok
	})
}

func newUnwantedStarts(opts config.Options) (pipeline.Prefilter, error) {
	prefixes := opts.StringSlice("prefixes")
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("prefixes must not be empty")
	}
	return UnwantedStarts(opts.String("column", "argument"), prefixes), nil
}

func newUnwantedTerms(opts config.Options) (pipeline.Prefilter, error) {
	terms := opts.StringSlice("terms")
	if len(terms) == 0 {
		return nil, fmt.Errorf("terms must not be empty")
	}
	return UnwantedTerms(opts.String("column", "argument"), terms), nil
}

func newColumnValues(opts config.Options) (pipeline.Prefilter, error) {
	column := opts.String("column", "")
	if column == "" {
		return nil, fmt.Errorf("column must not be empty")
	}
	return ColumnValues(column, opts.StringSlice("values")), nil
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}
