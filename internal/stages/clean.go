package stages

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// KindClean normalizes raw query text.
const KindClean = "clean"

// Clean turns the raw argument into a canonical query: NFKC normalized,
// control characters replaced by spaces, whitespace runs collapsed and a
// trailing semicolon dropped.
type Clean struct {
	pipeline.Decl
}

func newClean(opts config.Options) (pipeline.Stage, error) {
	return &Clean{Decl: pipeline.Decl{
		Label: label(KindClean, opts),
		In:    []string{opts.String("input", "argument")},
		Out:   []string{opts.String("output", "query")},
	}}, nil
}

// Process implements pipeline.Stage.
func (c *Clean) Process(rec records.Record) (pipeline.Result, error) {
	return pipeline.Keep(CleanQuery(rec.String(c.In[0]))), nil
}

func controlToSpace(r rune) rune {
	if unicode.IsControl(r) {
		return ' '
	}
	return r
}

// CleanQuery applies the clean stage transformation to s.
func CleanQuery(s string) string {
	s = norm.NFKC.String(s)
	if out, _, err := transform.String(runes.Map(controlToSpace), s); err == nil {
		s = out
	}
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, ";")
	return strings.TrimSpace(s)
}
