package stages

import (
	"fmt"
	"regexp"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// KindRegexReplace rewrites a column with a regular expression.
const KindRegexReplace = "regex_replace"

// ConstantsPattern matches quoted string literals and numeric constants.
// Replacing its matches with "?" turns queries into templates.
const ConstantsPattern = `'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|\b-?\d+(?:\.\d+)?\b`

// RegexReplace replaces every match of a pattern in its input column.
type RegexReplace struct {
	pipeline.Decl
	re   *regexp.Regexp
	repl string
}

// NewRegexReplace builds the stage. output may equal input.
func NewRegexReplace(input, output, pattern, replacement string) (*RegexReplace, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", err)
	}
	return &RegexReplace{
		Decl: pipeline.Decl{
			Label: KindRegexReplace,
			In:    []string{input},
			Out:   []string{output},
		},
		re:   re,
		repl: replacement,
	}, nil
}

func newRegexReplace(opts config.Options) (pipeline.Stage, error) {
	input := opts.String("input", "query")
	r, err := NewRegexReplace(
		input,
		opts.String("output", input),
		opts.String("pattern", ConstantsPattern),
		opts.String("replacement", "?"),
	)
	if err != nil {
		return nil, err
	}
	r.Label = label(KindRegexReplace, opts)
	return r, nil
}

// Process implements pipeline.Stage.
func (r *RegexReplace) Process(rec records.Record) (pipeline.Result, error) {
	return pipeline.Keep(r.re.ReplaceAllString(rec.String(r.In[0]), r.repl)), nil
}
