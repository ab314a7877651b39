package stages

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

// KindFingerprint hashes a column.
const KindFingerprint = "fingerprint"

// Fingerprint writes the 64-bit xxh3 hash of its input as 16 hex digits.
// Applied after regex_replace it groups queries sharing a template.
type Fingerprint struct {
	pipeline.Decl
}

func newFingerprint(opts config.Options) (pipeline.Stage, error) {
	return &Fingerprint{Decl: pipeline.Decl{
		Label: label(KindFingerprint, opts),
		In:    []string{opts.String("input", "query")},
		Out:   []string{opts.String("output", "fingerprint")},
	}}, nil
}

// Process implements pipeline.Stage.
func (f *Fingerprint) Process(rec records.Record) (pipeline.Result, error) {
	return pipeline.Keep(fmt.Sprintf("%016x", xxh3.HashString(rec.String(f.In[0])))), nil
}
