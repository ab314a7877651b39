package pipeline

import "logreduce/internal/records"

// Prefilter is a pure predicate over a raw record, applied before any stage.
// It declares no inputs; implementations treat an absent column as "no
// match".
type Prefilter interface {
	Accept(rec records.Record) bool
}

// PrefilterFunc adapts a function to the Prefilter interface.
type PrefilterFunc func(rec records.Record) bool

// Accept calls f(rec).
func (f PrefilterFunc) Accept(rec records.Record) bool { return f(rec) }

// Prefilters is a conjunction: a record survives only if every member
// accepts it. An empty set accepts everything.
type Prefilters []Prefilter

// Accepts reports whether every prefilter accepts rec.
func (p Prefilters) Accepts(rec records.Record) bool {
	for _, f := range p {
		if !f.Accept(rec) {
			return false
		}
	}
	return true
}

// Filter returns the records accepted by the conjunction, in input order,
// and the number rejected.
func (p Prefilters) Filter(in []records.Record) ([]records.Record, int) {
	if len(p) == 0 {
		return in, 0
	}
	out := make([]records.Record, 0, len(in))
	for _, rec := range in {
		if p.Accepts(rec) {
			out = append(out, rec)
		}
	}
	return out, len(in) - len(out)
}
