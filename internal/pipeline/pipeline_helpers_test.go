package pipeline

import (
	"logreduce/internal/records"
)

// passStage declares inputs/outputs and writes a constant per output.
func passStage(name string, in, out []string) Stage {
	return NewStage(Decl{Label: name, In: in, Out: out}, func(records.Record) (Result, error) {
		vals := make([]any, len(out))
		for i := range vals {
			vals[i] = name
		}
		return Keep(vals...), nil
	})
}

func memSortStage(name, col string, desc bool) Stage {
	return NewStage(Decl{Label: name, Order: Sort{Column: col, Descending: desc}}, func(records.Record) (Result, error) {
		return Keep(), nil
	})
}

func storeSortStage(name, expr string) Stage {
	return NewStage(Decl{Label: name, Order: Sort{Store: expr}}, func(records.Record) (Result, error) {
		return Keep(), nil
	})
}

// recorder captures the value of col for every record it sees.
type recorder struct {
	Decl
	col  string
	seen []any
}

func newRecorder(name, col string, order Sort) *recorder {
	return &recorder{Decl: Decl{Label: name, Order: order}, col: col}
}

func (r *recorder) Process(rec records.Record) (Result, error) {
	r.seen = append(r.seen, rec[r.col])
	return Keep(), nil
}

func names(g Group) []string {
	out := make([]string, len(g.Stages))
	for i, st := range g.Stages {
		out[i] = st.Name()
	}
	return out
}
