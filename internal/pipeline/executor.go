package pipeline

import (
	"context"
	"fmt"
	"slices"

	"logreduce/internal/records"
)

// Stats counts what happened to a batch during execution.
type Stats struct {
	// In is the number of records handed to the executor.
	In int
	// Prefiltered is the number rejected by prefilters (Job.Process only).
	Prefiltered int
	// Skipped is the number dropped by a stage's Skip result.
	Skipped int
	// Out is the number of surviving records.
	Out int
}

// Execute runs groups over recs in order and returns the surviving records.
//
// Before a group whose first stage declares an in-memory sort, the current
// collection is stably sorted by that column. Every stage of the group is
// then applied to each record in turn; its outputs are merged onto a new
// record snapshot. A Skip drops the record for the rest of the pipeline. Any
// error from a stage aborts execution and is returned as a *StageError.
//
// Stages implementing Resetter are reset before the first group runs.
func Execute(ctx context.Context, recs []records.Record, groups []Group) ([]records.Record, Stats, error) {
	stats := Stats{In: len(recs)}

	for _, g := range groups {
		for _, st := range g.Stages {
			if r, ok := st.(Resetter); ok {
				r.Reset()
			}
		}
	}

	cur := recs
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		if s, ok := g.Sort(); ok {
			cur = sortedBy(cur, s)
		}

		next := make([]records.Record, 0, len(cur))
		for _, rec := range cur {
			out, kept, err := applyGroup(g, rec)
			if err != nil {
				return nil, stats, err
			}
			if !kept {
				stats.Skipped++
				continue
			}
			next = append(next, out)
		}
		cur = next
	}

	stats.Out = len(cur)
	return cur, stats, nil
}

// applyGroup runs every stage of g over rec and reports whether the record
// survived.
func applyGroup(g Group, rec records.Record) (records.Record, bool, error) {
	for i, st := range g.Stages {
		res, err := st.Process(rec)
		if err != nil {
			return nil, false, &StageError{Index: g.First + i, Stage: st.Name(), Err: err}
		}
		if res.Skipped() {
			return nil, false, nil
		}
		outs := st.Outputs()
		vals := res.Values()
		if len(vals) != len(outs) {
			return nil, false, &StageError{
				Index: g.First + i,
				Stage: st.Name(),
				Err:   fmt.Errorf("%w: %d values for %d declared outputs", ErrOutputArity, len(vals), len(outs)),
			}
		}
		if len(outs) > 0 {
			rec = rec.With(outs, vals)
		}
	}
	return rec, true, nil
}

// sortedBy returns a stably sorted copy of recs keyed on s.Column.
func sortedBy(recs []records.Record, s Sort) []records.Record {
	out := slices.Clone(recs)
	slices.SortStableFunc(out, func(a, b records.Record) int {
		c := records.Compare(a[s.Column], b[s.Column])
		if s.Descending {
			return -c
		}
		return c
	})
	return out
}
