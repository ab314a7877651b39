package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"logreduce/internal/ddl"
	"logreduce/internal/records"
)

// Output is one column of the target relation: its name and the store type
// written verbatim into CREATE TABLE.
type Output struct {
	Name string
	Type string
}

// Config is the declarative description of a job.
type Config struct {
	// Name identifies the job in logs and metrics.
	Name string
	// Selectors are store-level filter clauses, AND-joined at fetch time.
	Selectors []string
	// Prefilters run over raw records before any stage.
	Prefilters []Prefilter
	// Stages are applied in order.
	Stages []Stage
	// Outputs is the target schema, in column order.
	Outputs []Output
	// BaseColumns overrides the columns guaranteed on raw records.
	// Defaults to BaseColumns.
	BaseColumns []string
}

// Job is a validated, immutable pipeline definition. It is created once and
// reused for every table of every run.
type Job struct {
	name       string
	selectors  []string
	prefilters Prefilters
	stages     []Stage
	outputs    []Output
	base       []string

	groups    []Group
	storeSort string
}

// NewJob validates cfg and derives the stage groups and store-level sort.
// It fails on an invalid sort configuration, on stages whose declared inputs
// cannot be satisfied and on a malformed output schema.
func NewJob(cfg Config) (*Job, error) {
	base := cfg.BaseColumns
	if len(base) == 0 {
		base = BaseColumns
	}

	for i, st := range cfg.Stages {
		if st == nil {
			return nil, fmt.Errorf("job %q: stage %d is nil", cfg.Name, i)
		}
	}
	for i, p := range cfg.Prefilters {
		if p == nil {
			return nil, fmt.Errorf("job %q: prefilter %d is nil", cfg.Name, i)
		}
	}
	if err := validateOutputs(cfg.Outputs); err != nil {
		return nil, fmt.Errorf("job %q: %w", cfg.Name, err)
	}

	groups, storeSort, err := BuildGroups(cfg.Stages)
	if err != nil {
		return nil, fmt.Errorf("job %q: %w", cfg.Name, err)
	}
	if err := ValidateSchema(base, cfg.Stages); err != nil {
		return nil, fmt.Errorf("job %q: %w", cfg.Name, err)
	}

	sel := make([]string, 0, len(cfg.Selectors))
	for _, s := range cfg.Selectors {
		if s = strings.TrimSpace(s); s != "" {
			sel = append(sel, s)
		}
	}

	return &Job{
		name:       cfg.Name,
		selectors:  sel,
		prefilters: append(Prefilters(nil), cfg.Prefilters...),
		stages:     append([]Stage(nil), cfg.Stages...),
		outputs:    append([]Output(nil), cfg.Outputs...),
		base:       append([]string(nil), base...),
		groups:     groups,
		storeSort:  storeSort,
	}, nil
}

func validateOutputs(outs []Output) error {
	if len(outs) == 0 {
		return errors.New("at least one output column is required")
	}
	seen := make(map[string]struct{}, len(outs))
	for i, o := range outs {
		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("output %d has an empty name", i)
		}
		if strings.TrimSpace(o.Type) == "" {
			return fmt.Errorf("output %q has an empty type", o.Name)
		}
		if _, dup := seen[o.Name]; dup {
			return fmt.Errorf("output %q is declared twice", o.Name)
		}
		seen[o.Name] = struct{}{}
	}
	return nil
}

func (j *Job) Name() string           { return j.name }
func (j *Job) Selectors() []string    { return append([]string(nil), j.selectors...) }
func (j *Job) Prefilters() Prefilters { return j.prefilters }
func (j *Job) Stages() []Stage        { return j.stages }
func (j *Job) Outputs() []Output      { return append([]Output(nil), j.outputs...) }
func (j *Job) BaseColumns() []string  { return append([]string(nil), j.base...) }
func (j *Job) Groups() []Group        { return j.groups }
func (j *Job) StoreSort() string      { return j.storeSort }

// OutputColumns returns the output column names in declared order.
func (j *Job) OutputColumns() []string {
	cols := make([]string, len(j.outputs))
	for i, o := range j.outputs {
		cols[i] = o.Name
	}
	return cols
}

// UnreachableOutputs returns output columns that neither the base columns nor
// any stage produce. They are always written as NULL.
func (j *Job) UnreachableOutputs() []string {
	avail := Available(j.base, j.stages)
	var out []string
	for _, o := range j.outputs {
		if _, ok := avail[o.Name]; !ok {
			out = append(out, o.Name)
		}
	}
	return out
}

// Stateful reports whether any stage keeps per-table state.
func (j *Job) Stateful() bool {
	for _, st := range j.stages {
		if _, ok := st.(Resetter); ok {
			return true
		}
	}
	return false
}

// Process applies the prefilter conjunction and then the grouped stages to a
// batch of fetched records.
func (j *Job) Process(ctx context.Context, recs []records.Record) ([]records.Record, Stats, error) {
	kept, rejected := j.prefilters.Filter(recs)
	out, stats, err := Execute(ctx, kept, j.groups)
	stats.In = len(recs)
	stats.Prefiltered = rejected
	return out, stats, err
}

// Project maps rec onto the output columns, in declared order. Absent
// columns become nil.
func (j *Job) Project(rec records.Record) []any {
	return rec.Project(j.OutputColumns())
}

// TableDef returns the target relation definition for fqn.
func (j *Job) TableDef(fqn string) ddl.TableDef {
	cols := make([]ddl.ColumnDef, len(j.outputs))
	for i, o := range j.outputs {
		cols[i] = ddl.ColumnDef{Name: o.Name, SQLType: o.Type, Nullable: true}
	}
	return ddl.TableDef{FQN: fqn, Columns: cols}
}
