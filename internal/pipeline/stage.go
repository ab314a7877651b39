// Package pipeline is the definition and execution engine for a row
// reduction job: stage contracts, the schema-consistency validator, the
// sort-aware grouping of stages and the executor that runs grouped stages
// over a batch of records.
package pipeline

import (
	"logreduce/internal/records"
)

// BaseColumns are the columns every raw general_log record carries. A Job
// validates stage inputs against this set unless it is given another one.
var BaseColumns = []string{
	"event_time",
	"user_host",
	"thread_id",
	"server_id",
	"command_type",
	"argument",
}

// Sort is a stage's sort directive. At most one of Column and Store is set.
//
// Column requests an in-memory stable sort of the whole record collection by
// that column before the stage's group runs. Store is an ORDER BY expression
// pushed down to the fetch query (without the ORDER BY keyword).
type Sort struct {
	Column     string
	Descending bool
	Store      string
}

// InMemory reports whether the directive asks for an in-memory sort.
func (s Sort) InMemory() bool { return s.Column != "" }

// AtStore reports whether the directive asks for a store-level sort.
func (s Sort) AtStore() bool { return s.Store != "" }

// Stage is one unit of the process pipeline. Inputs, Outputs and Sort are
// declared metadata; Process computes the values of Outputs for a record.
type Stage interface {
	Name() string
	Inputs() []string
	Outputs() []string
	Sort() Sort

	// Process returns Keep(values...) with one value per declared output, or
	// Skip() to drop the record permanently. A non-nil error aborts the
	// table being processed.
	Process(rec records.Record) (Result, error)
}

// Resetter is implemented by stages that keep state across the records of a
// table (for example a per-session counter). Reset is called before each
// table is executed.
type Resetter interface {
	Reset()
}

// Result is the tagged outcome of Stage.Process: either the record is kept
// with new output values, or it is skipped.
type Result struct {
	skip   bool
	values []any
}

// Keep returns a result carrying one value per declared output column.
func Keep(values ...any) Result { return Result{values: values} }

// Skip returns a result that removes the record from the pipeline.
func Skip() Result { return Result{skip: true} }

// Skipped reports whether the record was rejected.
func (r Result) Skipped() bool { return r.skip }

// Values returns the output values of a kept record.
func (r Result) Values() []any { return r.values }

// Decl holds the declared metadata of a stage. Concrete stages embed it and
// add a Process method.
type Decl struct {
	Label string
	In    []string
	Out   []string
	Order Sort
}

func (d Decl) Name() string      { return d.Label }
func (d Decl) Inputs() []string  { return d.In }
func (d Decl) Outputs() []string { return d.Out }
func (d Decl) Sort() Sort        { return d.Order }

// ProcessFunc is the signature of a stage transform.
type ProcessFunc func(rec records.Record) (Result, error)

type funcStage struct {
	Decl
	fn ProcessFunc
}

func (s funcStage) Process(rec records.Record) (Result, error) { return s.fn(rec) }

// NewStage builds a Stage from declared metadata and a transform.
func NewStage(d Decl, fn ProcessFunc) Stage {
	return funcStage{Decl: d, fn: fn}
}
