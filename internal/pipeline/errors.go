package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSort marks a sort configuration the pipeline cannot honor.
	ErrInvalidSort = errors.New("invalid sort")

	// ErrSchema marks stages whose declared inputs are not available.
	ErrSchema = errors.New("inconsistent stage schema")

	// ErrOutputArity is returned when a stage keeps a record with a number of
	// values different from its declared outputs.
	ErrOutputArity = errors.New("output arity mismatch")
)

// SortError reports the stage that broke the sort ordering rules.
type SortError struct {
	Index  int
	Stage  string
	Reason string
}

func (e *SortError) Error() string {
	return fmt.Sprintf("stage %d (%s): %s: %s", e.Index, e.Stage, ErrInvalidSort, e.Reason)
}

func (e *SortError) Is(target error) bool { return target == ErrInvalidSort }

// MissingInput is one declared input that no earlier stage or base column
// provides.
type MissingInput struct {
	Index  int
	Stage  string
	Column string
}

// SchemaError lists every unsatisfiable input, in declaration order.
type SchemaError struct {
	Missing []MissingInput
}

func (e *SchemaError) Error() string {
	if len(e.Missing) == 0 {
		return ErrSchema.Error()
	}
	first := e.Missing[0]
	var cols []string
	for _, m := range e.Missing {
		if m.Index == first.Index {
			cols = append(cols, m.Column)
		}
	}
	msg := fmt.Sprintf("%s: stage %d (%s) needs %s", ErrSchema, first.Index, first.Stage, strings.Join(cols, ", "))
	if extra := len(e.Missing) - len(cols); extra > 0 {
		msg += fmt.Sprintf(" (and %d more missing inputs)", extra)
	}
	return msg
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// StageError wraps a failure raised by a stage's transform.
type StageError struct {
	Index int
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Index, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
