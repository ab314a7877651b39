// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from logreduce runs.
//
// The package exposes a narrow interface (Backend) focused on counters and
// timing data, and a Recorder that labels every observation with the job
// name. A nil Backend is replaced by a no-op implementation, so recording is
// always safe even when no metrics system is configured. Concrete systems
// live in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names emitted by Recorder.
const (
	StepTotal           = "logreduce_step_total"
	StepDurationSeconds = "logreduce_step_duration_seconds"
	RecordsTotal        = "logreduce_records_total"
	TablesTotal         = "logreduce_tables_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Nop is a Backend that discards everything.
type Nop struct{}

func (Nop) IncCounter(name string, delta float64, labels Labels)       {}
func (Nop) ObserveHistogram(name string, value float64, labels Labels) {}
func (Nop) Flush() error                                               { return nil }

// Recorder records run metrics for one job against a Backend.
type Recorder struct {
	b   Backend
	job string
}

// NewRecorder returns a Recorder for job. A nil backend records nothing.
func NewRecorder(b Backend, job string) *Recorder {
	if b == nil {
		b = Nop{}
	}
	return &Recorder{b: b, job: job}
}

// Job returns the job label.
func (r *Recorder) Job() string { return r.job }

// Flush delegates to the backend.
func (r *Recorder) Flush() error { return r.b.Flush() }

// Step measures latency and success/failure of one run step, such as
// "fetch", "process" or "load".
func (r *Recorder) Step(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    r.job,
		"step":   step,
		"status": status,
	}

	r.b.IncCounter(StepTotal, 1, lbls)
	r.b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// Rows increments the record counter for kind. Kinds mirror the per-table
// report fields:
//   - "fetched"
//   - "prefiltered"
//   - "skipped"
//   - "loaded"
func (r *Recorder) Rows(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	r.b.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  r.job,
		"kind": kind,
	})
}

// Tables increments the table counter for status ("loaded", "failed",
// "present").
func (r *Recorder) Tables(status string, delta int64) {
	if delta <= 0 {
		return
	}
	r.b.IncCounter(TablesTotal, float64(delta), Labels{
		"job":    r.job,
		"status": status,
	})
}
