// Package app wires a decoded job file into a running job: it builds the
// process logger and metrics recorder, constructs the pipeline from the
// stage registry, opens the source and target stores and hands them to the
// runner.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
	"logreduce/internal/runner"
	"logreduce/internal/stages"
	"logreduce/internal/storage"

	// register all backends with the storage factory.
	_ "logreduce/internal/storage/all"
)

// Validate lints f against the registered kinds and, when the file itself
// is sound, builds the job to surface sort and schema errors.
func Validate(f config.File) []config.Issue {
	stageKinds, prefilterKinds := stages.Kinds()
	issues := config.Validate(f, config.WithKnownKinds(stageKinds, prefilterKinds, storage.ListKinds()))
	if config.HasErrors(issues) {
		return issues
	}
	if _, err := BuildJob(f); err != nil {
		issues = append(issues, config.Issue{
			Severity: config.SeverityError,
			Path:     "stages",
			Message:  err.Error(),
		})
	}
	return issues
}

// BuildJob constructs the pipeline job described by f.
func BuildJob(f config.File) (*pipeline.Job, error) {
	prefilters := make([]pipeline.Prefilter, 0, len(f.Prefilters))
	for i, u := range f.Prefilters {
		p, err := stages.NewPrefilter(u.Kind, u.Options)
		if err != nil {
			return nil, fmt.Errorf("prefilters[%d]: %w", i, err)
		}
		prefilters = append(prefilters, p)
	}

	sts := make([]pipeline.Stage, 0, len(f.Stages))
	for i, u := range f.Stages {
		st, err := stages.NewStage(u.Kind, u.Options)
		if err != nil {
			return nil, fmt.Errorf("stages[%d]: %w", i, err)
		}
		sts = append(sts, st)
	}

	outputs := make([]pipeline.Output, len(f.Outputs))
	for i, o := range f.Outputs {
		outputs[i] = pipeline.Output{Name: o.Name, Type: o.Type}
	}

	return pipeline.NewJob(pipeline.Config{
		Name:       f.Job,
		Selectors:  SelectorClauses(f.Selectors),
		Prefilters: prefilters,
		Stages:     sts,
		Outputs:    outputs,
	})
}

// SelectorClauses renders configured selectors as SQL boolean clauses.
// String values are quoted; other scalar values are emitted verbatim.
func SelectorClauses(sels []config.Selector) []string {
	out := make([]string, 0, len(sels))
	for _, s := range sels {
		switch {
		case s.IsClause():
			out = append(out, s.Clause)
		case len(s.Values) > 0:
			out = append(out, stages.ColumnStringValues(s.Column, s.Values))
		default:
			if v, ok := s.Value.(string); ok {
				out = append(out, stages.ColumnString(s.Column, v))
			} else {
				out = append(out, stages.ColumnValue(s.Column, records.Text(s.Value)))
			}
		}
	}
	return out
}

// RunOptions are per-invocation switches that do not belong in a job file.
type RunOptions struct {
	DryRun bool
}

// Run executes the job described by f.
func Run(ctx context.Context, f config.File, log *zap.Logger, opts RunOptions) (runner.Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	job, err := BuildJob(f)
	if err != nil {
		return runner.Report{}, fmt.Errorf("build job: %w", err)
	}

	rec, err := NewRecorder(f)
	if err != nil {
		return runner.Report{}, err
	}
	defer func() {
		if err := rec.Flush(); err != nil {
			log.Warn("metrics flush failed", zap.String("backend", f.Metrics.Backend), zap.Error(err))
		}
	}()

	r, err := runner.New(job,
		runner.WithLogger(log),
		runner.WithMetrics(rec),
		runner.WithDryRun(opts.DryRun),
		runner.WithWorkers(f.Runtime.Workers),
		runner.WithStagingDir(f.Runtime.StagingDir),
		runner.WithPerTableCommit(f.Runtime.PerTableCommit),
	)
	if err != nil {
		return runner.Report{}, err
	}

	var rep runner.Report
	err = withEndpoints(ctx, f, log, func(src, dst runner.Endpoint) error {
		var runErr error
		rep, runErr = r.Run(ctx, src, dst)
		return runErr
	})
	return rep, err
}

// Tables returns the work list of f: source tables not yet in the target,
// and the number already present.
func Tables(ctx context.Context, f config.File, log *zap.Logger) (work []string, present int, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	err = withEndpoints(ctx, f, log, func(src, dst runner.Endpoint) error {
		var listErr error
		work, present, listErr = runner.WorkList(ctx, src, dst)
		return listErr
	})
	return work, present, err
}

// withEndpoints opens the source and target stores for the duration of fn.
func withEndpoints(ctx context.Context, f config.File, log *zap.Logger, fn func(src, dst runner.Endpoint) error) error {
	return storage.WithStore(ctx, storeConfig(f.Source, log), func(src storage.Store) error {
		return storage.WithStore(ctx, storeConfig(f.Target, log), func(dst storage.Store) error {
			return fn(
				runner.Endpoint{Store: src, Dataset: f.Source.Dataset},
				runner.Endpoint{Store: dst, Dataset: f.Target.Dataset},
			)
		})
	})
}

func storeConfig(e config.Endpoint, log *zap.Logger) storage.Config {
	return storage.Config{
		Kind:   e.Kind,
		DSN:    e.DSN,
		Attach: e.Attach,
		Logger: log.With(zap.String("store", e.Kind)),
	}
}
