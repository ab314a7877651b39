// Package runner executes a pipeline.Job over every table of a source
// dataset that is not yet present in the target dataset.
//
// A table is the unit of work and of resumption: fetched in full, processed
// in memory, staged to a tab-separated file, then created and bulk loaded
// into the target. Tables already present in the target are skipped, so a
// rerun picks up where a failed run stopped. A table that failed after its
// target relation was created stays present and must be dropped by hand.
package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"logreduce/internal/ddl"
	"logreduce/internal/metrics"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
	"logreduce/internal/staging"
	"logreduce/internal/storage"
)

// ErrStatefulParallel is returned when a job with per-table stage state is
// run with more than one worker.
var ErrStatefulParallel = errors.New("runner: stateful stages cannot run with more than one worker")

// Endpoint is a store plus the dataset used on it.
type Endpoint struct {
	Store   storage.Store
	Dataset string
}

// TableError reports the table a run failed on.
type TableError struct {
	Table string
	Err   error
}

func (e *TableError) Error() string { return fmt.Sprintf("table %s: %v", e.Table, e.Err) }
func (e *TableError) Unwrap() error { return e.Err }

// TableReport summarizes one processed table.
type TableReport struct {
	Table       string
	Fetched     int
	Prefiltered int
	Skipped     int
	Loaded      int64
	Duration    time.Duration
}

// Report summarizes a run.
type Report struct {
	RunID  string
	Job    string
	DryRun bool
	// AlreadyPresent counts source tables skipped because the target has them.
	AlreadyPresent int
	// Tables lists completed tables in name order.
	Tables []TableReport
}

// Loaded returns the total number of rows loaded across tables.
func (r Report) Loaded() int64 {
	var n int64
	for _, t := range r.Tables {
		n += t.Loaded
	}
	return n
}

// Runner runs one job. It is safe to reuse across runs but not for
// concurrent runs of the same job.
type Runner struct {
	job            *pipeline.Job
	log            *zap.Logger
	rec            *metrics.Recorder
	dryRun         bool
	workers        int
	stagingDir     string
	perTableCommit bool
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithDryRun fetches and processes tables without creating or loading
// anything.
func WithDryRun(on bool) Option { return func(r *Runner) { r.dryRun = on } }

// WithWorkers sets the number of tables processed concurrently.
func WithWorkers(n int) Option { return func(r *Runner) { r.workers = n } }

// WithStagingDir sets the directory for staging files. Empty means the OS
// temp dir.
func WithStagingDir(dir string) Option { return func(r *Runner) { r.stagingDir = dir } }

// WithPerTableCommit commits each table on its own even when the target
// store could cover the run with one transaction.
func WithPerTableCommit(on bool) Option { return func(r *Runner) { r.perTableCommit = on } }

// WithMetrics records run metrics through rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(r *Runner) {
		if rec != nil {
			r.rec = rec
		}
	}
}

// New returns a Runner for job.
func New(job *pipeline.Job, opts ...Option) (*Runner, error) {
	if job == nil {
		return nil, errors.New("runner: job is nil")
	}
	r := &Runner{job: job, log: zap.NewNop(), workers: 1}
	for _, o := range opts {
		o(r)
	}
	if r.rec == nil {
		r.rec = metrics.NewRecorder(nil, job.Name())
	}
	if r.workers < 1 {
		return nil, fmt.Errorf("runner: workers must be at least 1, got %d", r.workers)
	}
	if r.workers > 1 && job.Stateful() {
		return nil, ErrStatefulParallel
	}
	return r, nil
}

// WorkList returns the source tables absent from the target, sorted, and
// the number of source tables already present.
func WorkList(ctx context.Context, src, dst Endpoint) ([]string, int, error) {
	srcTables, err := src.Store.ListTables(ctx, src.Dataset)
	if err != nil {
		return nil, 0, fmt.Errorf("list source tables in %s: %w", src.Dataset, err)
	}
	dstTables, err := dst.Store.ListTables(ctx, dst.Dataset)
	if err != nil {
		return nil, 0, fmt.Errorf("list target tables in %s: %w", dst.Dataset, err)
	}
	present := make(map[string]struct{}, len(dstTables))
	for _, t := range dstTables {
		present[t] = struct{}{}
	}

	var work []string
	skipped := 0
	for _, t := range srcTables {
		if _, ok := present[t]; ok {
			skipped++
			continue
		}
		work = append(work, t)
	}
	sort.Strings(work)
	return work, skipped, nil
}

// Run processes every table of src.Dataset absent from dst.Dataset.
//
// On failure the returned Report lists the tables completed before the
// failure and the error is a *TableError naming the failing table. Under a
// run-wide transaction nothing is kept on failure and Report.Tables is
// empty.
func (r *Runner) Run(ctx context.Context, src, dst Endpoint) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Job: r.job.Name(), DryRun: r.dryRun}
	log := r.log.With(zap.String("job", rep.Job), zap.String("run_id", rep.RunID))

	if missing := r.job.UnreachableOutputs(); len(missing) > 0 {
		log.Warn("outputs produced by no stage will be NULL", zap.Strings("outputs", missing))
	}

	work, present, err := WorkList(ctx, src, dst)
	if err != nil {
		return rep, err
	}
	rep.AlreadyPresent = present
	r.rec.Tables("present", int64(present))
	log.Info("work list computed",
		zap.Int("tables", len(work)),
		zap.Int("already_present", present),
		zap.String("source", src.Dataset),
		zap.String("target", dst.Dataset),
	)
	if len(work) == 0 {
		return rep, nil
	}

	var tables []TableReport
	switch {
	case r.dryRun:
		tables, err = r.runSequential(ctx, log, src, dst, work, r.dryRunTable)
	case r.workers > 1:
		tables, err = r.runParallel(ctx, log, src, dst, work)
	case !r.perTableCommit && dst.Store.Transactional():
		tables, err = r.runBatch(ctx, log, src, dst, work)
	default:
		tables, err = r.runSequential(ctx, log, src, dst, work, r.commitTable)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Table < tables[j].Table })
	rep.Tables = tables
	if err != nil {
		r.rec.Tables("failed", 1)
		return rep, err
	}
	log.Info("run complete", zap.Int("tables", len(tables)), zap.Int64("loaded", rep.Loaded()))
	return rep, nil
}

type tableFunc func(ctx context.Context, log *zap.Logger, src, dst Endpoint, table string) (TableReport, error)

func (r *Runner) runSequential(ctx context.Context, log *zap.Logger, src, dst Endpoint, work []string, fn tableFunc) ([]TableReport, error) {
	out := make([]TableReport, 0, len(work))
	for _, t := range work {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		tr, err := fn(ctx, log.With(zap.String("table", t)), src, dst, t)
		if err != nil {
			return out, &TableError{Table: t, Err: err}
		}
		out = append(out, tr)
	}
	return out, nil
}

// runParallel partitions work round-robin across workers. Each worker
// re-checks the target before every table and commits tables one by one.
func (r *Runner) runParallel(ctx context.Context, log *zap.Logger, src, dst Endpoint, work []string) ([]TableReport, error) {
	parts := Partition(work, r.workers)

	var (
		mu  sync.Mutex
		out []TableReport
	)
	g, gctx := errgroup.WithContext(ctx)
	for w, part := range parts {
		wlog := log.With(zap.Int("worker", w))
		g.Go(func() error {
			for _, t := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				tlog := wlog.With(zap.String("table", t))
				present, err := tableExists(gctx, dst, t)
				if err != nil {
					return &TableError{Table: t, Err: err}
				}
				if present {
					tlog.Info("table appeared in target, skipping")
					continue
				}
				tr, err := r.commitTable(gctx, tlog, src, dst, t)
				if err != nil {
					return &TableError{Table: t, Err: err}
				}
				mu.Lock()
				out = append(out, tr)
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	return out, err
}

// runBatch stages every table first, then creates and loads all of them in
// one transaction. Staging ahead keeps source reads out of the open
// transaction.
func (r *Runner) runBatch(ctx context.Context, log *zap.Logger, src, dst Endpoint, work []string) ([]TableReport, error) {
	type staged struct {
		report TableReport
		art    *staging.Artifact
	}
	var pending []staged
	defer func() {
		for _, p := range pending {
			_ = p.art.Remove()
		}
	}()

	for _, t := range work {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tlog := log.With(zap.String("table", t))
		tr, art, err := r.stageTable(ctx, tlog, src, t)
		if err != nil {
			return nil, &TableError{Table: t, Err: err}
		}
		pending = append(pending, staged{report: tr, art: art})
	}

	start := time.Now()
	tx, err := dst.Store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin run transaction: %w", err)
	}
	out := make([]TableReport, 0, len(pending))
	for i := range pending {
		p := &pending[i]
		tlog := log.With(zap.String("table", p.report.Table))
		loadStart := time.Now()
		n, err := r.load(ctx, tx, dst, p.report.Table, p.art)
		_ = p.art.Remove()
		r.rec.Step("load", err, time.Since(loadStart))
		if err != nil {
			_ = tx.Rollback()
			tlog.Error("load failed, rolling back run", zap.Error(err))
			return nil, &TableError{Table: p.report.Table, Err: err}
		}
		p.report.Loaded = n
		p.report.Duration += time.Since(loadStart)
		tlog.Debug("table loaded in run transaction", zap.Int64("loaded", n))
		out = append(out, p.report)
	}
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("commit run transaction: %w", err)
	}
	for _, tr := range out {
		r.rec.Rows("loaded", tr.Loaded)
		r.logTable(log.With(zap.String("table", tr.Table)), tr)
	}
	r.rec.Tables("loaded", int64(len(out)))
	log.Debug("run transaction committed", zap.Int("tables", len(out)), zap.Duration("duration", time.Since(start)))
	return out, nil
}

// commitTable runs the full cycle for one table in its own transaction.
func (r *Runner) commitTable(ctx context.Context, log *zap.Logger, src, dst Endpoint, table string) (TableReport, error) {
	tr, art, err := r.stageTable(ctx, log, src, table)
	if err != nil {
		return tr, err
	}
	defer func() { _ = art.Remove() }()

	loadStart := time.Now()
	n, err := r.loadInTx(ctx, dst, table, art)
	r.rec.Step("load", err, time.Since(loadStart))
	if err != nil {
		log.Error("load failed", zap.Error(err))
		return tr, err
	}
	tr.Loaded = n
	tr.Duration += time.Since(loadStart)
	r.rec.Rows("loaded", n)
	r.rec.Tables("loaded", 1)
	r.logTable(log, tr)
	return tr, nil
}

func (r *Runner) loadInTx(ctx context.Context, dst Endpoint, table string, art *staging.Artifact) (n int64, err error) {
	tx, err := dst.Store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if n, err = r.load(ctx, tx, dst, table, art); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

func (r *Runner) load(ctx context.Context, tx storage.Tx, dst Endpoint, table string, art *staging.Artifact) (int64, error) {
	def := r.job.TableDef(ddl.FQN(dst.Dataset, table))
	if err := tx.CreateTable(ctx, def); err != nil {
		return 0, fmt.Errorf("create %s: %w", def.FQN, err)
	}
	n, err := tx.BulkLoad(ctx, def, art)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", def.FQN, err)
	}
	return n, nil
}

// dryRunTable fetches and processes a table and reports what would be
// loaded.
func (r *Runner) dryRunTable(ctx context.Context, log *zap.Logger, src, _ Endpoint, table string) (TableReport, error) {
	start := time.Now()
	tr, out, err := r.processTable(ctx, log, src, table)
	if err != nil {
		return tr, err
	}
	tr.Loaded = int64(len(out))
	tr.Duration = time.Since(start)
	log.Info("dry run: table would be loaded",
		zap.Int("fetched", tr.Fetched),
		zap.Int("prefiltered", tr.Prefiltered),
		zap.Int("skipped", tr.Skipped),
		zap.Int64("rows", tr.Loaded),
	)
	return tr, nil
}

// stageTable fetches and processes a table and writes the projected rows to
// a staging file. The caller owns the returned artifact.
func (r *Runner) stageTable(ctx context.Context, log *zap.Logger, src Endpoint, table string) (TableReport, *staging.Artifact, error) {
	start := time.Now()
	tr, out, err := r.processTable(ctx, log, src, table)
	if err != nil {
		return tr, nil, err
	}

	w, err := staging.Create(r.stagingDir, table, r.job.OutputColumns())
	if err != nil {
		return tr, nil, err
	}
	for _, rec := range out {
		if err := w.Write(r.job.Project(rec)); err != nil {
			w.Abort()
			return tr, nil, err
		}
	}
	art, err := w.Close()
	if err != nil {
		return tr, nil, err
	}
	tr.Duration = time.Since(start)
	log.Debug("table staged", zap.String("path", art.Path), zap.Int64("rows", art.Rows))
	return tr, art, nil
}

func (r *Runner) processTable(ctx context.Context, log *zap.Logger, src Endpoint, table string) (TableReport, []records.Record, error) {
	tr := TableReport{Table: table}

	fetchStart := time.Now()
	recs, err := src.Store.Fetch(ctx, storage.Query{
		Dataset: src.Dataset,
		Table:   table,
		Where:   r.job.Selectors(),
		OrderBy: r.job.StoreSort(),
	})
	r.rec.Step("fetch", err, time.Since(fetchStart))
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return tr, nil, fmt.Errorf("fetch: %w", err)
	}
	tr.Fetched = len(recs)
	r.rec.Rows("fetched", int64(len(recs)))

	procStart := time.Now()
	out, stats, err := r.job.Process(ctx, recs)
	r.rec.Step("process", err, time.Since(procStart))
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			log.Error("stage failed", zap.String("stage", se.Stage), zap.Int("index", se.Index), zap.Error(se.Err))
		}
		return tr, nil, err
	}
	tr.Prefiltered = stats.Prefiltered
	tr.Skipped = stats.Skipped
	r.rec.Rows("prefiltered", int64(stats.Prefiltered))
	r.rec.Rows("skipped", int64(stats.Skipped))
	return tr, out, nil
}

func (r *Runner) logTable(log *zap.Logger, tr TableReport) {
	log.Info("table loaded",
		zap.Int("fetched", tr.Fetched),
		zap.Int("prefiltered", tr.Prefiltered),
		zap.Int("skipped", tr.Skipped),
		zap.Int64("loaded", tr.Loaded),
		zap.Duration("duration", tr.Duration),
	)
}

func tableExists(ctx context.Context, dst Endpoint, table string) (bool, error) {
	tables, err := dst.Store.ListTables(ctx, dst.Dataset)
	if err != nil {
		return false, fmt.Errorf("list target tables in %s: %w", dst.Dataset, err)
	}
	return slices.Contains(tables, table), nil
}

// Partition splits work round-robin into at most n disjoint, non-empty
// parts.
func Partition(work []string, n int) [][]string {
	if n > len(work) {
		n = len(work)
	}
	if n < 1 {
		return nil
	}
	parts := make([][]string, n)
	for i, t := range work {
		parts[i%n] = append(parts[i%n], t)
	}
	return parts
}
