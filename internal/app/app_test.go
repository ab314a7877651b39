package app

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"logreduce/internal/config"
	"logreduce/internal/ddl"
	"logreduce/internal/staging"
	"logreduce/internal/storage"
)

const jobYAML = `
job: general-log
source: { kind: sqlite, dsn: %q, dataset: main }
target: { dsn: %q, dataset: main }
selectors:
  - { column: command_type, values: [Query] }
  - { column: server_id, value: 1 }
prefilters:
  - { kind: unwanted_terms, options: { terms: [information_schema] } }
stages:
  - { kind: store_sort, options: { expression: event_time } }
  - { kind: user_host, options: { users_reject: [root] } }
  - { kind: clean }
  - { kind: regex_replace }
  - { kind: fingerprint }
outputs:
  - { name: event_time, type: TEXT }
  - { name: user, type: TEXT }
  - { name: query, type: TEXT }
  - { name: fingerprint, type: TEXT }
log: { level: debug }
`

func seedSource(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	def := ddl.TableDef{FQN: "main.general_log_20240501", Columns: []ddl.ColumnDef{
		{Name: "event_time", SQLType: "TEXT"},
		{Name: "user_host", SQLType: "TEXT"},
		{Name: "thread_id", SQLType: "INTEGER"},
		{Name: "server_id", SQLType: "INTEGER"},
		{Name: "command_type", SQLType: "TEXT"},
		{Name: "argument", SQLType: "TEXT"},
	}}
	art, err := staging.Write(t.TempDir(), "seed", def.ColumnNames(), [][]any{
		{"2024-05-01 10:00:01", "app[app] @ web1 [10.0.0.1]", 3, 1, "Query", "SELECT * FROM t WHERE id = 42"},
		{"2024-05-01 10:00:00", "app[app] @ web1 [10.0.0.1]", 3, 1, "Query", "SELECT * FROM t WHERE id = 7"},
		{"2024-05-01 10:00:02", "app[app] @ web1 [10.0.0.1]", 3, 2, "Query", "SELECT 1"},
		{"2024-05-01 10:00:03", "app[app] @ web1 [10.0.0.1]", 3, 1, "Query", "SELECT * FROM information_schema.tables"},
		{"2024-05-01 10:00:04", "root[root] @ localhost [127.0.0.1]", 4, 1, "Query", "SELECT 2"},
	})
	require.NoError(t, err)
	defer art.Remove()

	require.NoError(t, storage.WithStore(ctx, storage.Config{Kind: "sqlite", DSN: dsn}, func(st storage.Store) error {
		tx, err := st.Begin(ctx)
		if err != nil {
			return err
		}
		if err := tx.CreateTable(ctx, def); err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.BulkLoad(ctx, def, art); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	}))
}

func TestRun_FromJobFile(t *testing.T) {
	dir := t.TempDir()
	srcDSN := filepath.Join(dir, "general_log.db")
	dstDSN := filepath.Join(dir, "processed.db")
	seedSource(t, srcDSN)

	f, err := config.Parse([]byte(fmt.Sprintf(jobYAML, srcDSN, dstDSN)))
	require.NoError(t, err)
	require.Empty(t, Validate(f))

	ctx := context.Background()
	work, present, err := Tables(ctx, f, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"general_log_20240501"}, work)
	assert.Zero(t, present)

	rep, err := Run(ctx, f, zaptest.NewLogger(t), RunOptions{})
	require.NoError(t, err)
	require.Len(t, rep.Tables, 1)
	tr := rep.Tables[0]
	assert.Equal(t, 4, tr.Fetched, "server_id = 2 is filtered at the store")
	assert.Equal(t, 1, tr.Prefiltered)
	assert.Equal(t, 1, tr.Skipped)
	assert.Equal(t, int64(2), tr.Loaded)

	var rows [][]any
	require.NoError(t, storage.WithStore(ctx, storage.Config{Kind: "sqlite", DSN: dstDSN}, func(st storage.Store) error {
		recs, err := st.Fetch(ctx, storage.Query{Dataset: "main", Table: "general_log_20240501", OrderBy: "event_time"})
		for _, r := range recs {
			rows = append(rows, r.Project([]string{"event_time", "user", "query", "fingerprint"}))
		}
		return err
	}))
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-05-01 10:00:00", rows[0][0])
	assert.Equal(t, "app", rows[0][1])
	assert.Equal(t, "SELECT * FROM t WHERE id = ?", rows[0][2])
	assert.Equal(t, rows[0][3], rows[1][3], "literals do not change the fingerprint")

	again, err := Run(ctx, f, zap.NewNop(), RunOptions{})
	require.NoError(t, err)
	assert.Empty(t, again.Tables)
	assert.Equal(t, 1, again.AlreadyPresent)
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	srcDSN := filepath.Join(dir, "general_log.db")
	dstDSN := filepath.Join(dir, "processed.db")
	seedSource(t, srcDSN)

	f, err := config.Parse([]byte(fmt.Sprintf(jobYAML, srcDSN, dstDSN)))
	require.NoError(t, err)

	rep, err := Run(context.Background(), f, nil, RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	require.Len(t, rep.Tables, 1)

	work, _, err := Tables(context.Background(), f, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"general_log_20240501"}, work, "dry run creates nothing")
}

func TestValidate_ReportsRegistryAndPipelineErrors(t *testing.T) {
	base := func() config.File {
		f, err := config.Parse([]byte(fmt.Sprintf(jobYAML, "a.db", "b.db")))
		require.NoError(t, err)
		return f
	}

	f := base()
	f.Stages = append(f.Stages, config.Unit{Kind: "no_such_stage", Options: config.Options{}})
	f.Source.Kind = "oracle"
	issues := Validate(f)
	assert.True(t, config.HasErrors(issues))
	var paths []string
	for _, iss := range issues {
		paths = append(paths, iss.Path)
	}
	assert.Contains(t, paths, "stages[5].kind")
	assert.Contains(t, paths, "source.kind")

	// A stage input no earlier stage produces surfaces as a pipeline error.
	f = base()
	f.Stages = append(f.Stages, config.Unit{Kind: "classify", Options: config.Options{"input": "nope"}})
	issues = Validate(f)
	require.Len(t, issues, 1)
	assert.Equal(t, "stages", issues[0].Path)
	assert.Contains(t, issues[0].Message, "nope")
}

func TestBuildJob_UnitErrorsCarryPosition(t *testing.T) {
	f := config.File{
		Job:        "j",
		Prefilters: []config.Unit{{Kind: "unwanted_terms", Options: config.Options{}}},
		Outputs:    []config.Output{{Name: "q", Type: "TEXT"}},
	}
	_, err := BuildJob(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prefilters[0]")

	f.Prefilters = nil
	f.Stages = []config.Unit{{Kind: "clean"}, {Kind: "bogus"}}
	_, err = BuildJob(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stages[1]")
}

func TestSelectorClauses(t *testing.T) {
	got := SelectorClauses([]config.Selector{
		{Clause: "command_type = 'Query'"},
		{Column: "command_type", Values: []string{"Query", "Execute"}},
		{Column: "server_id", Value: 3},
		{Column: "user", Value: "o'brien"},
	})
	assert.Equal(t, []string{
		"command_type = 'Query'",
		"command_type IN ('Query', 'Execute')",
		"server_id = 3",
		"user = 'o''brien'",
	}, got)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger(config.Log{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = NewLogger(config.Log{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
	assert.True(t, l.Core().Enabled(zap.InfoLevel))

	_, err = NewLogger(config.Log{Level: "loud"})
	assert.Error(t, err)
}

func TestNewRecorder(t *testing.T) {
	rec, err := NewRecorder(config.File{Job: "j", Metrics: config.Metrics{Backend: "none"}})
	require.NoError(t, err)
	assert.Equal(t, "j", rec.Job())

	_, err = NewRecorder(config.File{Job: "j", Metrics: config.Metrics{Backend: "prometheus"}})
	assert.Error(t, err, "pushgateway url is required")

	rec, err = NewRecorder(config.File{Job: "j", Metrics: config.Metrics{Backend: "prometheus", PushgatewayURL: "http://pushgateway:9091"}})
	require.NoError(t, err)
	assert.NotNil(t, rec)

	rec, err = NewRecorder(config.File{Job: "j", Metrics: config.Metrics{Backend: "datadog", DatadogAddr: "127.0.0.1:8125"}})
	require.NoError(t, err)
	assert.NoError(t, rec.Flush())

	_, err = NewRecorder(config.File{Metrics: config.Metrics{Backend: "graphite"}})
	assert.Error(t, err)
}
