package stages

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

func mustStage(t *testing.T, kind string, opts config.Options) pipeline.Stage {
	t.Helper()
	st, err := NewStage(kind, opts)
	require.NoError(t, err)
	return st
}

func TestUserHost(t *testing.T) {
	st := mustStage(t, KindUserHost, config.Options{"users_reject": []any{"buildbot", "root"}})
	assert.Equal(t, []string{"user_host"}, st.Inputs())
	assert.Equal(t, []string{"user", "host", "ip"}, st.Outputs())

	res, err := st.Process(records.Record{"user_host": "app[app] @ web1.example [10.0.0.5]"})
	require.NoError(t, err)
	assert.False(t, res.Skipped())
	assert.Equal(t, []any{"app", "web1.example", "10.0.0.5"}, res.Values())

	res, err = st.Process(records.Record{"user_host": "root[root] @ localhost []"})
	require.NoError(t, err)
	assert.True(t, res.Skipped())

	_, err = st.Process(records.Record{"user_host": "garbage"})
	assert.ErrorIs(t, err, ErrUnparsedUserHost)

	_, err = st.Process(records.Record{})
	assert.ErrorIs(t, err, ErrUnparsedUserHost, "absent user_host is unparseable")
}

func TestUserHost_SkipUnparsedAndRejectLists(t *testing.T) {
	st := mustStage(t, KindUserHost, config.Options{
		"skip_unparsed": true,
		"hosts_reject":  []any{"backup.internal"},
		"ip_reject":     []string{"127.0.0.1"},
	})

	tests := []struct {
		in       string
		wantSkip bool
	}{
		{"garbage", true},
		{"a[a] @ backup.internal [10.0.0.1]", true},
		{"a[a] @ h [127.0.0.1]", true},
		{"a[a] @ h [10.0.0.1]", false},
	}
	for _, tt := range tests {
		res, err := st.Process(records.Record{"user_host": tt.in})
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.wantSkip, res.Skipped(), tt.in)
	}
}

func TestCleanQuery(t *testing.T) {
	tests := map[string]string{
		"  SELECT  *\n\tFROM t ;  ":  "SELECT * FROM t",
		"SELECT 1;":                  "SELECT 1",
		"SELECT\x00'a'\x01FROM\r\nt": "SELECT 'a' FROM t",
		"SELECT ｆｕｌｌｗｉｄｔｈ":          "SELECT fullwidth",
		"":                           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanQuery(in), "%q", in)
	}

	st := mustStage(t, KindClean, nil)
	res, err := st.Process(records.Record{"argument": "SELECT 1 ;"})
	require.NoError(t, err)
	assert.Equal(t, []any{"SELECT 1"}, res.Values())
	assert.Equal(t, []string{"query"}, st.Outputs())
}

func TestRegexReplace_Constants(t *testing.T) {
	st := mustStage(t, KindRegexReplace, config.Options{"output": "template"})
	assert.Equal(t, []string{"query"}, st.Inputs())
	assert.Equal(t, []string{"template"}, st.Outputs())

	res, err := st.Process(records.Record{"query": `SELECT * FROM t WHERE id = 42 AND name = 'o\'b' AND x = "y" AND t2.c = 1.5`})
	require.NoError(t, err)
	assert.Equal(t, []any{`SELECT * FROM t WHERE id = ? AND name = ? AND x = ? AND t2.c = ?`}, res.Values())
}

func TestRegexReplace_BadPattern(t *testing.T) {
	_, err := NewStage(KindRegexReplace, config.Options{"pattern": "("})
	assert.ErrorContains(t, err, "compile pattern")
}

func TestStatementType(t *testing.T) {
	tests := map[string]string{
		"select 1":            "SELECT",
		"  (SELECT 1) UNION":  "SELECT",
		"INSERT INTO t":       "INSERT",
		"with x as (select)":  "WITH",
		"frobnicate":          TypeOther,
		"":                    TypeOther,
		"SET NAMES utf8":      "SET",
		"update\tt set a = 1": "UPDATE",
	}
	for in, want := range tests {
		assert.Equal(t, want, StatementType(in), "%q", in)
	}
}

func TestClassify_Reject(t *testing.T) {
	st := mustStage(t, KindClassify, config.Options{"reject": []any{"set", "other"}})

	res, err := st.Process(records.Record{"query": "SET autocommit=1"})
	require.NoError(t, err)
	assert.True(t, res.Skipped())

	res, err = st.Process(records.Record{"query": "DELETE FROM t"})
	require.NoError(t, err)
	assert.Equal(t, []any{"DELETE"}, res.Values())
}

func TestFingerprint(t *testing.T) {
	st := mustStage(t, KindFingerprint, nil)
	a, err := st.Process(records.Record{"query": "SELECT ?"})
	require.NoError(t, err)
	b, err := st.Process(records.Record{"query": "SELECT ?"})
	require.NoError(t, err)
	c, err := st.Process(records.Record{"query": "SELECT ? FROM t"})
	require.NoError(t, err)

	assert.Equal(t, a.Values(), b.Values())
	assert.NotEqual(t, a.Values(), c.Values())
	assert.Len(t, a.Values()[0], 16)
}

func TestSessionSeq_NumbersWithinSessions(t *testing.T) {
	st := mustStage(t, KindSessionSeq, nil)
	assert.Equal(t, pipeline.Sort{Column: "thread_id"}, st.Sort())
	_, stateful := st.(pipeline.Resetter)
	require.True(t, stateful)

	groups, _, err := pipeline.BuildGroups([]pipeline.Stage{st})
	require.NoError(t, err)

	in := []records.Record{
		{"thread_id": int64(2), "id": "a"},
		{"thread_id": int64(1), "id": "b"},
		{"thread_id": int64(2), "id": "c"},
		{"thread_id": int64(1), "id": "d"},
		{"thread_id": int64(3), "id": "e"},
	}
	for run := 0; run < 2; run++ {
		out, _, err := pipeline.Execute(t.Context(), in, groups)
		require.NoError(t, err)

		got := map[string]any{}
		for _, r := range out {
			got[r.String("id")] = r["seq"]
		}
		assert.Equal(t, map[string]any{"b": int64(1), "d": int64(2), "a": int64(1), "c": int64(2), "e": int64(1)}, got, "run %d", run)
	}
}

func TestStoreSort(t *testing.T) {
	st := mustStage(t, KindStoreSort, config.Options{"expression": "event_time DESC"})
	assert.Equal(t, "event_time DESC", st.Sort().Store)
	assert.Empty(t, st.Outputs())

	res, err := st.Process(records.Record{})
	require.NoError(t, err)
	assert.False(t, res.Skipped())

	def := mustStage(t, KindStoreSort, nil)
	assert.Equal(t, "event_time", def.Sort().Store)
}

func TestNameOption(t *testing.T) {
	st := mustStage(t, KindRegexReplace, config.Options{"name": "strip_numbers", "pattern": `\d+`})
	assert.Equal(t, "strip_numbers", st.Name())
}

func TestRegistry(t *testing.T) {
	_, err := NewStage("nope", nil)
	assert.True(t, errors.Is(err, ErrUnknownKind))
	_, err = NewPrefilter("nope", nil)
	assert.True(t, errors.Is(err, ErrUnknownKind))

	stageNames, prefilterNames := Kinds()
	assert.Subset(t, stageNames, []string{"classify", "clean", "fingerprint", "regex_replace", "session_seq", "store_sort", "user_host"})
	assert.Subset(t, prefilterNames, []string{"column_values", "unwanted_starts", "unwanted_terms"})
	assert.IsNonDecreasing(t, stageNames)
}
