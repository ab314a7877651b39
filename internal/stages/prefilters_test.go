package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logreduce/internal/config"
	"logreduce/internal/pipeline"
	"logreduce/internal/records"
)

func TestUnwantedStartsAndTerms_ExampleJob(t *testing.T) {
	starts, err := NewPrefilter(KindUnwantedStarts, config.Options{
		"prefixes": []any{"SHOW", "SET sql_mode", "SET NAMES", "SET character_set_results"},
	})
	require.NoError(t, err)
	terms, err := NewPrefilter(KindUnwantedTerms, config.Options{
		"terms": []any{"information_schema", "mysql"},
	})
	require.NoError(t, err)
	filters := pipeline.Prefilters{starts, terms}

	tests := []struct {
		arg  string
		want bool
	}{
		{"SHOW TABLES", false},
		{"  show databases", false},
		{"set names utf8", false},
		{"SET autocommit=1", true},
		{"SELECT * FROM INFORMATION_SCHEMA.tables", false},
		{"SELECT * FROM mysql.user", false},
		{"SELECT 1", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, filters.Accepts(records.Record{"argument": tt.arg}), tt.arg)
	}
	assert.True(t, filters.Accepts(records.Record{}), "absent argument matches nothing")
}

func TestColumnValues(t *testing.T) {
	p, err := NewPrefilter(KindColumnValues, config.Options{"column": "server_id", "values": []any{"1", "2"}})
	require.NoError(t, err)

	assert.True(t, p.Accept(records.Record{"server_id": int64(1)}))
	assert.True(t, p.Accept(records.Record{"server_id": "2"}))
	assert.False(t, p.Accept(records.Record{"server_id": int64(3)}))
	assert.False(t, p.Accept(records.Record{"server_id": nil}))
	assert.False(t, p.Accept(records.Record{}))
}

func TestPrefilterOptionErrors(t *testing.T) {
	for kind, opts := range map[string]config.Options{
		KindUnwantedStarts: {},
		KindUnwantedTerms:  {"terms": []any{}},
		KindColumnValues:   {"values": []any{"1"}},
	} {
		_, err := NewPrefilter(kind, opts)
		assert.Error(t, err, kind)
	}
}

func TestSelectors(t *testing.T) {
	assert.Equal(t, "command_type IN ('Execute', 'Query')", ColumnStringValues("command_type", []string{"Execute", "Query"}))
	assert.Equal(t, "user IN ('o''brien')", ColumnStringValues("user", []string{"o'brien"}))
	assert.Equal(t, "server_id = 3", ColumnValue("server_id", "3"))
	assert.Equal(t, "user = 'o''brien'", ColumnString("user", "o'brien"))
}
