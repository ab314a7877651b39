package all

import (
	"testing"

	"logreduce/internal/storage"
)

// TestAllKindsRegistered verifies every built-in backend registers itself.
func TestAllKindsRegistered(t *testing.T) {
	got := map[string]bool{}
	for _, k := range storage.ListKinds() {
		got[k] = true
	}
	for _, want := range []string{"duckdb", "mssql", "mysql", "postgres", "sqlite"} {
		if !got[want] {
			t.Errorf("kind %q not registered; have %v", want, storage.ListKinds())
		}
	}
}
