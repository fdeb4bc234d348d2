package db

import (
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated database in a temp directory that is removed
// with the test.
func NewTestDB(t testing.TB) *DB {
	t.Helper()
	d, err := NewDB(filepath.Join(t.TempDir(), "fusion_test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}
