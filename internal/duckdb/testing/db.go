package duckdbtesting

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"lfeval/internal/duckdb"
	"lfeval/internal/testutil"
)

const openTimeout = 2 * time.Second

// Memory returns an in-memory run store with the schema applied.
func Memory(t testing.TB) *sql.DB {
	t.Helper()
	return open(t, ":memory:")
}

// File returns a run store backed by a file in a temp dir, along with its path.
func File(t testing.TB) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.duckdb")
	return open(t, path), path
}

func open(t testing.TB, path string) *sql.DB {
	t.Helper()
	db, err := duckdb.Open(testutil.Context(t, openTimeout), path)
	if err != nil {
		t.Fatalf("open run store %s: %v", path, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var n int
	ctx := testutil.Context(t, openTimeout)
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
