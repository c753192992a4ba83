// Package storagetest opens throwaway backends for tests.
package storagetest

import (
	"path/filepath"
	"testing"

	"github.com/fastprodman/tablestakes/internal/infra/pgtestutil"
	"github.com/fastprodman/tablestakes/internal/infra/sqliteutil"
	"github.com/fastprodman/tablestakes/internal/storage"
)

// SQLite opens a migrated SQLite backend in a temp dir.
func SQLite(t *testing.T) *storage.Backend {
	t.Helper()

	db, err := sqliteutil.OpenDB(t.Context(), filepath.Join(t.TempDir(), "tablestakes.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return storage.SQLite(db)
}

// Postgres opens a fresh Postgres database; skipped without PG_TEST_DSN.
func Postgres(t *testing.T) *storage.Backend {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	return storage.Postgres(db)
}

// Each runs fn once per backend as a subtest.
func Each(t *testing.T, fn func(t *testing.T, b *storage.Backend)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		t.Parallel()
		fn(t, SQLite(t))
	})

	t.Run("postgres", func(t *testing.T) {
		t.Parallel()
		fn(t, Postgres(t))
	})
}
