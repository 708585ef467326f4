package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/templedb/templedb/internal/types"
)

// newTestStore opens a throwaway file-backed database under t.TempDir(),
// mirroring the teacher's own test isolation discipline: file-based
// databases behave more predictably than in-memory ones once a
// connection pool is involved.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return store
}

func createTestProject(t *testing.T, ctx context.Context, store *Store, slug string) *types.Project {
	t.Helper()
	id, err := store.CreateProject(ctx, &types.Project{Slug: slug, Name: slug, DefaultBranch: "main"})
	if err != nil {
		t.Fatalf("CreateProject(%q): %v", slug, err)
	}
	p, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject(%d): %v", id, err)
	}
	return p
}
