package checkout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/storage/sqlite"
	"github.com/templedb/templedb/internal/types"
)

func newTestManager(t *testing.T) (*Manager, storage.Storage, *types.Project) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlite.New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})

	ctx := context.Background()
	id, err := store.CreateProject(ctx, &types.Project{Slug: "proj", Name: "proj", DefaultBranch: "main"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	p, err := store.GetProject(ctx, id)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	return New(store), store, p
}

func seedFileWithBlob(t *testing.T, ctx context.Context, store storage.Storage, projectID int64, path, content string) {
	t.Helper()
	hash := "hash-" + path
	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.PutBlob(ctx, &types.ContentBlob{
			HashSHA256: hash, Kind: types.ContentText, Text: content, Encoding: "utf-8", LineCount: 1, Size: int64(len(content)),
		}); err != nil {
			return err
		}
		fileID, err := tx.CreateFile(ctx, &types.ProjectFile{
			ProjectID: projectID, RelativePath: path, Name: filepath.Base(path), Status: types.FileActive,
		})
		if err != nil {
			return err
		}
		_, err = tx.AppendFileContent(ctx, &types.FileContent{FileID: fileID, Version: 1, ContentHash: hash, Size: int64(len(content)), LineCount: 1})
		return err
	})
	if err != nil {
		t.Fatalf("seed file %s: %v", path, err)
	}
}

func TestMaterializeWritesFilesAndSnapshots(t *testing.T) {
	m, store, p := newTestManager(t)
	ctx := context.Background()

	seedFileWithBlob(t, ctx, store, p.ID, "main.go", "package main\n")
	seedFileWithBlob(t, ctx, store, p.ID, "sub/dir/file.txt", "hello\n")

	dest := filepath.Join(t.TempDir(), "checkout")
	c, err := m.Materialize(ctx, p.ID, dest)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if c.CheckoutPath != dest {
		t.Fatalf("expected checkout path %q, got %q", dest, c.CheckoutPath)
	}

	got, err := os.ReadFile(filepath.Join(dest, "main.go"))
	if err != nil {
		t.Fatalf("read materialized main.go: %v", err)
	}
	if string(got) != "package main\n" {
		t.Fatalf("unexpected content: %q", got)
	}

	got, err = os.ReadFile(filepath.Join(dest, "sub", "dir", "file.txt"))
	if err != nil {
		t.Fatalf("read materialized nested file: %v", err)
	}
	if string(got) != "hello\n" {
		t.Fatalf("unexpected nested content: %q", got)
	}

	stale, err := m.FindStale(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindStale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected a freshly materialized checkout to not be stale, got %+v", stale)
	}
}

func TestFindStaleDetectsDriftAfterNewVersion(t *testing.T) {
	m, store, p := newTestManager(t)
	ctx := context.Background()
	seedFileWithBlob(t, ctx, store, p.ID, "a.txt", "v1\n")

	dest := filepath.Join(t.TempDir(), "checkout")
	if _, err := m.Materialize(ctx, p.ID, dest); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		files, err := tx.ListFiles(ctx, p.ID, false)
		if err != nil {
			return err
		}
		if err := tx.PutBlob(ctx, &types.ContentBlob{HashSHA256: "hash-a.txt-v2", Kind: types.ContentText, Text: "v2\n", Size: 3, LineCount: 1}); err != nil {
			return err
		}
		_, err = tx.AppendFileContent(ctx, &types.FileContent{FileID: files[0].ID, Version: 2, ContentHash: "hash-a.txt-v2", Size: 3, LineCount: 1})
		return err
	})
	if err != nil {
		t.Fatalf("bump file version: %v", err)
	}

	stale, err := m.FindStale(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindStale: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("expected 1 stale checkout, got %d", len(stale))
	}
}

func TestResyncRefreshesChangedFilesAndClearsStaleness(t *testing.T) {
	m, store, p := newTestManager(t)
	ctx := context.Background()
	seedFileWithBlob(t, ctx, store, p.ID, "a.txt", "v1\n")

	dest := filepath.Join(t.TempDir(), "checkout")
	checkout, err := m.Materialize(ctx, p.ID, dest)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		files, err := tx.ListFiles(ctx, p.ID, false)
		if err != nil {
			return err
		}
		if err := tx.PutBlob(ctx, &types.ContentBlob{HashSHA256: "hash-a.txt-v2", Kind: types.ContentText, Text: "v2\n", Size: 3, LineCount: 1}); err != nil {
			return err
		}
		_, err = tx.AppendFileContent(ctx, &types.FileContent{FileID: files[0].ID, Version: 2, ContentHash: "hash-a.txt-v2", Size: 3, LineCount: 1})
		return err
	})
	if err != nil {
		t.Fatalf("bump file version: %v", err)
	}

	if err := m.Resync(ctx, checkout.ID); err != nil {
		t.Fatalf("Resync: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	if err != nil {
		t.Fatalf("read resynced file: %v", err)
	}
	if string(got) != "v2\n" {
		t.Fatalf("expected resynced content v2, got %q", got)
	}

	stale, err := m.FindStale(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindStale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected checkout to no longer be stale after resync, got %+v", stale)
	}
}

func TestListAndDeleteCheckout(t *testing.T) {
	m, store, p := newTestManager(t)
	ctx := context.Background()
	seedFileWithBlob(t, ctx, store, p.ID, "a.txt", "v1\n")

	dest := filepath.Join(t.TempDir(), "checkout")
	checkout, err := m.Materialize(ctx, p.ID, dest)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	list, err := m.List(ctx, p.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != checkout.ID {
		t.Fatalf("unexpected checkout list: %+v", list)
	}

	if err := m.Delete(ctx, checkout.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, err = m.List(ctx, p.ID)
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no checkouts after delete, got %+v", list)
	}
}
