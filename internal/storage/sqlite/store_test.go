package sqlite

import (
	"context"
	"testing"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/types"
)

func TestNewAppliesSchemaAndMigrations(t *testing.T) {
	store := newTestStore(t)
	if store.Path() == "" {
		t.Fatal("expected a non-empty store path")
	}
	if store.UnderlyingDB() == nil {
		t.Fatal("expected a non-nil underlying *sql.DB")
	}
}

func TestRunInTransactionCommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var projectID int64
	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		id, err := tx.CreateProject(ctx, &types.Project{Slug: "demo", Name: "Demo", DefaultBranch: "main"})
		projectID = id
		return err
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	p, err := store.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("GetProject after commit: %v", err)
	}
	if p.Slug != "demo" {
		t.Fatalf("expected slug demo, got %q", p.Slug)
	}
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sentinel := context.Canceled
	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if _, err := tx.CreateProject(ctx, &types.Project{Slug: "rolled-back", Name: "X", DefaultBranch: "main"}); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if _, err := store.GetProjectBySlug(ctx, "rolled-back"); err == nil {
		t.Fatal("expected rolled-back project to not exist")
	}
}
