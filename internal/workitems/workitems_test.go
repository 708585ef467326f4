package workitems

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/storage/sqlite"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

func newTestService(t *testing.T) (*Service, *types.Project) {
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
	return New(store), p
}

func TestCreateRejectsEmptyTitle(t *testing.T) {
	s, p := newTestService(t)
	_, err := s.Create(context.Background(), CreateRequest{ProjectID: p.ID, Title: ""})
	if !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for empty title, got %v", err)
	}
}

func TestCreateDefaultsPriorityAndStatus(t *testing.T) {
	s, p := newTestService(t)
	w, err := s.Create(context.Background(), CreateRequest{ProjectID: p.ID, Title: "do the thing"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w.Priority != types.PriorityMedium {
		t.Fatalf("expected default priority medium, got %s", w.Priority)
	}
	if w.Status != types.StatusPending {
		t.Fatalf("expected default status pending, got %s", w.Status)
	}

	history, err := s.History(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].ToStatus != types.StatusPending {
		t.Fatalf("expected an initial pending transition, got %+v", history)
	}
}

func TestCreateWithParentSucceedsAndListsAsChild(t *testing.T) {
	s, p := newTestService(t)
	ctx := context.Background()

	parent, err := s.Create(ctx, CreateRequest{ProjectID: p.ID, Title: "parent task"})
	if err != nil {
		t.Fatalf("Create(parent): %v", err)
	}
	child, err := s.Create(ctx, CreateRequest{ProjectID: p.ID, Title: "child task", ParentID: parent.ID})
	if err != nil {
		t.Fatalf("Create(child): %v", err)
	}

	children, err := s.Children(ctx, parent.ID)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if len(children) != 1 || children[0].ID != child.ID {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestCreateRejectsUnknownParent(t *testing.T) {
	s, p := newTestService(t)
	_, err := s.Create(context.Background(), CreateRequest{ProjectID: p.ID, Title: "orphaned", ParentID: "tdb-doesnotexist"})
	if !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for unknown parent, got %v", err)
	}
}

func TestTransitionFollowsStateMachine(t *testing.T) {
	s, p := newTestService(t)
	ctx := context.Background()

	w, err := s.Create(ctx, CreateRequest{ProjectID: p.ID, Title: "task"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Transition(ctx, w.ID, types.StatusInProgress, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput transitioning pending -> in_progress directly, got %v", err)
	}

	assigned, err := s.Assign(ctx, w.ID, "agent-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assigned.Status != types.StatusAssigned || assigned.AssignedSessionID != "agent-1" {
		t.Fatalf("unexpected state after assign: %+v", assigned)
	}

	inProgress, err := s.Transition(ctx, w.ID, types.StatusInProgress, "agent-1")
	if err != nil {
		t.Fatalf("Transition to in_progress: %v", err)
	}
	if inProgress.StartedAt == nil {
		t.Fatal("expected StartedAt to be set")
	}

	completed, err := s.Transition(ctx, w.ID, types.StatusCompleted, "agent-1")
	if err != nil {
		t.Fatalf("Transition to completed: %v", err)
	}
	if completed.CompletedAt == nil {
		t.Fatal("expected CompletedAt to be set")
	}

	if _, err := s.Transition(ctx, w.ID, types.StatusPending, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected terminal state completed to reject further transitions, got %v", err)
	}

	history, err := s.History(ctx, w.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 transitions (create, assign, in_progress, completed), got %d", len(history))
	}
}

func TestTransitionRejectsEdgesNotInStateMachine(t *testing.T) {
	s, p := newTestService(t)
	ctx := context.Background()

	w, err := s.Create(ctx, CreateRequest{ProjectID: p.ID, Title: "task"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Assign(ctx, w.ID, "agent-1"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// assigned -> pending and assigned -> cancelled are not drawn in the
	// state diagram; only assigned -> {in_progress, blocked} is.
	if _, err := s.Transition(ctx, w.ID, types.StatusPending, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for assigned -> pending, got %v", err)
	}
	if _, err := s.Transition(ctx, w.ID, types.StatusCancelled, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for assigned -> cancelled, got %v", err)
	}

	if _, err := s.Transition(ctx, w.ID, types.StatusInProgress, "agent-1"); err != nil {
		t.Fatalf("Transition to in_progress: %v", err)
	}
	// in_progress -> pending is not drawn; only {completed, blocked} are.
	if _, err := s.Transition(ctx, w.ID, types.StatusPending, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for in_progress -> pending, got %v", err)
	}

	if _, err := s.Transition(ctx, w.ID, types.StatusBlocked, "agent-1"); err != nil {
		t.Fatalf("Transition to blocked: %v", err)
	}
	// blocked -> pending and blocked -> cancelled are not drawn; only
	// blocked -> in_progress is.
	if _, err := s.Transition(ctx, w.ID, types.StatusPending, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for blocked -> pending, got %v", err)
	}
	if _, err := s.Transition(ctx, w.ID, types.StatusCancelled, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for blocked -> cancelled, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	s, p := newTestService(t)
	ctx := context.Background()

	w1, err := s.Create(ctx, CreateRequest{ProjectID: p.ID, Title: "one"})
	if err != nil {
		t.Fatalf("Create(w1): %v", err)
	}
	if _, err := s.Create(ctx, CreateRequest{ProjectID: p.ID, Title: "two"}); err != nil {
		t.Fatalf("Create(w2): %v", err)
	}
	if _, err := s.Assign(ctx, w1.ID, "agent-1"); err != nil {
		t.Fatalf("Assign(w1): %v", err)
	}

	pending, err := s.List(ctx, p.ID, types.StatusPending)
	if err != nil {
		t.Fatalf("List(pending): %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(pending))
	}

	assigned, err := s.List(ctx, p.ID, types.StatusAssigned)
	if err != nil {
		t.Fatalf("List(assigned): %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != w1.ID {
		t.Fatalf("unexpected assigned list: %+v", assigned)
	}
}
