package sqlite

import (
	"context"
	"testing"

	"github.com/templedb/templedb/internal/types"
)

func TestEncodeDecodeLabels(t *testing.T) {
	if decodeLabels("") != nil {
		t.Fatal("expected nil for empty label string")
	}
	labels := []string{"bug", "urgent"}
	if got := decodeLabels(encodeLabels(labels)); len(got) != 2 || got[0] != "bug" || got[1] != "urgent" {
		t.Fatalf("round-trip mismatch: %v", got)
	}
}

func TestCreateAndGetWorkItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, ctx, store, "proj")

	w := &types.WorkItem{
		ID: "tdb-abcde", ProjectID: p.ID, Title: "Fix bug",
		Priority: types.PriorityHigh, Status: types.StatusPending, Labels: []string{"bug"},
	}
	if err := store.CreateWorkItem(ctx, w); err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}

	got, err := store.GetWorkItem(ctx, "tdb-abcde")
	if err != nil {
		t.Fatalf("GetWorkItem: %v", err)
	}
	if got.Title != "Fix bug" || got.Priority != types.PriorityHigh || len(got.Labels) != 1 {
		t.Fatalf("unexpected work item: %+v", got)
	}

	exists, err := store.WorkItemExists(ctx, "tdb-abcde")
	if err != nil || !exists {
		t.Fatalf("expected WorkItemExists true, got %v, %v", exists, err)
	}
}

func TestListWorkItemsOrdersByPriorityThenCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, ctx, store, "proj")

	items := []*types.WorkItem{
		{ID: "tdb-low01", ProjectID: p.ID, Title: "low", Priority: types.PriorityLow, Status: types.StatusPending},
		{ID: "tdb-crit1", ProjectID: p.ID, Title: "critical", Priority: types.PriorityCritical, Status: types.StatusPending},
		{ID: "tdb-med01", ProjectID: p.ID, Title: "medium", Priority: types.PriorityMedium, Status: types.StatusPending},
	}
	for _, w := range items {
		if err := store.CreateWorkItem(ctx, w); err != nil {
			t.Fatalf("CreateWorkItem(%s): %v", w.ID, err)
		}
	}

	list, err := store.ListWorkItems(ctx, p.ID, types.StatusPending)
	if err != nil {
		t.Fatalf("ListWorkItems: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list))
	}
	if list[0].Priority != types.PriorityCritical || list[2].Priority != types.PriorityLow {
		t.Fatalf("expected critical first and low last, got order: %v, %v, %v", list[0].Priority, list[1].Priority, list[2].Priority)
	}
}

func TestUpdateWorkItemAndTransitionHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, ctx, store, "proj")

	w := &types.WorkItem{ID: "tdb-xyz01", ProjectID: p.ID, Title: "task", Priority: types.PriorityMedium, Status: types.StatusPending}
	if err := store.CreateWorkItem(ctx, w); err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}

	w.Status = types.StatusAssigned
	w.AssignedSessionID = "agent-1"
	if err := store.UpdateWorkItem(ctx, w); err != nil {
		t.Fatalf("UpdateWorkItem: %v", err)
	}
	if err := store.AppendWorkItemTransition(ctx, &types.WorkItemTransition{
		WorkItemID: w.ID, FromStatus: types.StatusPending, ToStatus: types.StatusAssigned, SessionID: "agent-1",
	}); err != nil {
		t.Fatalf("AppendWorkItemTransition: %v", err)
	}

	got, err := store.GetWorkItem(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetWorkItem: %v", err)
	}
	if got.Status != types.StatusAssigned || got.AssignedSessionID != "agent-1" {
		t.Fatalf("unexpected work item after update: %+v", got)
	}

	history, err := store.ListWorkItemTransitions(ctx, w.ID)
	if err != nil {
		t.Fatalf("ListWorkItemTransitions: %v", err)
	}
	if len(history) != 1 || history[0].ToStatus != types.StatusAssigned {
		t.Fatalf("unexpected transition history: %+v", history)
	}
}

func TestListChildWorkItems(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := createTestProject(t, ctx, store, "proj")

	parent := &types.WorkItem{ID: "tdb-parnt", ProjectID: p.ID, Title: "parent", Priority: types.PriorityMedium, Status: types.StatusPending}
	if err := store.CreateWorkItem(ctx, parent); err != nil {
		t.Fatalf("CreateWorkItem(parent): %v", err)
	}
	child := &types.WorkItem{ID: "tdb-chld1", ProjectID: p.ID, Title: "child", ParentID: parent.ID, Priority: types.PriorityMedium, Status: types.StatusPending}
	if err := store.CreateWorkItem(ctx, child); err != nil {
		t.Fatalf("CreateWorkItem(child): %v", err)
	}

	children, err := store.ListChildWorkItems(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ListChildWorkItems: %v", err)
	}
	if len(children) != 1 || children[0].ID != child.ID {
		t.Fatalf("unexpected children: %+v", children)
	}
}
