package coordinator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/storage/sqlite"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
	"github.com/templedb/templedb/internal/workitems"
)

type testFixture struct {
	store *sqlite.Store
	coord *Coordinator
	items *workitems.Service
	p     *types.Project
}

func newFixture(t *testing.T) *testFixture {
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
	return &testFixture{store: store, coord: New(store), items: workitems.New(store), p: p}
}

func (f *testFixture) addAgent(t *testing.T, id string, activeWorkCount int) {
	t.Helper()
	_, err := f.store.UnderlyingDB().ExecContext(context.Background(), `
		INSERT INTO agent_sessions (id, project_id, status, active_work_count) VALUES (?, ?, 'active', ?)
	`, id, f.p.ID, activeWorkCount)
	if err != nil {
		t.Fatalf("insert agent session %s: %v", id, err)
	}
}

func (f *testFixture) addAgentAt(t *testing.T, id string, activeWorkCount int, startedAt time.Time) {
	t.Helper()
	_, err := f.store.UnderlyingDB().ExecContext(context.Background(), `
		INSERT INTO agent_sessions (id, project_id, status, active_work_count, started_at) VALUES (?, ?, 'active', ?, ?)
	`, id, f.p.ID, activeWorkCount, startedAt)
	if err != nil {
		t.Fatalf("insert agent session %s: %v", id, err)
	}
}

func TestAutoSelectBreaksWorkloadTieByMostRecentStart(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.addAgentAt(t, "older", 1, now.Add(-time.Hour))
	f.addAgentAt(t, "newer", 1, now)

	agent, err := f.coord.AutoSelect(context.Background(), f.p.ID)
	if err != nil {
		t.Fatalf("AutoSelect: %v", err)
	}
	if agent.ID != "newer" {
		t.Fatalf("expected the most-recently-started agent to win the tie, got %s", agent.ID)
	}
}

func TestAutoSelectPicksLeastBusyAgent(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "busy", 5)
	f.addAgent(t, "idle", 0)

	agent, err := f.coord.AutoSelect(context.Background(), f.p.ID)
	if err != nil {
		t.Fatalf("AutoSelect: %v", err)
	}
	if agent.ID != "idle" {
		t.Fatalf("expected the idle agent to be selected, got %s", agent.ID)
	}
}

func TestAutoSelectFailsWithNoActiveAgents(t *testing.T) {
	f := newFixture(t)
	if _, err := f.coord.AutoSelect(context.Background(), f.p.ID); !terrors.IsKind(err, terrors.Unavailable) {
		t.Fatalf("expected Unavailable with no active agents, got %v", err)
	}
}

func TestAssignDeliversMailboxNotification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "agent-1", 0)

	w, err := f.items.Create(ctx, workitems.CreateRequest{ProjectID: f.p.ID, Title: "do it"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	assigned, err := f.coord.Assign(ctx, w.ID, "agent-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assigned.AssignedSessionID != "agent-1" {
		t.Fatalf("expected item assigned to agent-1, got %+v", assigned)
	}

	unread, err := f.coord.MailboxSummary(ctx, "agent-1")
	if err != nil {
		t.Fatalf("MailboxSummary: %v", err)
	}
	if len(unread) != 1 || unread[0].WorkItemID != w.ID {
		t.Fatalf("expected 1 unread assignment message, got %+v", unread)
	}
}

func TestDispatchPendingAssignsHighestPriorityFirstToLeastBusyAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "idle", 0)
	f.addAgent(t, "busy", 3)

	low, err := f.items.Create(ctx, workitems.CreateRequest{ProjectID: f.p.ID, Title: "low", Priority: types.PriorityLow})
	if err != nil {
		t.Fatalf("Create(low): %v", err)
	}
	critical, err := f.items.Create(ctx, workitems.CreateRequest{ProjectID: f.p.ID, Title: "critical", Priority: types.PriorityCritical})
	if err != nil {
		t.Fatalf("Create(critical): %v", err)
	}

	dispatched, err := f.coord.DispatchPending(ctx, f.p.ID, 1)
	if err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}
	if len(dispatched) != 1 {
		t.Fatalf("expected exactly 1 dispatched item (limit=1), got %d", len(dispatched))
	}
	if dispatched[0].ID != critical.ID {
		t.Fatalf("expected the critical item to be dispatched first, got %s", dispatched[0].ID)
	}
	if dispatched[0].AssignedSessionID != "idle" {
		t.Fatalf("expected the idle agent to receive the dispatch, got %s", dispatched[0].AssignedSessionID)
	}

	_ = low
}

func TestDispatchPendingReturnsEmptyWithNoAgents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.items.Create(ctx, workitems.CreateRequest{ProjectID: f.p.ID, Title: "orphan"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dispatched, err := f.coord.DispatchPending(ctx, f.p.ID, 0)
	if err != nil {
		t.Fatalf("DispatchPending: %v", err)
	}
	if len(dispatched) != 0 {
		t.Fatalf("expected no dispatches with no agents, got %+v", dispatched)
	}
}

func TestStartConvoyActivatesAndAssignsFirstItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addAgent(t, "agent-1", 0)

	first, err := f.items.Create(ctx, workitems.CreateRequest{ProjectID: f.p.ID, Title: "step one"})
	if err != nil {
		t.Fatalf("Create(first): %v", err)
	}
	second, err := f.items.Create(ctx, workitems.CreateRequest{ProjectID: f.p.ID, Title: "step two"})
	if err != nil {
		t.Fatalf("Create(second): %v", err)
	}

	var convoyID int64
	err = f.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		id, err := tx.CreateConvoy(ctx, &types.Convoy{ProjectID: f.p.ID, Name: "rollout", Status: types.ConvoyDraft})
		if err != nil {
			return err
		}
		convoyID = id
		if err := tx.AddConvoyItem(ctx, types.ConvoyItem{ConvoyID: id, WorkItemID: first.ID, Position: 0}); err != nil {
			return err
		}
		return tx.AddConvoyItem(ctx, types.ConvoyItem{ConvoyID: id, WorkItemID: second.ID, Position: 1})
	})
	if err != nil {
		t.Fatalf("seed convoy: %v", err)
	}

	if err := f.coord.StartConvoy(ctx, convoyID, "agent-1"); err != nil {
		t.Fatalf("StartConvoy: %v", err)
	}

	var convoy *types.Convoy
	err = f.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		convoy, err = tx.GetConvoy(ctx, convoyID)
		return err
	})
	if err != nil {
		t.Fatalf("GetConvoy: %v", err)
	}
	if convoy.Status != types.ConvoyActive {
		t.Fatalf("expected convoy to be active, got %s", convoy.Status)
	}

	firstItem, err := f.items.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get(first): %v", err)
	}
	if firstItem.AssignedSessionID != "agent-1" || firstItem.Status != types.StatusAssigned {
		t.Fatalf("expected the first convoy item to be assigned to agent-1, got %+v", firstItem)
	}

	secondItem, err := f.items.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("Get(second): %v", err)
	}
	if secondItem.Status != types.StatusPending {
		t.Fatalf("expected the second convoy item to remain pending, got %s", secondItem.Status)
	}
}

func TestStartConvoyRejectsConvoyWithNoItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var convoyID int64
	err := f.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		id, err := tx.CreateConvoy(ctx, &types.Convoy{ProjectID: f.p.ID, Name: "empty", Status: types.ConvoyDraft})
		convoyID = id
		return err
	})
	if err != nil {
		t.Fatalf("seed empty convoy: %v", err)
	}

	if err := f.coord.StartConvoy(ctx, convoyID, "agent-1"); !terrors.IsKind(err, terrors.InvalidInput) {
		t.Fatalf("expected InvalidInput for an empty convoy, got %v", err)
	}
}

func TestUtilizationReflectsActiveWorkCounts(t *testing.T) {
	f := newFixture(t)
	f.addAgent(t, "a", 2)
	f.addAgent(t, "b", 7)

	util, err := f.coord.Utilization(context.Background(), f.p.ID)
	if err != nil {
		t.Fatalf("Utilization: %v", err)
	}
	if util["a"] != 2 || util["b"] != 7 {
		t.Fatalf("unexpected utilization map: %+v", util)
	}
}
