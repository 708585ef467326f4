// Package coordinator implements multi-agent work coordination (spec
// §4.10, C10): listing available agents, auto-selecting the
// least-busy one for a work item, dispatching the pending queue in
// priority order, mailbox delivery, and convoy (ordered work-item
// bundle) management.
package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
	"github.com/templedb/templedb/internal/workitems"
)

type Coordinator struct {
	store storage.Storage
	items *workitems.Service
}

func New(store storage.Storage) *Coordinator {
	return &Coordinator{store: store, items: workitems.New(store)}
}

// AvailableAgents returns every active session for projectID, ordered
// least-busy first.
func (c *Coordinator) AvailableAgents(ctx context.Context, projectID int64) ([]*types.AgentSession, error) {
	var out []*types.AgentSession
	err := c.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		out, err = tx.ListActiveSessions(ctx, projectID)
		return err
	})
	return out, err
}

// AutoSelect picks the active session with the fewest active work
// items for projectID, returning terrors.Unavailable if none are
// active.
func (c *Coordinator) AutoSelect(ctx context.Context, projectID int64) (*types.AgentSession, error) {
	agents, err := c.AvailableAgents(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, terrors.New(terrors.Unavailable, "no active agent sessions for this project")
	}
	return agents[0], nil
}

// Assign assigns workItemID to the given session, delivering a mailbox
// notification of the assignment.
func (c *Coordinator) Assign(ctx context.Context, workItemID, sessionID string) (*types.WorkItem, error) {
	item, err := c.items.Assign(ctx, workItemID, sessionID)
	if err != nil {
		return nil, err
	}
	err = c.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		_, err := tx.DeliverMessage(ctx, &types.AgentInteraction{
			SessionID:   sessionID,
			MessageType: types.MessageWorkAssignment,
			Priority:    item.Priority,
			Body:        fmt.Sprintf("assigned: %s", item.Title),
			WorkItemID:  item.ID,
		})
		return err
	})
	return item, err
}

// DispatchPending assigns up to limit pending work items to the
// least-busy available agents, highest priority first, round-robining
// across agents as each pick updates who is least busy.
func (c *Coordinator) DispatchPending(ctx context.Context, projectID int64, limit int) ([]*types.WorkItem, error) {
	pending, err := c.items.List(ctx, projectID, types.StatusPending)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority.Rank() > pending[j].Priority.Rank()
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	agents, err := c.AvailableAgents(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, nil
	}
	load := make(map[string]int, len(agents))
	for _, a := range agents {
		load[a.ID] = a.ActiveWorkCount
	}

	var dispatched []*types.WorkItem
	for _, item := range pending {
		leastBusy := leastBusyAgent(agents, load)
		assigned, err := c.Assign(ctx, item.ID, leastBusy)
		if err != nil {
			return nil, fmt.Errorf("dispatch %s: %w", item.ID, err)
		}
		load[leastBusy]++
		dispatched = append(dispatched, assigned)
	}
	return dispatched, nil
}

func leastBusyAgent(agents []*types.AgentSession, load map[string]int) string {
	best := agents[0].ID
	bestLoad := load[best]
	for _, a := range agents[1:] {
		if load[a.ID] < bestLoad {
			best = a.ID
			bestLoad = load[a.ID]
		}
	}
	return best
}

// MailboxSummary returns unread messages for sessionID.
func (c *Coordinator) MailboxSummary(ctx context.Context, sessionID string) ([]*types.AgentInteraction, error) {
	var out []*types.AgentInteraction
	err := c.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		out, err = tx.ListMailbox(ctx, sessionID, true)
		return err
	})
	return out, err
}

// StartConvoy transitions a draft convoy to active and assigns its
// first work item to sessionID, leaving the rest pending until the
// caller advances the convoy (spec §4.10: convoys dispatch one item at
// a time in position order).
func (c *Coordinator) StartConvoy(ctx context.Context, convoyID int64, sessionID string) error {
	var firstItemID string
	err := c.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		convoy, err := tx.GetConvoy(ctx, convoyID)
		if err != nil {
			return err
		}
		if convoy.Status != types.ConvoyDraft {
			return terrors.New(terrors.InvalidInput, fmt.Sprintf("convoy %d is not in draft state", convoyID))
		}
		items, err := tx.ListConvoyItems(ctx, convoyID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return terrors.New(terrors.InvalidInput, "convoy has no items")
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
		firstItemID = items[0].WorkItemID
		return tx.UpdateConvoyStatus(ctx, convoyID, types.ConvoyActive)
	})
	if err != nil {
		return err
	}
	_, err = c.Assign(ctx, firstItemID, sessionID)
	return err
}

// Utilization reports, for each active agent, how many work items it
// currently holds — a lightweight metric surface in place of a full
// observability stack (spec Non-goals exclude metrics pipelines, but
// this single read still needs to exist for DispatchPending's own
// fairness to be inspectable).
func (c *Coordinator) Utilization(ctx context.Context, projectID int64) (map[string]int, error) {
	agents, err := c.AvailableAgents(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(agents))
	for _, a := range agents {
		out[a.ID] = a.ActiveWorkCount
	}
	return out, nil
}
