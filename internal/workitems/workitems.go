// Package workitems implements work item lifecycle management (spec
// §4.9, C9): creation with collision-checked id generation, the status
// state machine, parent/child hierarchy with cycle protection, and an
// append-only transition audit trail.
package workitems

import (
	"context"
	"fmt"
	"time"

	"github.com/templedb/templedb/internal/idgen"
	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

// maxAncestorWalk bounds the parent-chain walk performed by Create
// (via validateParent) when validating a proposed ParentID, so a corrupted
// or adversarially-constructed chain can't hang the call.
const maxAncestorWalk = 1000

// allowedTransitions encodes the state machine from spec §4.9. A
// transition not listed here is rejected with terrors.InvalidInput.
var allowedTransitions = map[types.WorkItemStatus][]types.WorkItemStatus{
	types.StatusPending:    {types.StatusAssigned, types.StatusCancelled},
	types.StatusAssigned:   {types.StatusInProgress, types.StatusBlocked},
	types.StatusInProgress: {types.StatusCompleted, types.StatusBlocked},
	types.StatusBlocked:    {types.StatusInProgress},
	types.StatusCompleted:  {},
	types.StatusCancelled:  {},
}

func canTransition(from, to types.WorkItemStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Service struct {
	store storage.Storage
}

func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// CreateRequest describes a new work item.
type CreateRequest struct {
	ProjectID         int64
	Title             string
	Description       string
	ItemType          string
	Priority          types.Priority
	ParentID          string
	CreatingSessionID string
	Labels            []string
	EstimatedMinutes  *int
}

// Create validates req, generates a collision-free id, and persists
// the new item in the pending state.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*types.WorkItem, error) {
	if req.Title == "" {
		return nil, terrors.New(terrors.InvalidInput, "title is required")
	}
	if req.Priority == "" {
		req.Priority = types.PriorityMedium
	}

	var item *types.WorkItem
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if req.ParentID != "" {
			if err := validateParent(ctx, tx, req.ParentID); err != nil {
				return err
			}
		}

		id, err := idgen.GenerateWorkItemID(req.Title, req.Description, req.CreatingSessionID, time.Now(), func(candidate string) (bool, error) {
			return tx.WorkItemExists(ctx, candidate)
		})
		if err != nil {
			return err
		}

		w := &types.WorkItem{
			ID:                id,
			ProjectID:         req.ProjectID,
			Title:             req.Title,
			Description:       req.Description,
			ItemType:          req.ItemType,
			Priority:          req.Priority,
			Status:            types.StatusPending,
			ParentID:          req.ParentID,
			CreatingSessionID: req.CreatingSessionID,
			Labels:            req.Labels,
			EstimatedMinutes:  req.EstimatedMinutes,
		}
		if err := tx.CreateWorkItem(ctx, w); err != nil {
			return err
		}
		if err := tx.AppendWorkItemTransition(ctx, &types.WorkItemTransition{
			WorkItemID: id,
			ToStatus:   types.StatusPending,
		}); err != nil {
			return err
		}

		created, err := tx.GetWorkItem(ctx, id)
		if err != nil {
			return err
		}
		item = created
		return nil
	})
	return item, err
}

// validateParent confirms parentID exists and that attaching a child
// to it cannot produce a cycle, by walking up parentID's own ancestor
// chain and failing closed if the walk runs past maxAncestorWalk
// without reaching a root (spec §9's bounded-depth guidance).
func validateParent(ctx context.Context, tx storage.Transaction, parentID string) error {
	cursor := parentID
	for i := 0; i < maxAncestorWalk; i++ {
		item, err := tx.GetWorkItem(ctx, cursor)
		if err != nil {
			if terrors.IsKind(err, terrors.NotFound) {
				return terrors.New(terrors.InvalidInput, fmt.Sprintf("parent work item %s not found", parentID))
			}
			return err
		}
		if item.ParentID == "" {
			return nil
		}
		cursor = item.ParentID
	}
	return terrors.New(terrors.IntegrityViolation, fmt.Sprintf("ancestor chain from %s exceeds %d hops", parentID, maxAncestorWalk))
}

func (s *Service) Get(ctx context.Context, id string) (*types.WorkItem, error) {
	var item *types.WorkItem
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		item, err = tx.GetWorkItem(ctx, id)
		return err
	})
	return item, err
}

func (s *Service) List(ctx context.Context, projectID int64, status types.WorkItemStatus) ([]*types.WorkItem, error) {
	var items []*types.WorkItem
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		items, err = tx.ListWorkItems(ctx, projectID, status)
		return err
	})
	return items, err
}

// Transition moves id from its current status to `to`, validating the
// move against the state machine and recording it in the audit trail.
// sessionID is the acting agent, recorded on the transition row (it is
// not necessarily the item's assigned session, e.g. an operator
// cancelling a pending item nobody has picked up yet).
func (s *Service) Transition(ctx context.Context, id string, to types.WorkItemStatus, sessionID string) (*types.WorkItem, error) {
	var item *types.WorkItem
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		w, err := tx.GetWorkItem(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(w.Status, to) {
			return terrors.New(terrors.InvalidInput, fmt.Sprintf("cannot transition work item %s from %s to %s", id, w.Status, to))
		}

		now := time.Now()
		switch to {
		case types.StatusInProgress:
			if w.StartedAt == nil {
				w.StartedAt = &now
			}
		case types.StatusCompleted, types.StatusCancelled:
			w.CompletedAt = &now
		case types.StatusAssigned:
			w.AssignedAt = &now
		}

		from := w.Status
		w.Status = to
		if err := tx.UpdateWorkItem(ctx, w); err != nil {
			return err
		}
		if err := tx.AppendWorkItemTransition(ctx, &types.WorkItemTransition{
			WorkItemID: id,
			FromStatus: from,
			ToStatus:   to,
			SessionID:  sessionID,
		}); err != nil {
			return err
		}

		item = w
		return nil
	})
	return item, err
}

// Assign transitions id to assigned and records the assignee.
func (s *Service) Assign(ctx context.Context, id, sessionID string) (*types.WorkItem, error) {
	var item *types.WorkItem
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		w, err := tx.GetWorkItem(ctx, id)
		if err != nil {
			return err
		}
		if !canTransition(w.Status, types.StatusAssigned) {
			return terrors.New(terrors.InvalidInput, fmt.Sprintf("cannot assign work item %s from status %s", id, w.Status))
		}
		now := time.Now()
		from := w.Status
		w.Status = types.StatusAssigned
		w.AssignedSessionID = sessionID
		w.AssignedAt = &now
		if err := tx.UpdateWorkItem(ctx, w); err != nil {
			return err
		}
		if err := tx.AppendWorkItemTransition(ctx, &types.WorkItemTransition{
			WorkItemID: id, FromStatus: from, ToStatus: types.StatusAssigned, SessionID: sessionID,
		}); err != nil {
			return err
		}
		item = w
		return nil
	})
	return item, err
}

func (s *Service) Children(ctx context.Context, parentID string) ([]*types.WorkItem, error) {
	var out []*types.WorkItem
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		out, err = tx.ListChildWorkItems(ctx, parentID)
		return err
	})
	return out, err
}

func (s *Service) History(ctx context.Context, id string) ([]*types.WorkItemTransition, error) {
	var out []*types.WorkItemTransition
	err := s.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		out, err = tx.ListWorkItemTransitions(ctx, id)
		return err
	})
	return out, err
}
