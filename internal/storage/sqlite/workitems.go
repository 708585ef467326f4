package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

func encodeLabels(labels []string) string { return strings.Join(labels, ",") }

func decodeLabels(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (t *txWrapper) CreateWorkItem(ctx context.Context, w *types.WorkItem) error {
	var parentID sql.NullString
	if w.ParentID != "" {
		parentID = sql.NullString{String: w.ParentID, Valid: true}
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO work_items
			(id, project_id, title, description, item_type, priority, status, parent_id,
			 assigned_session_id, creating_session_id, labels, estimated_minutes,
			 started_at, completed_at, assigned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.ID, w.ProjectID, w.Title, w.Description, w.ItemType, string(w.Priority), string(w.Status), parentID,
		w.AssignedSessionID, w.CreatingSessionID, encodeLabels(w.Labels), w.EstimatedMinutes,
		w.StartedAt, w.CompletedAt, w.AssignedAt)
	if err != nil {
		return fmt.Errorf("create work item %s: %w", w.ID, err)
	}
	return nil
}

func (t *txWrapper) WorkItemExists(ctx context.Context, id string) (bool, error) {
	var dummy int
	err := t.q.QueryRowContext(ctx, `SELECT 1 FROM work_items WHERE id = ?`, id).Scan(&dummy)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check work item existence %s: %w", id, err)
	}
	return true, nil
}

func (t *txWrapper) GetWorkItem(ctx context.Context, id string) (*types.WorkItem, error) {
	return t.scanWorkItem(t.q.QueryRowContext(ctx, workItemSelect+` WHERE id = ?`, id))
}

const workItemSelect = `
	SELECT id, project_id, title, description, item_type, priority, status, parent_id,
	       assigned_session_id, creating_session_id, labels, estimated_minutes,
	       created_at, started_at, completed_at, assigned_at
	FROM work_items`

func (t *txWrapper) scanWorkItem(row *sql.Row) (*types.WorkItem, error) {
	var w types.WorkItem
	var priority, status, labels string
	var parentID sql.NullString
	if err := row.Scan(&w.ID, &w.ProjectID, &w.Title, &w.Description, &w.ItemType, &priority, &status, &parentID,
		&w.AssignedSessionID, &w.CreatingSessionID, &labels, &w.EstimatedMinutes,
		&w.CreatedAt, &w.StartedAt, &w.CompletedAt, &w.AssignedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "work item not found", err)
		}
		return nil, fmt.Errorf("scan work item: %w", err)
	}
	w.Priority = types.Priority(priority)
	w.Status = types.WorkItemStatus(status)
	w.Labels = decodeLabels(labels)
	if parentID.Valid {
		w.ParentID = parentID.String
	}
	return &w, nil
}

func (t *txWrapper) UpdateWorkItem(ctx context.Context, w *types.WorkItem) error {
	var parentID sql.NullString
	if w.ParentID != "" {
		parentID = sql.NullString{String: w.ParentID, Valid: true}
	}
	res, err := t.q.ExecContext(ctx, `
		UPDATE work_items SET
			title = ?, description = ?, item_type = ?, priority = ?, status = ?, parent_id = ?,
			assigned_session_id = ?, creating_session_id = ?, labels = ?, estimated_minutes = ?,
			started_at = ?, completed_at = ?, assigned_at = ?
		WHERE id = ?
	`, w.Title, w.Description, w.ItemType, string(w.Priority), string(w.Status), parentID,
		w.AssignedSessionID, w.CreatingSessionID, encodeLabels(w.Labels), w.EstimatedMinutes,
		w.StartedAt, w.CompletedAt, w.AssignedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update work item %s: %w", w.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("work item %s not found", w.ID))
	}
	return nil
}

func (t *txWrapper) ListWorkItems(ctx context.Context, projectID int64, status types.WorkItemStatus) ([]*types.WorkItem, error) {
	query := workItemSelect + ` WHERE project_id = ?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END, created_at`

	return t.queryWorkItems(ctx, query, args...)
}

func (t *txWrapper) ListChildWorkItems(ctx context.Context, parentID string) ([]*types.WorkItem, error) {
	return t.queryWorkItems(ctx, workItemSelect+` WHERE parent_id = ? ORDER BY created_at`, parentID)
}

func (t *txWrapper) queryWorkItems(ctx context.Context, query string, args ...any) ([]*types.WorkItem, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	defer rows.Close()

	var out []*types.WorkItem
	for rows.Next() {
		var w types.WorkItem
		var priority, status, labels string
		var parentID sql.NullString
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.Title, &w.Description, &w.ItemType, &priority, &status, &parentID,
			&w.AssignedSessionID, &w.CreatingSessionID, &labels, &w.EstimatedMinutes,
			&w.CreatedAt, &w.StartedAt, &w.CompletedAt, &w.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan work item row: %w", err)
		}
		w.Priority = types.Priority(priority)
		w.Status = types.WorkItemStatus(status)
		w.Labels = decodeLabels(labels)
		if parentID.Valid {
			w.ParentID = parentID.String
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (t *txWrapper) AppendWorkItemTransition(ctx context.Context, tr *types.WorkItemTransition) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO work_item_transitions (work_item_id, from_status, to_status, session_id)
		VALUES (?, ?, ?, ?)
	`, tr.WorkItemID, string(tr.FromStatus), string(tr.ToStatus), tr.SessionID)
	if err != nil {
		return fmt.Errorf("append transition for %s: %w", tr.WorkItemID, err)
	}
	return nil
}

func (t *txWrapper) ListWorkItemTransitions(ctx context.Context, workItemID string) ([]*types.WorkItemTransition, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, work_item_id, from_status, to_status, session_id, created_at
		FROM work_item_transitions WHERE work_item_id = ? ORDER BY id
	`, workItemID)
	if err != nil {
		return nil, fmt.Errorf("list transitions for %s: %w", workItemID, err)
	}
	defer rows.Close()

	var out []*types.WorkItemTransition
	for rows.Next() {
		var tr types.WorkItemTransition
		var from, to string
		if err := rows.Scan(&tr.ID, &tr.WorkItemID, &from, &to, &tr.SessionID, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		tr.FromStatus = types.WorkItemStatus(from)
		tr.ToStatus = types.WorkItemStatus(to)
		out = append(out, &tr)
	}
	return out, rows.Err()
}
