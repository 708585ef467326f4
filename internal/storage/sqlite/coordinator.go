package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

func (t *txWrapper) GetAgentSession(ctx context.Context, id string) (*types.AgentSession, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT id, project_id, status, active_work_count, started_at FROM agent_sessions WHERE id = ?
	`, id)
	var s types.AgentSession
	var status string
	if err := row.Scan(&s.ID, &s.ProjectID, &status, &s.ActiveWorkCount, &s.StartedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, fmt.Sprintf("agent session %s not found", id), err)
		}
		return nil, fmt.Errorf("scan agent session: %w", err)
	}
	s.Status = types.AgentSessionStatus(status)
	return &s, nil
}

func (t *txWrapper) ListActiveSessions(ctx context.Context, projectID int64) ([]*types.AgentSession, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, project_id, status, active_work_count, started_at
		FROM agent_sessions WHERE project_id = ? AND status = 'active'
		ORDER BY active_work_count ASC, started_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []*types.AgentSession
	for rows.Next() {
		var s types.AgentSession
		var status string
		if err := rows.Scan(&s.ID, &s.ProjectID, &status, &s.ActiveWorkCount, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("scan agent session row: %w", err)
		}
		s.Status = types.AgentSessionStatus(status)
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (t *txWrapper) DeliverMessage(ctx context.Context, m *types.AgentInteraction) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO agent_interactions (session_id, message_type, priority, body, work_item_id)
		VALUES (?, ?, ?, ?, ?)
	`, m.SessionID, string(m.MessageType), string(m.Priority), m.Body, m.WorkItemID)
	if err != nil {
		return 0, fmt.Errorf("deliver message to %s: %w", m.SessionID, err)
	}
	return res.LastInsertId()
}

func (t *txWrapper) ListMailbox(ctx context.Context, sessionID string, unreadOnly bool) ([]*types.AgentInteraction, error) {
	query := `
		SELECT id, session_id, message_type, priority, body, work_item_id, delivered_at, read_at
		FROM agent_interactions WHERE session_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY delivered_at`

	rows, err := t.q.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list mailbox for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*types.AgentInteraction
	for rows.Next() {
		var m types.AgentInteraction
		var msgType, priority string
		if err := rows.Scan(&m.ID, &m.SessionID, &msgType, &priority, &m.Body, &m.WorkItemID, &m.DeliveredAt, &m.ReadAt); err != nil {
			return nil, fmt.Errorf("scan mailbox row: %w", err)
		}
		m.MessageType = types.MailboxMessageType(msgType)
		m.Priority = types.Priority(priority)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (t *txWrapper) MarkMessageRead(ctx context.Context, id int64, at time.Time) error {
	res, err := t.q.ExecContext(ctx, `UPDATE agent_interactions SET read_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("mark message %d read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("message %d not found", id))
	}
	return nil
}

func (t *txWrapper) CreateConvoy(ctx context.Context, c *types.Convoy) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO convoys (project_id, name, description, status) VALUES (?, ?, ?, ?)
	`, c.ProjectID, c.Name, c.Description, string(c.Status))
	if err != nil {
		return 0, fmt.Errorf("create convoy %s: %w", c.Name, err)
	}
	return res.LastInsertId()
}

func (t *txWrapper) GetConvoy(ctx context.Context, id int64) (*types.Convoy, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT id, project_id, name, description, status, created_at FROM convoys WHERE id = ?
	`, id)
	var c types.Convoy
	var status string
	if err := row.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &status, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "convoy not found", err)
		}
		return nil, fmt.Errorf("scan convoy: %w", err)
	}
	c.Status = types.ConvoyStatus(status)
	return &c, nil
}

func (t *txWrapper) AddConvoyItem(ctx context.Context, item types.ConvoyItem) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO convoy_items (convoy_id, work_item_id, position) VALUES (?, ?, ?)
	`, item.ConvoyID, item.WorkItemID, item.Position)
	if err != nil {
		return fmt.Errorf("add convoy item %s: %w", item.WorkItemID, err)
	}
	return nil
}

func (t *txWrapper) ListConvoyItems(ctx context.Context, convoyID int64) ([]types.ConvoyItem, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT convoy_id, work_item_id, position FROM convoy_items WHERE convoy_id = ? ORDER BY position
	`, convoyID)
	if err != nil {
		return nil, fmt.Errorf("list convoy items for %d: %w", convoyID, err)
	}
	defer rows.Close()

	var out []types.ConvoyItem
	for rows.Next() {
		var item types.ConvoyItem
		if err := rows.Scan(&item.ConvoyID, &item.WorkItemID, &item.Position); err != nil {
			return nil, fmt.Errorf("scan convoy item row: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (t *txWrapper) UpdateConvoyStatus(ctx context.Context, id int64, status types.ConvoyStatus) error {
	res, err := t.q.ExecContext(ctx, `UPDATE convoys SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update convoy %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("convoy %d not found", id))
	}
	return nil
}

func (t *txWrapper) GetExportConfig(ctx context.Context, projectID int64, key string) (string, bool, error) {
	var value string
	err := t.q.QueryRowContext(ctx, `SELECT value FROM export_config WHERE project_id = ? AND key = ?`, projectID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get export config %s: %w", key, err)
	}
	return value, true, nil
}

func (t *txWrapper) SetExportConfig(ctx context.Context, projectID int64, key, value string) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO export_config (project_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(project_id, key) DO UPDATE SET value = excluded.value
	`, projectID, key, value)
	if err != nil {
		return fmt.Errorf("set export config %s: %w", key, err)
	}
	return nil
}
