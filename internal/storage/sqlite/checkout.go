package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

func (t *txWrapper) CreateCheckout(ctx context.Context, c *types.Checkout) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO checkouts (project_id, checkout_path) VALUES (?, ?)
	`, c.ProjectID, c.CheckoutPath)
	if err != nil {
		return 0, fmt.Errorf("create checkout at %s: %w", c.CheckoutPath, err)
	}
	return res.LastInsertId()
}

func (t *txWrapper) GetCheckout(ctx context.Context, id int64) (*types.Checkout, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT id, project_id, checkout_path, created_at, last_sync_at FROM checkouts WHERE id = ?
	`, id)
	var c types.Checkout
	if err := row.Scan(&c.ID, &c.ProjectID, &c.CheckoutPath, &c.CreatedAt, &c.LastSyncAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "checkout not found", err)
		}
		return nil, fmt.Errorf("scan checkout: %w", err)
	}
	return &c, nil
}

func (t *txWrapper) ListCheckouts(ctx context.Context, projectID int64) ([]*types.Checkout, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, project_id, checkout_path, created_at, last_sync_at FROM checkouts WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list checkouts for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []*types.Checkout
	for rows.Next() {
		var c types.Checkout
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.CheckoutPath, &c.CreatedAt, &c.LastSyncAt); err != nil {
			return nil, fmt.Errorf("scan checkout row: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (t *txWrapper) DeleteCheckout(ctx context.Context, id int64) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM checkout_snapshots WHERE checkout_id = ?`, id); err != nil {
		return fmt.Errorf("delete checkout snapshots for %d: %w", id, err)
	}
	res, err := t.q.ExecContext(ctx, `DELETE FROM checkouts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete checkout %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("checkout %d not found", id))
	}
	return nil
}

func (t *txWrapper) TouchCheckout(ctx context.Context, id int64, at time.Time) error {
	_, err := t.q.ExecContext(ctx, `UPDATE checkouts SET last_sync_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch checkout %d: %w", id, err)
	}
	return nil
}

func (t *txWrapper) PutCheckoutSnapshot(ctx context.Context, snap types.CheckoutSnapshot) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO checkout_snapshots (checkout_id, file_id, content_hash, version)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(checkout_id, file_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			version = excluded.version
	`, snap.CheckoutID, snap.FileID, snap.ContentHash, snap.Version)
	if err != nil {
		return fmt.Errorf("put checkout snapshot for file %d: %w", snap.FileID, err)
	}
	return nil
}

func (t *txWrapper) GetCheckoutSnapshots(ctx context.Context, checkoutID int64) ([]types.CheckoutSnapshot, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT checkout_id, file_id, content_hash, version FROM checkout_snapshots WHERE checkout_id = ?
	`, checkoutID)
	if err != nil {
		return nil, fmt.Errorf("list checkout snapshots for %d: %w", checkoutID, err)
	}
	defer rows.Close()

	var out []types.CheckoutSnapshot
	for rows.Next() {
		var s types.CheckoutSnapshot
		if err := rows.Scan(&s.CheckoutID, &s.FileID, &s.ContentHash, &s.Version); err != nil {
			return nil, fmt.Errorf("scan checkout snapshot row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *txWrapper) ClearCheckoutSnapshots(ctx context.Context, checkoutID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM checkout_snapshots WHERE checkout_id = ?`, checkoutID)
	if err != nil {
		return fmt.Errorf("clear checkout snapshots for %d: %w", checkoutID, err)
	}
	return nil
}
