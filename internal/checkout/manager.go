// Package checkout implements the checkout manager (spec §4.6, C6):
// materializing a project's current branch content onto disk, tracking
// checkout snapshots for later conflict detection, and finding stale
// checkouts whose snapshot has drifted from the registry.
package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/types"
)

// BlobReader resolves a content hash to its bytes, implemented by
// internal/storage directly against content_blobs.
type BlobReader interface {
	GetBlob(ctx context.Context, hash string) (*types.ContentBlob, error)
}

type Manager struct {
	store storage.Storage
}

func New(store storage.Storage) *Manager {
	return &Manager{store: store}
}

// Materialize writes every active file of projectID's current
// registry state to checkoutPath, records a Checkout row, and snapshots
// each file's (hash, version) for later three-way conflict detection.
func (m *Manager) Materialize(ctx context.Context, projectID int64, checkoutPath string) (*types.Checkout, error) {
	if err := os.MkdirAll(checkoutPath, 0o755); err != nil {
		return nil, fmt.Errorf("create checkout directory: %w", err)
	}

	var result *types.Checkout
	err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		files, err := tx.ListFiles(ctx, projectID, false)
		if err != nil {
			return err
		}

		checkoutID, err := tx.CreateCheckout(ctx, &types.Checkout{ProjectID: projectID, CheckoutPath: checkoutPath})
		if err != nil {
			return err
		}

		for _, f := range files {
			if f.CurrentHash == "" {
				continue
			}
			blob, err := tx.GetBlob(ctx, f.CurrentHash)
			if err != nil {
				return fmt.Errorf("read blob for %s: %w", f.RelativePath, err)
			}
			if err := writeBlob(checkoutPath, f.RelativePath, blob); err != nil {
				return fmt.Errorf("write %s: %w", f.RelativePath, err)
			}
			if err := tx.PutCheckoutSnapshot(ctx, types.CheckoutSnapshot{
				CheckoutID:  checkoutID,
				FileID:      f.ID,
				ContentHash: f.CurrentHash,
				Version:     f.CurrentVersion,
			}); err != nil {
				return err
			}
		}

		c, err := tx.GetCheckout(ctx, checkoutID)
		if err != nil {
			return err
		}
		result = c
		return nil
	})
	return result, err
}

func writeBlob(checkoutPath, relativePath string, blob *types.ContentBlob) error {
	dest := filepath.Join(checkoutPath, filepath.FromSlash(relativePath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	var data []byte
	if blob.Kind == types.ContentBinary {
		data = blob.Bytes
	} else {
		data = []byte(blob.Text)
	}
	return os.WriteFile(dest, data, 0o644)
}

// Resync re-materializes a checkout in place, refreshing every file
// that has a newer registry version and updating its snapshot, then
// touches last_sync_at.
func (m *Manager) Resync(ctx context.Context, checkoutID int64) error {
	return m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		c, err := tx.GetCheckout(ctx, checkoutID)
		if err != nil {
			return err
		}
		files, err := tx.ListFiles(ctx, c.ProjectID, false)
		if err != nil {
			return err
		}
		snapshots, err := tx.GetCheckoutSnapshots(ctx, checkoutID)
		if err != nil {
			return err
		}
		byFile := make(map[int64]types.CheckoutSnapshot, len(snapshots))
		for _, s := range snapshots {
			byFile[s.FileID] = s
		}

		for _, f := range files {
			if f.CurrentHash == "" {
				continue
			}
			if snap, ok := byFile[f.ID]; ok && snap.Version == f.CurrentVersion {
				continue
			}
			blob, err := tx.GetBlob(ctx, f.CurrentHash)
			if err != nil {
				return fmt.Errorf("read blob for %s: %w", f.RelativePath, err)
			}
			if err := writeBlob(c.CheckoutPath, f.RelativePath, blob); err != nil {
				return fmt.Errorf("write %s: %w", f.RelativePath, err)
			}
			if err := tx.PutCheckoutSnapshot(ctx, types.CheckoutSnapshot{
				CheckoutID:  checkoutID,
				FileID:      f.ID,
				ContentHash: f.CurrentHash,
				Version:     f.CurrentVersion,
			}); err != nil {
				return err
			}
		}

		return tx.TouchCheckout(ctx, checkoutID, time.Now())
	})
}

func (m *Manager) List(ctx context.Context, projectID int64) ([]*types.Checkout, error) {
	var out []*types.Checkout
	err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		out, err = tx.ListCheckouts(ctx, projectID)
		return err
	})
	return out, err
}

// FindStale returns every checkout of projectID whose snapshot version
// for at least one file no longer matches the registry's current
// version — a caller-facing early warning ahead of the commit engine's
// own (authoritative) conflict check.
func (m *Manager) FindStale(ctx context.Context, projectID int64) ([]*types.Checkout, error) {
	var out []*types.Checkout
	err := m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		checkouts, err := tx.ListCheckouts(ctx, projectID)
		if err != nil {
			return err
		}
		files, err := tx.ListFiles(ctx, projectID, false)
		if err != nil {
			return err
		}
		currentVersion := make(map[int64]int, len(files))
		for _, f := range files {
			currentVersion[f.ID] = f.CurrentVersion
		}

		for _, c := range checkouts {
			snapshots, err := tx.GetCheckoutSnapshots(ctx, c.ID)
			if err != nil {
				return err
			}
			for _, s := range snapshots {
				if currentVersion[s.FileID] != s.Version {
					out = append(out, c)
					break
				}
			}
		}
		return nil
	})
	return out, err
}

func (m *Manager) Delete(ctx context.Context, checkoutID int64) error {
	return m.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteCheckout(ctx, checkoutID)
	})
}
