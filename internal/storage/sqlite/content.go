package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

// PutBlob inserts a new content-addressed blob, or bumps its
// reference count if the hash already exists (the common case: most
// commits reference at least one already-stored blob, e.g. an
// unmodified file that moved). The blob payload itself is immutable
// once stored, so an existing row is never overwritten.
func (t *txWrapper) PutBlob(ctx context.Context, blob *types.ContentBlob) error {
	exists, err := t.BlobExists(ctx, blob.HashSHA256)
	if err != nil {
		return err
	}
	if exists {
		return t.IncRefBlob(ctx, blob.HashSHA256)
	}

	_, err = t.q.ExecContext(ctx, `
		INSERT INTO content_blobs
			(hash_sha256, kind, text, encoding, content_type, bytes, line_count, size, reference_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, blob.HashSHA256, blob.Kind.String(), blob.Text, blob.Encoding, blob.ContentType, blob.Bytes, blob.LineCount, blob.Size)
	if err != nil {
		return fmt.Errorf("insert content blob %s: %w", blob.HashSHA256, err)
	}
	return nil
}

func (t *txWrapper) GetBlob(ctx context.Context, hash string) (*types.ContentBlob, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT hash_sha256, kind, text, encoding, content_type, bytes, line_count, size, reference_count, created_at
		FROM content_blobs WHERE hash_sha256 = ?
	`, hash)

	var b types.ContentBlob
	var kind string
	var blobBytes []byte
	if err := row.Scan(&b.HashSHA256, &kind, &b.Text, &b.Encoding, &b.ContentType, &blobBytes, &b.LineCount, &b.Size, &b.ReferenceCount, &b.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, fmt.Sprintf("blob %s not found", hash), err)
		}
		return nil, fmt.Errorf("scan blob %s: %w", hash, err)
	}
	if kind == "binary" {
		b.Kind = types.ContentBinary
		b.Bytes = blobBytes
	} else {
		b.Kind = types.ContentText
	}
	return &b, nil
}

func (t *txWrapper) BlobExists(ctx context.Context, hash string) (bool, error) {
	var dummy int
	err := t.q.QueryRowContext(ctx, `SELECT 1 FROM content_blobs WHERE hash_sha256 = ?`, hash).Scan(&dummy)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blob existence %s: %w", hash, err)
	}
	return true, nil
}

func (t *txWrapper) IncRefBlob(ctx context.Context, hash string) error {
	res, err := t.q.ExecContext(ctx, `UPDATE content_blobs SET reference_count = reference_count + 1 WHERE hash_sha256 = ?`, hash)
	if err != nil {
		return fmt.Errorf("incref blob %s: %w", hash, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("blob %s not found", hash))
	}
	return nil
}

// DecRefBlob drops the blob's reference count by one. A row reaching
// zero is left in place rather than deleted: CommitFile rows can still
// point at it by hash for history, and actual removal is deferred to a
// separate reference-count sweep that this package does not yet
// implement (spec I3).
func (t *txWrapper) DecRefBlob(ctx context.Context, hash string) (int, error) {
	res, err := t.q.ExecContext(ctx, `UPDATE content_blobs SET reference_count = reference_count - 1 WHERE hash_sha256 = ? AND reference_count > 0`, hash)
	if err != nil {
		return 0, fmt.Errorf("decref blob %s: %w", hash, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, terrors.New(terrors.NotFound, fmt.Sprintf("blob %s not found or already at zero references", hash))
	}

	var remaining int
	if err := t.q.QueryRowContext(ctx, `SELECT reference_count FROM content_blobs WHERE hash_sha256 = ?`, hash).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("read remaining refcount for %s: %w", hash, err)
	}
	return remaining, nil
}
