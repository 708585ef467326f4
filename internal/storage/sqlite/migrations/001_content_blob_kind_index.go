package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateContentBlobKindIndex adds an index on content_blobs.kind, so a
// query that filters or counts blobs by kind (text vs. binary) can use
// the index instead of scanning every row.
func MigrateContentBlobKindIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_content_blobs_kind ON content_blobs(kind)`)
	if err != nil {
		return fmt.Errorf("failed to create content_blobs kind index: %w", err)
	}
	return nil
}
