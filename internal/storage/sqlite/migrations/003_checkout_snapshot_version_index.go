package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateCheckoutSnapshotVersionIndex adds an index on
// checkout_snapshots(file_id, version), for lookups of snapshot rows by
// file rather than by checkout (the primary key leads with checkout_id).
func MigrateCheckoutSnapshotVersionIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_checkout_snapshots_file ON checkout_snapshots(file_id, version)`)
	if err != nil {
		return fmt.Errorf("failed to create checkout_snapshots file index: %w", err)
	}
	return nil
}
