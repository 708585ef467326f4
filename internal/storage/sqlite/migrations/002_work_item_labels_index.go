package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateWorkItemLabelsIndex adds an index on work_items(project_id,
// status, priority), the columns work item listings filter on. It is
// registered as "work_item_priority_index"; the index does not include
// the labels column.
func MigrateWorkItemLabelsIndex(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_work_items_priority ON work_items(project_id, status, priority)`)
	if err != nil {
		return fmt.Errorf("failed to create work_items priority index: %w", err)
	}
	return nil
}
