// Package sqlite - database migrations
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/templedb/templedb/internal/storage/sqlite/migrations"
)

// Migration is one named, idempotent schema change applied in order
// during database initialization.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of all migrations to run. Append
// only; never reorder or remove an entry once it has shipped.
var migrationsList = []Migration{
	{"content_blob_kind_index", migrations.MigrateContentBlobKindIndex},
	{"work_item_priority_index", migrations.MigrateWorkItemLabelsIndex},
	{"checkout_snapshot_version_index", migrations.MigrateCheckoutSnapshotVersionIndex},
}

// MigrationInfo is metadata about a migration for introspection (e.g.
// a future `templedb migrate status` command).
type MigrationInfo struct {
	Name string `json:"name"`
}

// ListMigrations returns every registered migration. All migrations
// are idempotent, so this is not filtered to "pending" ones.
func ListMigrations() []MigrationInfo {
	result := make([]MigrationInfo, len(migrationsList))
	for i, m := range migrationsList {
		result[i] = MigrationInfo{Name: m.Name}
	}
	return result
}

// RunMigrations executes all registered migrations in order inside an
// EXCLUSIVE transaction, so two processes opening the same database
// file concurrently at first-run cannot race on check-then-modify
// schema changes.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true

	return nil
}
