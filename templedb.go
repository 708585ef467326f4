// Package templedb is the public facade over TempleDB's internal
// packages, for Go programs embedding the store directly rather than
// going through cmd/templedb. It re-exports the storage interface and
// core domain types as aliases so callers never need to import
// internal/ packages themselves, mirroring the teacher's root-level
// beads.go extension surface.
package templedb

import (
	"context"

	"github.com/templedb/templedb/internal/cathedral"
	"github.com/templedb/templedb/internal/checkout"
	"github.com/templedb/templedb/internal/classify"
	"github.com/templedb/templedb/internal/commitengine"
	"github.com/templedb/templedb/internal/coordinator"
	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/storage/sqlite"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
	"github.com/templedb/templedb/internal/vcs"
	"github.com/templedb/templedb/internal/workitems"
)

// Storage and Transaction are re-exported so an embedding program can
// name the interfaces returned by NewSQLiteStorage without importing
// internal/storage.
type (
	Storage     = storage.Storage
	Transaction = storage.Transaction
)

// Domain types, re-exported for convenience.
type (
	Project        = types.Project
	ProjectFile    = types.ProjectFile
	ContentBlob    = types.ContentBlob
	Branch         = types.Branch
	Commit         = types.Commit
	WorkItem       = types.WorkItem
	WorkItemStatus = types.WorkItemStatus
	Priority       = types.Priority
	AgentSession   = types.AgentSession
	Checkout       = types.Checkout
)

const (
	StatusPending    = types.StatusPending
	StatusAssigned   = types.StatusAssigned
	StatusInProgress = types.StatusInProgress
	StatusBlocked    = types.StatusBlocked
	StatusCompleted  = types.StatusCompleted
	StatusCancelled  = types.StatusCancelled

	PriorityCritical = types.PriorityCritical
	PriorityHigh     = types.PriorityHigh
	PriorityMedium   = types.PriorityMedium
	PriorityLow      = types.PriorityLow
)

// Error taxonomy, re-exported.
type ErrorKind = terrors.Kind

const (
	ErrNotFound           = terrors.NotFound
	ErrConflict           = terrors.Conflict
	ErrIntegrityViolation = terrors.IntegrityViolation
	ErrInvalidInput       = terrors.InvalidInput
	ErrUnavailable        = terrors.Unavailable
	ErrCancelled          = terrors.Cancelled
	ErrNotImplemented     = terrors.NotImplemented
)

// IsErrorKind reports whether err carries the given ErrorKind.
func IsErrorKind(err error, kind ErrorKind) bool { return terrors.IsKind(err, kind) }

// NewSQLiteStorage opens (creating if needed) a TempleDB database at
// path, applying the baseline schema and any pending migrations.
func NewSQLiteStorage(ctx context.Context, path string) (Storage, error) {
	return sqlite.New(ctx, path)
}

// Components bundles the higher-level services that sit on top of
// Storage, constructed together since several of them depend on each
// other (e.g. the commit engine uses the same classifier as a bare
// working-state scan).
type Components struct {
	VCS         *vcs.Engine
	Checkouts   *checkout.Manager
	Commits     *commitengine.Engine
	WorkItems   *workitems.Service
	Coordinator *coordinator.Coordinator
	Classifier  *classify.Classifier
}

// NewComponents wires every higher-level service against store.
func NewComponents(store Storage) *Components {
	classifier := classify.New()
	return &Components{
		VCS:         vcs.New(store),
		Checkouts:   checkout.New(store),
		Commits:     commitengine.New(store, classifier),
		WorkItems:   workitems.New(store),
		Coordinator: coordinator.New(store),
		Classifier:  classifier,
	}
}

// ExportCathedral re-exports cathedral.Export for callers that only
// need the package export/import surface.
func ExportCathedral(ctx context.Context, store Storage, opts cathedral.ExportOptions) (*cathedral.Manifest, error) {
	return cathedral.Export(ctx, store, opts)
}

// ImportCathedral re-exports cathedral.Import.
func ImportCathedral(ctx context.Context, store Storage, opts cathedral.ImportOptions) (int64, error) {
	return cathedral.Import(ctx, store, opts)
}
