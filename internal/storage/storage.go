// Package storage defines the persistence interface shared by every
// TempleDB component. A single Storage implementation (sqlite, see
// internal/storage/sqlite) backs the content store, file registry,
// VCS engine, checkout manager, commit engine, and work coordinator,
// the same way the teacher's internal/storage.Storage backs every
// subsystem of its issue tracker over one embedded database.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/templedb/templedb/internal/types"
)

// Transaction is the set of operations available inside RunInTransaction.
// It is a strict superset of read operations plus every mutating
// operation in the system; callers compose multi-step writes (e.g. the
// commit engine's atomic persist) by calling several of these within a
// single RunInTransaction invocation.
type Transaction interface {
	// Content store (C1).
	PutBlob(ctx context.Context, blob *types.ContentBlob) error
	GetBlob(ctx context.Context, hash string) (*types.ContentBlob, error)
	BlobExists(ctx context.Context, hash string) (bool, error)
	IncRefBlob(ctx context.Context, hash string) error
	DecRefBlob(ctx context.Context, hash string) (remaining int, err error)

	// File registry (C2).
	GetProject(ctx context.Context, id int64) (*types.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error)
	CreateProject(ctx context.Context, p *types.Project) (int64, error)
	UpsertFileType(ctx context.Context, ft types.FileType) error
	GetFileByPath(ctx context.Context, projectID int64, relativePath string) (*types.ProjectFile, error)
	GetFile(ctx context.Context, fileID int64) (*types.ProjectFile, error)
	ListFiles(ctx context.Context, projectID int64, includeDeleted bool) ([]*types.ProjectFile, error)
	CreateFile(ctx context.Context, f *types.ProjectFile) (int64, error)
	AppendFileContent(ctx context.Context, fc *types.FileContent) (int64, error)
	MarkFileDeleted(ctx context.Context, fileID int64) error
	GetFileContentByHash(ctx context.Context, fileID int64, hash string) (*types.FileContent, error)
	ListFileContentHistory(ctx context.Context, fileID int64) ([]*types.FileContent, error)

	// VCS engine (C5).
	CreateBranch(ctx context.Context, b *types.Branch) (int64, error)
	GetBranch(ctx context.Context, projectID int64, name string) (*types.Branch, error)
	GetBranchByID(ctx context.Context, id int64) (*types.Branch, error)
	ListBranches(ctx context.Context, projectID int64) ([]*types.Branch, error)
	DeleteBranch(ctx context.Context, id int64) error

	StageFile(ctx context.Context, ws types.WorkingState) error
	UnstageFile(ctx context.Context, projectID, branchID, fileID int64) error
	ListStaged(ctx context.Context, projectID, branchID int64) ([]types.WorkingState, error)
	ClearStaged(ctx context.Context, projectID, branchID int64) error

	CreateCommit(ctx context.Context, c *types.Commit, files []types.CommitFile) (int64, error)
	GetCommit(ctx context.Context, id int64) (*types.Commit, error)
	GetCommitByHash(ctx context.Context, projectID int64, hash string) (*types.Commit, error)
	ListCommits(ctx context.Context, branchID int64, limit int) ([]*types.Commit, error)
	ListCommitFiles(ctx context.Context, commitID int64) ([]types.CommitFile, error)
	LatestCommit(ctx context.Context, branchID int64) (*types.Commit, error)

	// Checkout manager (C6).
	CreateCheckout(ctx context.Context, c *types.Checkout) (int64, error)
	GetCheckout(ctx context.Context, id int64) (*types.Checkout, error)
	ListCheckouts(ctx context.Context, projectID int64) ([]*types.Checkout, error)
	DeleteCheckout(ctx context.Context, id int64) error
	TouchCheckout(ctx context.Context, id int64, at time.Time) error
	PutCheckoutSnapshot(ctx context.Context, snap types.CheckoutSnapshot) error
	GetCheckoutSnapshots(ctx context.Context, checkoutID int64) ([]types.CheckoutSnapshot, error)
	ClearCheckoutSnapshots(ctx context.Context, checkoutID int64) error

	// Work items (C9).
	CreateWorkItem(ctx context.Context, w *types.WorkItem) error
	GetWorkItem(ctx context.Context, id string) (*types.WorkItem, error)
	WorkItemExists(ctx context.Context, id string) (bool, error)
	UpdateWorkItem(ctx context.Context, w *types.WorkItem) error
	ListWorkItems(ctx context.Context, projectID int64, status types.WorkItemStatus) ([]*types.WorkItem, error)
	ListChildWorkItems(ctx context.Context, parentID string) ([]*types.WorkItem, error)
	AppendWorkItemTransition(ctx context.Context, t *types.WorkItemTransition) error
	ListWorkItemTransitions(ctx context.Context, workItemID string) ([]*types.WorkItemTransition, error)

	// Coordinator (C10).
	GetAgentSession(ctx context.Context, id string) (*types.AgentSession, error)
	ListActiveSessions(ctx context.Context, projectID int64) ([]*types.AgentSession, error)
	DeliverMessage(ctx context.Context, m *types.AgentInteraction) (int64, error)
	ListMailbox(ctx context.Context, sessionID string, unreadOnly bool) ([]*types.AgentInteraction, error)
	MarkMessageRead(ctx context.Context, id int64, at time.Time) error

	CreateConvoy(ctx context.Context, c *types.Convoy) (int64, error)
	GetConvoy(ctx context.Context, id int64) (*types.Convoy, error)
	AddConvoyItem(ctx context.Context, item types.ConvoyItem) error
	ListConvoyItems(ctx context.Context, convoyID int64) ([]types.ConvoyItem, error)
	UpdateConvoyStatus(ctx context.Context, id int64, status types.ConvoyStatus) error

	// Cathedral export/import config (C8), keyed by project.
	GetExportConfig(ctx context.Context, projectID int64, key string) (string, bool, error)
	SetExportConfig(ctx context.Context, projectID int64, key, value string) error
}

// Storage is a Transaction plus lifecycle and transaction-management
// operations, mirroring the teacher's storage.Storage: callers obtain
// one long-lived Storage, then wrap each logical operation in
// RunInTransaction.
type Storage interface {
	Transaction

	// RunInTransaction runs fn inside a BEGIN IMMEDIATE transaction,
	// committing on a nil return and rolling back otherwise (including
	// on panic, which is re-thrown after rollback).
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// UnderlyingDB exposes the raw *sql.DB for extensions (e.g. a
	// caller-supplied WASM classifier cache table) that need to create
	// or query their own tables against the same database file.
	UnderlyingDB() *sql.DB

	// UnderlyingConn exposes a single *sql.Conn bound to ctx, for
	// callers that need several statements on one connection (e.g. to
	// share a SQLite savepoint) without taking the write lock that
	// RunInTransaction takes.
	UnderlyingConn(ctx context.Context) (*sql.Conn, error)

	// Path returns the filesystem path the database was opened from.
	Path() string

	Close() error
}
