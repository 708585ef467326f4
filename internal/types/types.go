// Package types holds the data model shared across TempleDB's core
// components: projects, blobs, files, branches, commits, working state,
// checkouts, work items, and the agent coordination entities.
package types

import "time"

// Project is the top-level container. Every other entity except
// ContentBlob belongs to exactly one project.
type Project struct {
	ID              int64
	Slug            string
	Name            string
	RepositoryURL   string
	DefaultBranch   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FileType is a stable classification tag with a broad category, e.g.
// ("python", "language") or ("sql_migration", "data").
type FileType struct {
	Tag      string
	Category string
}

// ContentKind discriminates the two ContentBlob payload shapes. Consumers
// must pattern-match on Kind rather than inspect both payload fields,
// per spec §9 "Polymorphism over content kind".
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentBinary
)

func (k ContentKind) String() string {
	if k == ContentText {
		return "text"
	}
	return "binary"
}

// ContentBlob is the deduplicated, reference-counted byte payload stored
// under its SHA-256 hash. Global, not project-scoped (spec §3).
type ContentBlob struct {
	HashSHA256     string
	Kind           ContentKind
	Text           string // valid when Kind == ContentText
	Encoding       string // e.g. "utf-8"; valid when Kind == ContentText
	LineCount      int    // valid when Kind == ContentText
	Bytes          []byte // valid when Kind == ContentBinary
	ContentType    string // opaque discriminator (e.g. mime type); valid when Kind == ContentBinary
	Size           int64
	ReferenceCount int
	CreatedAt      time.Time
}

// FileStatus is the lifecycle state of a ProjectFile.
type FileStatus string

const (
	FileActive  FileStatus = "active"
	FileDeleted FileStatus = "deleted"
)

// ProjectFile is a (project, relative_path) identity. relative_path is
// unique within a project, never globally (spec invariant I8).
type ProjectFile struct {
	ID              int64
	ProjectID       int64
	RelativePath    string
	Name            string
	TypeTag         string
	LineCount       int
	Status          FileStatus
	CurrentHash     string // hash of the FileContent row with is_current=true, "" if none
	CurrentVersion  int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FileContent is one version in a file's content chain. Version numbers
// are monotonic integers starting at 1 (spec §3).
type FileContent struct {
	ID          int64
	FileID      int64
	Version     int
	ContentHash string
	Size        int64
	LineCount   int
	IsCurrent   bool
	CreatedAt   time.Time
}

// Branch is a named line of development within a project.
type Branch struct {
	ID             int64
	ProjectID      int64
	Name           string
	IsDefault      bool
	ParentBranchID *int64
	CreatedAt      time.Time
}

// Commit is an immutable record of file changes on a branch.
type Commit struct {
	ID             int64
	ProjectID      int64
	BranchID       int64
	ParentCommitID *int64
	Hash           string // 16-char uppercase hex, opaque
	Author         string
	Message        string
	CreatedAt      time.Time
	Stats          CommitStats
}

// CommitStats is a cached aggregate over a commit's CommitFile rows.
type CommitStats struct {
	FilesChanged int
	Insertions   int
	Deletions    int
}

// ChangeType classifies one file's change within a commit.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
	ChangeRenamed  ChangeType = "renamed"
)

// CommitFile is one changed file within a commit (spec invariant I5).
type CommitFile struct {
	ID             int64
	CommitID       int64
	FileID         int64
	ChangeType     ChangeType
	OldContentHash string // non-empty iff ChangeType in {modified, deleted, renamed}
	NewContentHash string // non-empty iff ChangeType in {added, modified, renamed}
	OldPath        string
	NewPath        string
}

// WorkingFileState classifies a file's state relative to its last-known
// registry content, within the scope of one branch.
type WorkingFileState string

const (
	StateUnmodified WorkingFileState = "unmodified"
	StateAdded      WorkingFileState = "added"
	StateModified   WorkingFileState = "modified"
	StateDeleted    WorkingFileState = "deleted"
)

// WorkingState is the per-branch diff between the filesystem and the
// file registry. The detector recomputes it on every run and upserts one
// working_state row per path.
type WorkingState struct {
	ProjectID   int64
	BranchID    int64
	FileID      int64
	Path        string
	State       WorkingFileState
	Staged      bool
	DetectedHash string
}

// Checkout records where a project is materialized on disk.
type Checkout struct {
	ID            int64
	ProjectID     int64
	CheckoutPath  string
	CreatedAt     time.Time
	LastSyncAt    time.Time
}

// CheckoutSnapshot is the third point in three-way conflict detection:
// the content hash and version of a file as of checkout time.
type CheckoutSnapshot struct {
	CheckoutID  int64
	FileID      int64
	ContentHash string
	Version     int
}

// WorkItemStatus is one node in the state machine from spec §4.9.
type WorkItemStatus string

const (
	StatusPending    WorkItemStatus = "pending"
	StatusAssigned   WorkItemStatus = "assigned"
	StatusInProgress WorkItemStatus = "in_progress"
	StatusBlocked    WorkItemStatus = "blocked"
	StatusCompleted  WorkItemStatus = "completed"
	StatusCancelled  WorkItemStatus = "cancelled"
)

// Priority orders dispatch: critical > high > medium > low.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank gives a numeric ordering for priority comparisons (higher first).
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// WorkItem is a unit of work tracked by the coordinator (spec §3, §4.9).
type WorkItem struct {
	ID                 string // "tdb-xxxxx"
	ProjectID          int64
	Title              string
	Description        string
	ItemType           string
	Priority           Priority
	Status             WorkItemStatus
	ParentID           string
	AssignedSessionID  string
	CreatingSessionID  string
	Labels             []string
	EstimatedMinutes   *int
	CreatedAt          time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	AssignedAt         *time.Time
}

// WorkItemTransition is an append-only audit row for one state change.
type WorkItemTransition struct {
	ID         int64
	WorkItemID string
	FromStatus WorkItemStatus
	ToStatus   WorkItemStatus
	SessionID  string
	CreatedAt  time.Time
}

// AgentSessionStatus is the lifecycle state of an agent session.
type AgentSessionStatus string

const (
	SessionActive   AgentSessionStatus = "active"
	SessionInactive AgentSessionStatus = "inactive"
)

// AgentSession is an opaque, externally-created row; the core only
// observes id, status, and workload (spec §4.10).
type AgentSession struct {
	ID                string
	ProjectID         int64
	Status            AgentSessionStatus
	ActiveWorkCount   int
	StartedAt         time.Time
}

// MailboxMessageType classifies a mailbox message.
type MailboxMessageType string

const (
	MessageWorkAssignment MailboxMessageType = "work_assignment"
	MessageNotification   MailboxMessageType = "notification"
)

// AgentInteraction is a single inbound mailbox message for a session.
type AgentInteraction struct {
	ID          int64
	SessionID   string
	MessageType MailboxMessageType
	Priority    Priority
	Body        string
	WorkItemID  string
	DeliveredAt time.Time
	ReadAt      *time.Time
}

// ConvoyStatus is the lifecycle state of a convoy.
type ConvoyStatus string

const (
	ConvoyDraft  ConvoyStatus = "draft"
	ConvoyActive ConvoyStatus = "active"
	ConvoyDone   ConvoyStatus = "done"
)

// Convoy is a named, ordered bundle of work items (spec §4.10).
type Convoy struct {
	ID          int64
	ProjectID   int64
	Name        string
	Description string
	Status      ConvoyStatus
	CreatedAt   time.Time
}

// ConvoyItem is one (convoy, work item, ordinal) membership row.
type ConvoyItem struct {
	ConvoyID   int64
	WorkItemID string
	Position   int
}

// ScannedFile is what the scanner (C3) emits for each surviving file.
type ScannedFile struct {
	AbsolutePath  string
	RelativePath  string
	FileName      string
	FileType      string
	ComponentName string
	LinesOfCode   int
	IsText        bool
}
