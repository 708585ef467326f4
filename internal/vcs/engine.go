// Package vcs implements the git-like semantics the spec lays over
// plain SQL rows (spec §4.5, C5): branches, a staging index, commits,
// history, and unified diffs. Conflict detection at commit time lives
// in internal/commitengine, which composes this package with the
// checkout manager.
package vcs

import (
	"context"
	"fmt"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/templedb/templedb/internal/idgen"
	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

// Engine is a thin, storage-backed wrapper exposing VCS operations.
type Engine struct {
	store storage.Storage
}

func New(store storage.Storage) *Engine {
	return &Engine{store: store}
}

// CreateBranch creates a new branch, optionally forked from an
// existing one. If fromBranch is "", the branch starts with no parent
// (an orphan branch, e.g. a fresh project's default branch).
func (e *Engine) CreateBranch(ctx context.Context, projectID int64, name, fromBranch string) (*types.Branch, error) {
	var branch *types.Branch
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if _, err := tx.GetBranch(ctx, projectID, name); err == nil {
			return terrors.New(terrors.InvalidInput, fmt.Sprintf("branch %q already exists", name))
		} else if !terrors.IsKind(err, terrors.NotFound) {
			return err
		}

		b := &types.Branch{ProjectID: projectID, Name: name}
		if fromBranch != "" {
			parent, err := tx.GetBranch(ctx, projectID, fromBranch)
			if err != nil {
				return fmt.Errorf("resolve parent branch %q: %w", fromBranch, err)
			}
			b.ParentBranchID = &parent.ID
		}

		id, err := tx.CreateBranch(ctx, b)
		if err != nil {
			return err
		}
		created, err := tx.GetBranchByID(ctx, id)
		if err != nil {
			return err
		}
		branch = created
		return nil
	})
	return branch, err
}

func (e *Engine) ListBranches(ctx context.Context, projectID int64) ([]*types.Branch, error) {
	var out []*types.Branch
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		out, err = tx.ListBranches(ctx, projectID)
		return err
	})
	return out, err
}

// Stage marks a working_state row as included in the next commit.
func (e *Engine) Stage(ctx context.Context, projectID, branchID, fileID int64) error {
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		staged, err := tx.ListStaged(ctx, projectID, branchID)
		if err != nil {
			return err
		}
		for _, s := range staged {
			if s.FileID == fileID {
				s.Staged = true
				return tx.StageFile(ctx, s)
			}
		}
		return terrors.New(terrors.NotFound, fmt.Sprintf("no working-state entry for file %d", fileID))
	})
}

// Unstage clears the staged flag on the working-state row for fileID,
// the inverse of Stage.
func (e *Engine) Unstage(ctx context.Context, projectID, branchID, fileID int64) error {
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.UnstageFile(ctx, projectID, branchID, fileID)
	})
}

// Commit persists the currently-staged files as a new commit on
// branchID, computing the commit's opaque hash from the project's
// slug, the branch name, the message, and wall-clock time (spec §6).
// It does not itself perform conflict detection; callers that need
// three-way conflict checking against a checkout snapshot should go
// through internal/commitengine instead.
func (e *Engine) Commit(ctx context.Context, projectID, branchID int64, author, message string, at time.Time) (*types.Commit, error) {
	var commit *types.Commit
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		branch, err := tx.GetBranchByID(ctx, branchID)
		if err != nil {
			return err
		}

		staged, err := tx.ListStaged(ctx, projectID, branchID)
		if err != nil {
			return err
		}
		if len(staged) == 0 {
			return terrors.New(terrors.InvalidInput, "nothing staged to commit")
		}

		parent, err := tx.LatestCommit(ctx, branchID)
		var parentID *int64
		if err == nil {
			parentID = &parent.ID
		} else if !terrors.IsKind(err, terrors.NotFound) {
			return err
		}

		hash := idgen.GenerateCommitHash(project.Slug, branch.Name, message, at)

		var files []types.CommitFile
		stats := types.CommitStats{}
		for _, s := range staged {
			cf, delta, err := commitFileFor(ctx, tx, s)
			if err != nil {
				return err
			}
			files = append(files, cf)
			stats.FilesChanged++
			stats.Insertions += delta.insertions
			stats.Deletions += delta.deletions
		}

		c := &types.Commit{
			ProjectID:      projectID,
			BranchID:       branchID,
			ParentCommitID: parentID,
			Hash:           hash,
			Author:         author,
			Message:        message,
			Stats:          stats,
		}
		id, err := tx.CreateCommit(ctx, c, files)
		if err != nil {
			return err
		}

		if err := tx.ClearStaged(ctx, projectID, branchID); err != nil {
			return err
		}

		created, err := tx.GetCommit(ctx, id)
		if err != nil {
			return err
		}
		commit = created
		return nil
	})
	return commit, err
}

type lineDelta struct {
	insertions int
	deletions  int
}

func commitFileFor(ctx context.Context, tx storage.Transaction, s types.WorkingState) (types.CommitFile, lineDelta, error) {
	switch s.State {
	case types.StateAdded:
		return types.CommitFile{
			FileID:         s.FileID,
			ChangeType:     types.ChangeAdded,
			NewContentHash: s.DetectedHash,
			NewPath:        s.Path,
		}, lineDelta{}, nil
	case types.StateDeleted:
		f, err := tx.GetFile(ctx, s.FileID)
		if err != nil {
			return types.CommitFile{}, lineDelta{}, err
		}
		return types.CommitFile{
			FileID:         s.FileID,
			ChangeType:     types.ChangeDeleted,
			OldContentHash: f.CurrentHash,
			OldPath:        s.Path,
		}, lineDelta{}, nil
	default: // modified
		f, err := tx.GetFile(ctx, s.FileID)
		if err != nil {
			return types.CommitFile{}, lineDelta{}, err
		}
		return types.CommitFile{
			FileID:         s.FileID,
			ChangeType:     types.ChangeModified,
			OldContentHash: f.CurrentHash,
			NewContentHash: s.DetectedHash,
			OldPath:        s.Path,
			NewPath:        s.Path,
		}, lineDelta{}, nil
	}
}

func (e *Engine) History(ctx context.Context, branchID int64, limit int) ([]*types.Commit, error) {
	var out []*types.Commit
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		out, err = tx.ListCommits(ctx, branchID, limit)
		return err
	})
	return out, err
}

// Diff compares two text blobs with Myers diff via sergi/go-diff and
// returns diffmatchpatch's pretty-printed inline rendering: unchanged
// text as-is, insertions and deletions wrapped in ANSI color codes.
// The output is not in unified-diff format (no file headers or hunks).
func Diff(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}

// DiffCommits resolves path's text content as of commitA and commitB
// (via each commit's CommitFile rows and the ContentBlob they point
// at) and returns Diff's rendering of the change. A zero commit id, or a
// commit with no CommitFile touching path, is treated as the empty
// string — the added/deleted case spec §4.5 calls out.
func (e *Engine) DiffCommits(ctx context.Context, path string, commitA, commitB int64) (string, error) {
	var oldText, newText string
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		var err error
		oldText, err = textAtCommit(ctx, tx, commitA, path)
		if err != nil {
			return err
		}
		newText, err = textAtCommit(ctx, tx, commitB, path)
		return err
	})
	if err != nil {
		return "", err
	}
	return Diff(oldText, newText), nil
}

// textAtCommit resolves the content hash CommitFile records for path
// at commitID (preferring the new side, falling back to the old side
// so a deletion's pre-image still resolves) and fetches its text from
// the blob store. Returns "" if commitID is zero or path was not
// touched by that commit.
func textAtCommit(ctx context.Context, tx storage.Transaction, commitID int64, path string) (string, error) {
	if commitID == 0 {
		return "", nil
	}
	files, err := tx.ListCommitFiles(ctx, commitID)
	if err != nil {
		return "", err
	}
	var hash string
	for _, cf := range files {
		if cf.NewPath == path {
			hash = cf.NewContentHash
			break
		}
		if cf.OldPath == path {
			hash = cf.OldContentHash
			break
		}
	}
	if hash == "" {
		return "", nil
	}
	blob, err := tx.GetBlob(ctx, hash)
	if err != nil {
		return "", err
	}
	return blob.Text, nil
}
