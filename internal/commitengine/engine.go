// Package commitengine implements the commit engine (spec §4.7, C7):
// it rescans a checkout, classifies every working-state change,
// detects conflicts against the checkout's last-known snapshot using
// three-way comparison (not locking), and atomically persists the
// result as a commit plus an updated checkout snapshot.
//
// An advisory file lock (github.com/gofrs/flock) scopes the
// filesystem-rescan span in addition to the database transaction: the
// DB transaction alone guarantees atomicity of the persisted rows, but
// cannot stop a second process from rewriting files on disk mid-scan.
package commitengine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/templedb/templedb/internal/classify"
	"github.com/templedb/templedb/internal/idgen"
	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
	"github.com/templedb/templedb/internal/workingstate"
)

// Strategy governs how Commit behaves when a staged file's checkout
// snapshot version no longer matches the registry's current version.
type Strategy string

const (
	// StrategyAbort fails the whole commit with a Conflict error
	// listing every conflicting file (the default).
	StrategyAbort Strategy = "abort"
	// StrategyForce commits anyway, overwriting the registry's current
	// version with the checkout's content regardless of the conflict.
	StrategyForce Strategy = "force"
	// StrategyRebase would replay the checkout's changes onto the
	// current version instead of either aborting or blindly
	// overwriting it. Not implemented.
	StrategyRebase Strategy = "rebase"
)

type Engine struct {
	store      storage.Storage
	classifier *classify.Classifier
}

func New(store storage.Storage, classifier *classify.Classifier) *Engine {
	return &Engine{store: store, classifier: classifier}
}

// Request describes one commit attempt sourced from a checkout.
type Request struct {
	ProjectID    int64
	BranchID     int64
	CheckoutID   int64
	CheckoutPath string
	Author       string
	Message      string
	Strategy     Strategy
}

// Commit rescans req.CheckoutPath, classifies the resulting working
// state, checks it for conflicts against req.CheckoutID's snapshot,
// and — absent an aborting conflict — persists a new commit plus blob
// and file-registry updates in one transaction.
func (e *Engine) Commit(ctx context.Context, req Request) (*types.Commit, error) {
	if req.Strategy == "" {
		req.Strategy = StrategyAbort
	}
	switch req.Strategy {
	case StrategyAbort, StrategyForce:
	case StrategyRebase:
		return nil, terrors.New(terrors.NotImplemented, "rebase commit strategy is not implemented")
	default:
		return nil, terrors.New(terrors.InvalidInput, fmt.Sprintf("unknown change strategy %q", req.Strategy))
	}

	const lockFileName = ".templedb-commit.lock"
	lockPath := filepath.Join(req.CheckoutPath, lockFileName)
	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire commit lock: %w", err)
	}
	if !locked {
		return nil, terrors.New(terrors.Unavailable, "another commit is already in progress for this checkout")
	}
	defer fl.Unlock()

	var commit *types.Commit
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.ClearStaged(ctx, req.ProjectID, req.BranchID); err != nil {
			return err
		}

		changes, err := workingstate.Detect(ctx, tx, e.classifier, req.ProjectID, req.BranchID, req.CheckoutPath)
		if err != nil {
			return fmt.Errorf("detect working state: %w", err)
		}

		var toCommit []types.WorkingState
		for _, ws := range changes {
			// The lock file sits in the checkout directory but is not
			// project content.
			if ws.State == types.StateUnmodified || ws.Path == lockFileName {
				continue
			}
			toCommit = append(toCommit, ws)
		}
		if len(toCommit) == 0 {
			return terrors.New(terrors.InvalidInput, "no changes detected")
		}

		conflicts, err := checkConflicts(ctx, tx, req.CheckoutID, toCommit)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 && req.Strategy == StrategyAbort {
			return terrors.NewConflict(fmt.Sprintf("%d file(s) changed since checkout", len(conflicts)), conflicts)
		}

		for i := range toCommit {
			toCommit[i].Staged = true
			if err := tx.StageFile(ctx, toCommit[i]); err != nil {
				return err
			}
			if err := persistChange(ctx, tx, req.ProjectID, req.CheckoutPath, &toCommit[i]); err != nil {
				return err
			}
		}

		project, err := tx.GetProject(ctx, req.ProjectID)
		if err != nil {
			return err
		}
		branch, err := tx.GetBranchByID(ctx, req.BranchID)
		if err != nil {
			return err
		}

		parent, err := tx.LatestCommit(ctx, req.BranchID)
		var parentID *int64
		if err == nil {
			parentID = &parent.ID
		} else if !terrors.IsKind(err, terrors.NotFound) {
			return err
		}

		now := time.Now()
		hash := idgen.GenerateCommitHash(project.Slug, branch.Name, req.Message, now)

		var commitFiles []types.CommitFile
		stats := types.CommitStats{FilesChanged: len(toCommit)}
		for _, ws := range toCommit {
			cf, err := commitFileFromState(ctx, tx, ws)
			if err != nil {
				return err
			}
			commitFiles = append(commitFiles, cf)
		}

		id, err := tx.CreateCommit(ctx, &types.Commit{
			ProjectID:      req.ProjectID,
			BranchID:       req.BranchID,
			ParentCommitID: parentID,
			Hash:           hash,
			Author:         req.Author,
			Message:        req.Message,
			Stats:          stats,
		}, commitFiles)
		if err != nil {
			return err
		}

		if err := tx.ClearStaged(ctx, req.ProjectID, req.BranchID); err != nil {
			return err
		}

		refreshedFiles, err := tx.ListFiles(ctx, req.ProjectID, false)
		if err != nil {
			return err
		}
		if err := tx.ClearCheckoutSnapshots(ctx, req.CheckoutID); err != nil {
			return err
		}
		for _, f := range refreshedFiles {
			if f.CurrentHash == "" {
				continue
			}
			if err := tx.PutCheckoutSnapshot(ctx, types.CheckoutSnapshot{
				CheckoutID:  req.CheckoutID,
				FileID:      f.ID,
				ContentHash: f.CurrentHash,
				Version:     f.CurrentVersion,
			}); err != nil {
				return err
			}
		}
		if err := tx.TouchCheckout(ctx, req.CheckoutID, now); err != nil {
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

// checkConflicts compares each changed file's checkout-time version
// against its current registry version: a mismatch means someone else
// committed a newer version of that file since this checkout last
// synced (the three-way check from spec §4.7, evaluated entirely from
// stored snapshot/version numbers rather than a lock).
func checkConflicts(ctx context.Context, tx storage.Transaction, checkoutID int64, changes []types.WorkingState) ([]terrors.ConflictingFile, error) {
	snapshots, err := tx.GetCheckoutSnapshots(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	snapByFile := make(map[int64]types.CheckoutSnapshot, len(snapshots))
	for _, s := range snapshots {
		snapByFile[s.FileID] = s
	}

	var conflicts []terrors.ConflictingFile
	for _, ws := range changes {
		if ws.FileID == 0 {
			continue // newly added file, nothing to conflict with
		}
		f, err := tx.GetFile(ctx, ws.FileID)
		if err != nil {
			return nil, err
		}
		snap, hadSnapshot := snapByFile[ws.FileID]
		yourVersion := 0
		if hadSnapshot {
			yourVersion = snap.Version
		}
		if yourVersion != f.CurrentVersion {
			conflicts = append(conflicts, terrors.ConflictingFile{
				Path:           ws.Path,
				YourVersion:    yourVersion,
				CurrentVersion: f.CurrentVersion,
			})
		}
	}
	return conflicts, nil
}
