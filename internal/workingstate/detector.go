// Package workingstate computes the ephemeral diff between a checkout's
// filesystem and the file registry (spec §4.4, C4): every scanned file
// is classified as unmodified, added, modified, or deleted relative to
// the project's currently-registered files.
package workingstate

import (
	"context"
	"fmt"

	"github.com/templedb/templedb/internal/classify"
	"github.com/templedb/templedb/internal/idgen"
	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/types"
)

// Detect rescans checkoutPath, compares every discovered file's
// content hash against the current registry state for branchID, and
// rewrites the branch's working_state rows to reflect exactly what was
// found (stale rows for files that disappeared are converted to
// "deleted" entries rather than removed, so a caller can still stage
// the deletion).
func Detect(ctx context.Context, tx storage.Transaction, c *classify.Classifier, projectID, branchID int64, checkoutPath string) ([]types.WorkingState, error) {
	scanned, err := classify.Scan(checkoutPath, c)
	if err != nil {
		return nil, fmt.Errorf("scan checkout: %w", err)
	}

	registered, err := tx.ListFiles(ctx, projectID, false)
	if err != nil {
		return nil, fmt.Errorf("list registered files: %w", err)
	}
	byPath := make(map[string]*types.ProjectFile, len(registered))
	for _, f := range registered {
		byPath[f.RelativePath] = f
	}

	seen := make(map[string]bool, len(scanned))
	var out []types.WorkingState

	for _, sf := range scanned {
		seen[sf.RelativePath] = true

		var detectedHash string
		if sf.IsText {
			contents, readErr := readFile(sf.AbsolutePath)
			if readErr != nil {
				return nil, fmt.Errorf("read %s: %w", sf.RelativePath, readErr)
			}
			detectedHash = idgen.SHA256Hex(contents)
		}

		existing, isRegistered := byPath[sf.RelativePath]
		ws := types.WorkingState{
			ProjectID:    projectID,
			BranchID:     branchID,
			Path:         sf.RelativePath,
			DetectedHash: detectedHash,
		}

		switch {
		case !isRegistered:
			ws.State = types.StateAdded
		case existing.CurrentHash != detectedHash:
			ws.FileID = existing.ID
			ws.State = types.StateModified
		default:
			ws.FileID = existing.ID
			ws.State = types.StateUnmodified
		}

		if err := tx.StageFile(ctx, ws); err != nil {
			return nil, fmt.Errorf("record working state for %s: %w", sf.RelativePath, err)
		}
		out = append(out, ws)
	}

	for _, f := range registered {
		if seen[f.RelativePath] {
			continue
		}
		ws := types.WorkingState{
			ProjectID: projectID,
			BranchID:  branchID,
			FileID:    f.ID,
			Path:      f.RelativePath,
			State:     types.StateDeleted,
		}
		if err := tx.StageFile(ctx, ws); err != nil {
			return nil, fmt.Errorf("record deletion for %s: %w", f.RelativePath, err)
		}
		out = append(out, ws)
	}

	return out, nil
}
