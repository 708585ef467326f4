package commitengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/types"
)

// persistChange reconciles one working-state change into the content
// store and file registry: added/modified files get a new blob
// (deduplicated by hash) and a new FileContent version; deleted files
// are marked and their blob reference count dropped.
func persistChange(ctx context.Context, tx storage.Transaction, projectID int64, checkoutPath string, ws *types.WorkingState) error {
	switch ws.State {
	case types.StateAdded:
		return createFile(ctx, tx, projectID, checkoutPath, ws)
	case types.StateModified:
		return updateFile(ctx, tx, checkoutPath, ws)
	case types.StateDeleted:
		return deleteFile(ctx, tx, ws)
	default:
		return nil
	}
}

func createFile(ctx context.Context, tx storage.Transaction, projectID int64, checkoutPath string, ws *types.WorkingState) error {
	data, err := os.ReadFile(filepath.Join(checkoutPath, filepath.FromSlash(ws.Path)))
	if err != nil {
		return fmt.Errorf("read new file %s: %w", ws.Path, err)
	}

	if err := tx.PutBlob(ctx, &types.ContentBlob{
		HashSHA256: ws.DetectedHash,
		Kind:       types.ContentText,
		Text:       string(data),
		Encoding:   "utf-8",
		LineCount:  strings.Count(string(data), "\n"),
		Size:       int64(len(data)),
	}); err != nil {
		return fmt.Errorf("store blob for %s: %w", ws.Path, err)
	}

	fileID, err := tx.CreateFile(ctx, &types.ProjectFile{
		ProjectID:    projectID,
		RelativePath: ws.Path,
		Name:         filepath.Base(ws.Path),
		Status:       types.FileActive,
	})
	if err != nil {
		return fmt.Errorf("register file %s: %w", ws.Path, err)
	}
	ws.FileID = fileID

	_, err = tx.AppendFileContent(ctx, &types.FileContent{
		FileID:      fileID,
		Version:     1,
		ContentHash: ws.DetectedHash,
		Size:        int64(len(data)),
		LineCount:   strings.Count(string(data), "\n"),
		IsCurrent:   true,
	})
	return err
}

func updateFile(ctx context.Context, tx storage.Transaction, checkoutPath string, ws *types.WorkingState) error {
	data, err := os.ReadFile(filepath.Join(checkoutPath, filepath.FromSlash(ws.Path)))
	if err != nil {
		return fmt.Errorf("read modified file %s: %w", ws.Path, err)
	}

	f, err := tx.GetFile(ctx, ws.FileID)
	if err != nil {
		return err
	}

	if err := tx.PutBlob(ctx, &types.ContentBlob{
		HashSHA256: ws.DetectedHash,
		Kind:       types.ContentText,
		Text:       string(data),
		Encoding:   "utf-8",
		LineCount:  strings.Count(string(data), "\n"),
		Size:       int64(len(data)),
	}); err != nil {
		return fmt.Errorf("store blob for %s: %w", ws.Path, err)
	}

	_, err = tx.AppendFileContent(ctx, &types.FileContent{
		FileID:      ws.FileID,
		Version:     f.CurrentVersion + 1,
		ContentHash: ws.DetectedHash,
		Size:        int64(len(data)),
		LineCount:   strings.Count(string(data), "\n"),
		IsCurrent:   true,
	})
	if err != nil {
		return err
	}

	if f.CurrentHash != "" {
		if _, err := tx.DecRefBlob(ctx, f.CurrentHash); err != nil {
			return fmt.Errorf("release old blob for %s: %w", ws.Path, err)
		}
	}
	return nil
}

func deleteFile(ctx context.Context, tx storage.Transaction, ws *types.WorkingState) error {
	f, err := tx.GetFile(ctx, ws.FileID)
	if err != nil {
		return err
	}
	if err := tx.MarkFileDeleted(ctx, ws.FileID); err != nil {
		return err
	}
	if f.CurrentHash != "" {
		if _, err := tx.DecRefBlob(ctx, f.CurrentHash); err != nil {
			return fmt.Errorf("release blob for deleted file %s: %w", ws.Path, err)
		}
	}
	return nil
}

func commitFileFromState(ctx context.Context, tx storage.Transaction, ws types.WorkingState) (types.CommitFile, error) {
	switch ws.State {
	case types.StateAdded:
		return types.CommitFile{
			FileID:         ws.FileID,
			ChangeType:     types.ChangeAdded,
			NewContentHash: ws.DetectedHash,
			NewPath:        ws.Path,
		}, nil
	case types.StateDeleted:
		return types.CommitFile{
			FileID:     ws.FileID,
			ChangeType: types.ChangeDeleted,
			OldPath:    ws.Path,
		}, nil
	default:
		history, err := tx.ListFileContentHistory(ctx, ws.FileID)
		if err != nil {
			return types.CommitFile{}, err
		}
		old := ""
		if len(history) >= 2 {
			old = history[len(history)-2].ContentHash
		}
		return types.CommitFile{
			FileID:         ws.FileID,
			ChangeType:     types.ChangeModified,
			OldContentHash: old,
			NewContentHash: ws.DetectedHash,
			OldPath:        ws.Path,
			NewPath:        ws.Path,
		}, nil
	}
}
