package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

func (t *txWrapper) CreateBranch(ctx context.Context, b *types.Branch) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO branches (project_id, name, is_default, parent_branch_id)
		VALUES (?, ?, ?, ?)
	`, b.ProjectID, b.Name, b.IsDefault, b.ParentBranchID)
	if err != nil {
		return 0, fmt.Errorf("create branch %s: %w", b.Name, err)
	}
	return res.LastInsertId()
}

func (t *txWrapper) GetBranch(ctx context.Context, projectID int64, name string) (*types.Branch, error) {
	return t.scanBranch(t.q.QueryRowContext(ctx, `
		SELECT id, project_id, name, is_default, parent_branch_id, created_at
		FROM branches WHERE project_id = ? AND name = ?
	`, projectID, name))
}

func (t *txWrapper) GetBranchByID(ctx context.Context, id int64) (*types.Branch, error) {
	return t.scanBranch(t.q.QueryRowContext(ctx, `
		SELECT id, project_id, name, is_default, parent_branch_id, created_at
		FROM branches WHERE id = ?
	`, id))
}

func (t *txWrapper) scanBranch(row *sql.Row) (*types.Branch, error) {
	var b types.Branch
	if err := row.Scan(&b.ID, &b.ProjectID, &b.Name, &b.IsDefault, &b.ParentBranchID, &b.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "branch not found", err)
		}
		return nil, fmt.Errorf("scan branch: %w", err)
	}
	return &b, nil
}

func (t *txWrapper) ListBranches(ctx context.Context, projectID int64) ([]*types.Branch, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, project_id, name, is_default, parent_branch_id, created_at
		FROM branches WHERE project_id = ? ORDER BY name
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list branches for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []*types.Branch
	for rows.Next() {
		var b types.Branch
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.IsDefault, &b.ParentBranchID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan branch row: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

func (t *txWrapper) DeleteBranch(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM branches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete branch %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("branch %d not found", id))
	}
	return nil
}

// StageFile upserts one working_state row, the detector's per-path
// observation of add/modify/delete relative to the registry.
func (t *txWrapper) StageFile(ctx context.Context, ws types.WorkingState) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO working_state (project_id, branch_id, file_id, path, state, staged, detected_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, branch_id, path) DO UPDATE SET
			file_id = excluded.file_id,
			state = excluded.state,
			staged = excluded.staged,
			detected_hash = excluded.detected_hash
	`, ws.ProjectID, ws.BranchID, ws.FileID, ws.Path, string(ws.State), ws.Staged, ws.DetectedHash)
	if err != nil {
		return fmt.Errorf("stage file %s: %w", ws.Path, err)
	}
	return nil
}

func (t *txWrapper) UnstageFile(ctx context.Context, projectID, branchID, fileID int64) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE working_state SET staged = 0 WHERE project_id = ? AND branch_id = ? AND file_id = ?
	`, projectID, branchID, fileID)
	if err != nil {
		return fmt.Errorf("unstage file %d: %w", fileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("no working-state entry for file %d", fileID))
	}
	return nil
}

func (t *txWrapper) ListStaged(ctx context.Context, projectID, branchID int64) ([]types.WorkingState, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT project_id, branch_id, file_id, path, state, staged, detected_hash
		FROM working_state WHERE project_id = ? AND branch_id = ? AND staged = 1
		ORDER BY path
	`, projectID, branchID)
	if err != nil {
		return nil, fmt.Errorf("list staged files: %w", err)
	}
	defer rows.Close()

	var out []types.WorkingState
	for rows.Next() {
		var ws types.WorkingState
		var state string
		if err := rows.Scan(&ws.ProjectID, &ws.BranchID, &ws.FileID, &ws.Path, &state, &ws.Staged, &ws.DetectedHash); err != nil {
			return nil, fmt.Errorf("scan staged row: %w", err)
		}
		ws.State = types.WorkingFileState(state)
		out = append(out, ws)
	}
	return out, rows.Err()
}

func (t *txWrapper) ClearStaged(ctx context.Context, projectID, branchID int64) error {
	_, err := t.q.ExecContext(ctx, `DELETE FROM working_state WHERE project_id = ? AND branch_id = ?`, projectID, branchID)
	if err != nil {
		return fmt.Errorf("clear working state: %w", err)
	}
	return nil
}

// CreateCommit inserts a commit row plus its change records in one
// call, since a commit is never meaningfully created without at least
// one CommitFile (spec invariant I5).
func (t *txWrapper) CreateCommit(ctx context.Context, c *types.Commit, files []types.CommitFile) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO commits (project_id, branch_id, parent_commit_id, hash, author, message, files_changed, insertions, deletions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ProjectID, c.BranchID, c.ParentCommitID, c.Hash, c.Author, c.Message, c.Stats.FilesChanged, c.Stats.Insertions, c.Stats.Deletions)
	if err != nil {
		return 0, fmt.Errorf("create commit %s: %w", c.Hash, err)
	}
	commitID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, cf := range files {
		if _, err := t.q.ExecContext(ctx, `
			INSERT INTO commit_files (commit_id, file_id, change_type, old_content_hash, new_content_hash, old_path, new_path)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, commitID, cf.FileID, string(cf.ChangeType), cf.OldContentHash, cf.NewContentHash, cf.OldPath, cf.NewPath); err != nil {
			return 0, fmt.Errorf("insert commit file for commit %d: %w", commitID, err)
		}
	}

	return commitID, nil
}

func (t *txWrapper) GetCommit(ctx context.Context, id int64) (*types.Commit, error) {
	return t.scanCommit(t.q.QueryRowContext(ctx, `
		SELECT id, project_id, branch_id, parent_commit_id, hash, author, message, files_changed, insertions, deletions, created_at
		FROM commits WHERE id = ?
	`, id))
}

func (t *txWrapper) GetCommitByHash(ctx context.Context, projectID int64, hash string) (*types.Commit, error) {
	return t.scanCommit(t.q.QueryRowContext(ctx, `
		SELECT id, project_id, branch_id, parent_commit_id, hash, author, message, files_changed, insertions, deletions, created_at
		FROM commits WHERE project_id = ? AND hash = ?
	`, projectID, hash))
}

func (t *txWrapper) scanCommit(row *sql.Row) (*types.Commit, error) {
	var c types.Commit
	if err := row.Scan(&c.ID, &c.ProjectID, &c.BranchID, &c.ParentCommitID, &c.Hash, &c.Author, &c.Message,
		&c.Stats.FilesChanged, &c.Stats.Insertions, &c.Stats.Deletions, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "commit not found", err)
		}
		return nil, fmt.Errorf("scan commit: %w", err)
	}
	return &c, nil
}

func (t *txWrapper) ListCommits(ctx context.Context, branchID int64, limit int) ([]*types.Commit, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, project_id, branch_id, parent_commit_id, hash, author, message, files_changed, insertions, deletions, created_at
		FROM commits WHERE branch_id = ? ORDER BY id DESC LIMIT ?
	`, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("list commits for branch %d: %w", branchID, err)
	}
	defer rows.Close()

	var out []*types.Commit
	for rows.Next() {
		var c types.Commit
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.BranchID, &c.ParentCommitID, &c.Hash, &c.Author, &c.Message,
			&c.Stats.FilesChanged, &c.Stats.Insertions, &c.Stats.Deletions, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commit row: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (t *txWrapper) ListCommitFiles(ctx context.Context, commitID int64) ([]types.CommitFile, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, commit_id, file_id, change_type, old_content_hash, new_content_hash, old_path, new_path
		FROM commit_files WHERE commit_id = ? ORDER BY id
	`, commitID)
	if err != nil {
		return nil, fmt.Errorf("list commit files for commit %d: %w", commitID, err)
	}
	defer rows.Close()

	var out []types.CommitFile
	for rows.Next() {
		var cf types.CommitFile
		var changeType string
		if err := rows.Scan(&cf.ID, &cf.CommitID, &cf.FileID, &changeType, &cf.OldContentHash, &cf.NewContentHash, &cf.OldPath, &cf.NewPath); err != nil {
			return nil, fmt.Errorf("scan commit file row: %w", err)
		}
		cf.ChangeType = types.ChangeType(changeType)
		out = append(out, cf)
	}
	return out, rows.Err()
}

func (t *txWrapper) LatestCommit(ctx context.Context, branchID int64) (*types.Commit, error) {
	return t.scanCommit(t.q.QueryRowContext(ctx, `
		SELECT id, project_id, branch_id, parent_commit_id, hash, author, message, files_changed, insertions, deletions, created_at
		FROM commits WHERE branch_id = ? ORDER BY id DESC LIMIT 1
	`, branchID))
}
