package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

func (t *txWrapper) CreateProject(ctx context.Context, p *types.Project) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO projects (slug, name, repository_url, default_branch)
		VALUES (?, ?, ?, ?)
	`, p.Slug, p.Name, p.RepositoryURL, p.DefaultBranch)
	if err != nil {
		return 0, fmt.Errorf("create project %s: %w", p.Slug, err)
	}
	return res.LastInsertId()
}

func (t *txWrapper) GetProject(ctx context.Context, id int64) (*types.Project, error) {
	return t.scanProject(t.q.QueryRowContext(ctx, `
		SELECT id, slug, name, repository_url, default_branch, created_at, updated_at
		FROM projects WHERE id = ?
	`, id))
}

func (t *txWrapper) GetProjectBySlug(ctx context.Context, slug string) (*types.Project, error) {
	return t.scanProject(t.q.QueryRowContext(ctx, `
		SELECT id, slug, name, repository_url, default_branch, created_at, updated_at
		FROM projects WHERE slug = ?
	`, slug))
}

func (t *txWrapper) scanProject(row *sql.Row) (*types.Project, error) {
	var p types.Project
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.RepositoryURL, &p.DefaultBranch, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "project not found", err)
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

func (t *txWrapper) UpsertFileType(ctx context.Context, ft types.FileType) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO file_types (tag, category) VALUES (?, ?)
		ON CONFLICT(tag) DO UPDATE SET category = excluded.category
	`, ft.Tag, ft.Category)
	if err != nil {
		return fmt.Errorf("upsert file type %s: %w", ft.Tag, err)
	}
	return nil
}

func (t *txWrapper) CreateFile(ctx context.Context, f *types.ProjectFile) (int64, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO project_files (project_id, relative_path, name, type_tag, line_count, status, current_hash, current_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, f.ProjectID, f.RelativePath, f.Name, f.TypeTag, f.LineCount, string(f.Status), f.CurrentHash, f.CurrentVersion)
	if err != nil {
		return 0, fmt.Errorf("create file %s: %w", f.RelativePath, err)
	}
	return res.LastInsertId()
}

func (t *txWrapper) GetFileByPath(ctx context.Context, projectID int64, relativePath string) (*types.ProjectFile, error) {
	return t.scanFile(t.q.QueryRowContext(ctx, `
		SELECT id, project_id, relative_path, name, type_tag, line_count, status, current_hash, current_version, created_at, updated_at
		FROM project_files WHERE project_id = ? AND relative_path = ?
	`, projectID, relativePath))
}

func (t *txWrapper) GetFile(ctx context.Context, fileID int64) (*types.ProjectFile, error) {
	return t.scanFile(t.q.QueryRowContext(ctx, `
		SELECT id, project_id, relative_path, name, type_tag, line_count, status, current_hash, current_version, created_at, updated_at
		FROM project_files WHERE id = ?
	`, fileID))
}

func (t *txWrapper) scanFile(row *sql.Row) (*types.ProjectFile, error) {
	var f types.ProjectFile
	var status string
	if err := row.Scan(&f.ID, &f.ProjectID, &f.RelativePath, &f.Name, &f.TypeTag, &f.LineCount, &status, &f.CurrentHash, &f.CurrentVersion, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "file not found", err)
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.Status = types.FileStatus(status)
	return &f, nil
}

func (t *txWrapper) ListFiles(ctx context.Context, projectID int64, includeDeleted bool) ([]*types.ProjectFile, error) {
	query := `
		SELECT id, project_id, relative_path, name, type_tag, line_count, status, current_hash, current_version, created_at, updated_at
		FROM project_files WHERE project_id = ?`
	if !includeDeleted {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY relative_path`

	rows, err := t.q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list files for project %d: %w", projectID, err)
	}
	defer rows.Close()

	var out []*types.ProjectFile
	for rows.Next() {
		var f types.ProjectFile
		var status string
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.RelativePath, &f.Name, &f.TypeTag, &f.LineCount, &status, &f.CurrentHash, &f.CurrentVersion, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		f.Status = types.FileStatus(status)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// AppendFileContent inserts the next version in a file's content
// chain and flips is_current so exactly one row per file_id carries
// it, then mirrors the new head onto project_files for cheap reads
// (spec invariant: exactly one current FileContent per active file).
func (t *txWrapper) AppendFileContent(ctx context.Context, fc *types.FileContent) (int64, error) {
	if _, err := t.q.ExecContext(ctx, `UPDATE file_contents SET is_current = 0 WHERE file_id = ? AND is_current = 1`, fc.FileID); err != nil {
		return 0, fmt.Errorf("clear previous current content for file %d: %w", fc.FileID, err)
	}

	res, err := t.q.ExecContext(ctx, `
		INSERT INTO file_contents (file_id, version, content_hash, size, line_count, is_current)
		VALUES (?, ?, ?, ?, ?, 1)
	`, fc.FileID, fc.Version, fc.ContentHash, fc.Size, fc.LineCount)
	if err != nil {
		return 0, fmt.Errorf("append file content for file %d version %d: %w", fc.FileID, fc.Version, err)
	}

	if _, err := t.q.ExecContext(ctx, `
		UPDATE project_files SET current_hash = ?, current_version = ?, line_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, fc.ContentHash, fc.Version, fc.LineCount, fc.FileID); err != nil {
		return 0, fmt.Errorf("update current pointer for file %d: %w", fc.FileID, err)
	}

	return res.LastInsertId()
}

func (t *txWrapper) MarkFileDeleted(ctx context.Context, fileID int64) error {
	res, err := t.q.ExecContext(ctx, `UPDATE project_files SET status = 'deleted', updated_at = CURRENT_TIMESTAMP WHERE id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("mark file %d deleted: %w", fileID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return terrors.New(terrors.NotFound, fmt.Sprintf("file %d not found", fileID))
	}
	return nil
}

func (t *txWrapper) GetFileContentByHash(ctx context.Context, fileID int64, hash string) (*types.FileContent, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT id, file_id, version, content_hash, size, line_count, is_current, created_at
		FROM file_contents WHERE file_id = ? AND content_hash = ?
		ORDER BY version DESC LIMIT 1
	`, fileID, hash)
	var fc types.FileContent
	if err := row.Scan(&fc.ID, &fc.FileID, &fc.Version, &fc.ContentHash, &fc.Size, &fc.LineCount, &fc.IsCurrent, &fc.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, terrors.Wrap(terrors.NotFound, "file content not found", err)
		}
		return nil, fmt.Errorf("scan file content: %w", err)
	}
	return &fc, nil
}

func (t *txWrapper) ListFileContentHistory(ctx context.Context, fileID int64) ([]*types.FileContent, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, file_id, version, content_hash, size, line_count, is_current, created_at
		FROM file_contents WHERE file_id = ? ORDER BY version
	`, fileID)
	if err != nil {
		return nil, fmt.Errorf("list content history for file %d: %w", fileID, err)
	}
	defer rows.Close()

	var out []*types.FileContent
	for rows.Next() {
		var fc types.FileContent
		if err := rows.Scan(&fc.ID, &fc.FileID, &fc.Version, &fc.ContentHash, &fc.Size, &fc.LineCount, &fc.IsCurrent, &fc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan content history row: %w", err)
		}
		out = append(out, &fc)
	}
	return out, rows.Err()
}
