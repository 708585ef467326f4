package cathedral

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/mod/semver"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

// ImportOptions configures Import.
type ImportOptions struct {
	SourcePath  string // a directory, a .tar.zst, or a .tar.gz
	ProjectSlug string // overrides project.json's slug if non-empty
}

// Import reads a Cathedral package from opts.SourcePath, verifies its
// checksum, and recreates the project, its files, its branches, and
// its commit history in store. Returns the new project's id.
func Import(ctx context.Context, store storage.Storage, opts ImportOptions) (int64, error) {
	workDir, cleanup, err := materializeSource(opts.SourcePath)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	manifest, err := readManifest(workDir)
	if err != nil {
		return 0, err
	}
	if !semver.IsValid("v" + manifest.Version) {
		return 0, terrors.New(terrors.IntegrityViolation, fmt.Sprintf("package has invalid format version %q", manifest.Version))
	}
	if semver.Compare("v"+manifest.Version, "v"+ManifestVersion) > 0 {
		return 0, terrors.New(terrors.InvalidInput, fmt.Sprintf("package format %s is newer than supported %s", manifest.Version, ManifestVersion))
	}

	if err := verifyChecksum(workDir, manifest.Checksums.SHA256); err != nil {
		return 0, err
	}

	project, err := readProjectRecord(workDir)
	if err != nil {
		return 0, err
	}
	entries, err := readFileEntries(workDir)
	if err != nil {
		return 0, err
	}
	sortByDepth(entries)

	branches, err := readBranchRecords(workDir)
	if err != nil {
		return 0, err
	}
	commits, err := readCommits(workDir)
	if err != nil {
		return 0, err
	}

	slug := project.Slug
	if opts.ProjectSlug != "" {
		slug = opts.ProjectSlug
	}

	var projectID int64
	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		id, err := tx.CreateProject(ctx, &types.Project{
			Slug:          slug,
			Name:          project.Name,
			DefaultBranch: project.DefaultBranch,
		})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		projectID = id

		if project.Visibility != "" {
			if err := tx.SetExportConfig(ctx, id, "visibility", project.Visibility); err != nil {
				return fmt.Errorf("restore visibility: %w", err)
			}
		}
		if project.License != "" {
			if err := tx.SetExportConfig(ctx, id, "license", project.License); err != nil {
				return fmt.Errorf("restore license: %w", err)
			}
		}

		branchIDs, err := createBranches(ctx, tx, id, branches, project.DefaultBranch)
		if err != nil {
			return err
		}

		fileIDs := map[string]int64{}
		for _, entry := range entries {
			if entry.HashSHA256 != "" {
				if err := importBlob(ctx, tx, workDir, entry.FileID, entry.HashSHA256); err != nil {
					return err
				}
			}

			fid, err := tx.CreateFile(ctx, &types.ProjectFile{
				ProjectID:    id,
				RelativePath: entry.FilePath,
				Name:         filepath.Base(entry.FilePath),
				TypeTag:      entry.FileType,
				LineCount:    entry.LinesOfCode,
				Status:       types.FileActive,
			})
			if err != nil {
				return fmt.Errorf("create file %s: %w", entry.FilePath, err)
			}
			fileIDs[entry.FilePath] = fid

			if entry.HashSHA256 != "" {
				if _, err := tx.AppendFileContent(ctx, &types.FileContent{
					FileID:      fid,
					Version:     entry.VersionNumber,
					ContentHash: entry.HashSHA256,
					Size:        entry.FileSizeBytes,
					LineCount:   entry.LinesOfCode,
					IsCurrent:   true,
				}); err != nil {
					return fmt.Errorf("append content for %s: %w", entry.FilePath, err)
				}
			}
		}

		hashToCommitID := map[string]int64{}
		for _, rec := range commits {
			bid, ok := branchIDs[rec.BranchName]
			if !ok {
				return terrors.New(terrors.IntegrityViolation, fmt.Sprintf("commit %s references unknown branch %s", rec.Hash, rec.BranchName))
			}
			var parentID *int64
			if rec.ParentHash != "" {
				if pid, ok := hashToCommitID[rec.ParentHash]; ok {
					parentID = &pid
				}
			}

			var files []types.CommitFile
			for _, path := range rec.ChangedPaths {
				if fid, ok := fileIDs[path]; ok {
					files = append(files, types.CommitFile{FileID: fid, ChangeType: types.ChangeAdded, NewPath: path})
				}
			}

			cid, err := tx.CreateCommit(ctx, &types.Commit{
				ProjectID:      id,
				BranchID:       bid,
				ParentCommitID: parentID,
				Hash:           rec.Hash,
				Author:         rec.Author,
				Message:        rec.Message,
				Stats:          types.CommitStats{FilesChanged: len(files)},
			}, files)
			if err != nil {
				return fmt.Errorf("recreate commit %s: %w", rec.Hash, err)
			}
			hashToCommitID[rec.Hash] = cid
		}

		return nil
	})
	return projectID, err
}

// createBranches recreates branches in parent-before-child order (a
// branch record naming a parent that has not been created yet would
// otherwise fail the foreign-key lookup), falling back to a single
// default branch if the package carried none (an older export, or one
// taken before the first commit).
func createBranches(ctx context.Context, tx storage.Transaction, projectID int64, records []BranchRecord, defaultBranch string) (map[string]int64, error) {
	ids := map[string]int64{}
	if len(records) == 0 {
		bid, err := tx.CreateBranch(ctx, &types.Branch{ProjectID: projectID, Name: defaultBranch, IsDefault: true})
		if err != nil {
			return nil, fmt.Errorf("create default branch: %w", err)
		}
		ids[defaultBranch] = bid
		return ids, nil
	}

	remaining := append([]BranchRecord(nil), records...)
	for len(remaining) > 0 {
		progressed := false
		var next []BranchRecord
		for _, rec := range remaining {
			if rec.ParentBranchName != "" {
				if _, ok := ids[rec.ParentBranchName]; !ok {
					next = append(next, rec)
					continue
				}
			}
			b := &types.Branch{ProjectID: projectID, Name: rec.Name, IsDefault: rec.IsDefault}
			if rec.ParentBranchName != "" {
				parentID := ids[rec.ParentBranchName]
				b.ParentBranchID = &parentID
			}
			bid, err := tx.CreateBranch(ctx, b)
			if err != nil {
				return nil, fmt.Errorf("create branch %s: %w", rec.Name, err)
			}
			ids[rec.Name] = bid
			progressed = true
		}
		if !progressed {
			return nil, terrors.New(terrors.IntegrityViolation, "branch records form a cycle or reference an unknown parent")
		}
		remaining = next
	}
	return ids, nil
}

func importBlob(ctx context.Context, tx storage.Transaction, workDir, fileID, hash string) error {
	if exists, err := tx.BlobExists(ctx, hash); err != nil {
		return err
	} else if exists {
		return tx.IncRefBlob(ctx, hash)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "files", fileID+".blob"))
	if err != nil {
		return fmt.Errorf("read blob for %s: %w", fileID, err)
	}
	kind := types.ContentText
	text := string(data)
	// Treat the blob as binary if it contains a NUL byte, the same
	// heuristic a scanner uses to decide text-vs-binary at scan time.
	for _, b := range data {
		if b == 0 {
			kind = types.ContentBinary
			break
		}
	}

	blob := &types.ContentBlob{HashSHA256: hash, Kind: kind, Size: int64(len(data))}
	if kind == types.ContentText {
		blob.Text = text
		blob.Encoding = "utf-8"
	} else {
		blob.Bytes = data
	}
	return tx.PutBlob(ctx, blob)
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func readProjectRecord(dir string) (*ProjectRecord, error) {
	data, err := os.ReadFile(filepath.Join(dir, "project.json"))
	if err != nil {
		return nil, fmt.Errorf("read project record: %w", err)
	}
	var p ProjectRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse project record: %w", err)
	}
	return &p, nil
}

// readFileEntries reads files/manifest.json for the ordered (file_id,
// path, hash) index and then resolves each entry's full per-file
// record from files/file-NNNNNN.json, rather than scanning the
// directory — the manifest is the authoritative ordering (spec §4.8).
func readFileEntries(dir string) ([]FileEntry, error) {
	filesDir := filepath.Join(dir, "files")
	indexData, err := os.ReadFile(filepath.Join(filesDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("read files manifest: %w", err)
	}
	var index []FilesManifestEntry
	if err := json.Unmarshal(indexData, &index); err != nil {
		return nil, fmt.Errorf("parse files manifest: %w", err)
	}

	out := make([]FileEntry, 0, len(index))
	for _, idx := range index {
		data, err := os.ReadFile(filepath.Join(filesDir, idx.FileID+".json"))
		if err != nil {
			return nil, fmt.Errorf("read file entry %s: %w", idx.FileID, err)
		}
		var entry FileEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("parse file entry %s: %w", idx.FileID, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func readBranchRecords(dir string) ([]BranchRecord, error) {
	path := filepath.Join(dir, "vcs", "branches.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read branches: %w", err)
	}
	var out []BranchRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse branches: %w", err)
	}
	return out, nil
}

func readCommits(dir string) ([]CommitRecord, error) {
	path := filepath.Join(dir, "vcs", "commits.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read commit history: %w", err)
	}
	var out []CommitRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse commit history: %w", err)
	}
	return out, nil
}

// sortByDepth orders entries shallow-to-deep by path component count,
// then lexically, so a caller materializing directories incrementally
// never needs a parent that hasn't been created yet — the same
// depth-first ordering guarantee the teacher's hierarchical importer
// provides for parent/child issue ids.
func sortByDepth(entries []FileEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := depthOf(entries[i].FilePath), depthOf(entries[j].FilePath)
		if di != dj {
			return di < dj
		}
		return entries[i].FilePath < entries[j].FilePath
	})
}

func depthOf(path string) int {
	depth := 0
	for _, r := range path {
		if r == '/' {
			depth++
		}
	}
	return depth
}

func verifyChecksum(dir, want string) error {
	var paths []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		rel = filepath.ToSlash(rel)
		if rel == "manifest.json" {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk package for checksum: %w", err)
	}
	sort.Strings(paths)

	got, err := checksumFiles(dir, paths)
	if err != nil {
		return err
	}
	if got != want {
		return terrors.New(terrors.IntegrityViolation, fmt.Sprintf("checksum mismatch: manifest says %s, computed %s", want, got))
	}
	return nil
}

// materializeSource returns a directory holding the package contents,
// extracting sourcePath first if it is a .tar.zst or .tar.gz archive.
func materializeSource(sourcePath string) (dir string, cleanup func(), err error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return "", nil, fmt.Errorf("stat source %s: %w", sourcePath, err)
	}
	if info.IsDir() {
		return sourcePath, func() {}, nil
	}

	tmp, err := os.MkdirTemp("", "templedb-cathedral-import-*")
	if err != nil {
		return "", nil, fmt.Errorf("create extraction directory: %w", err)
	}
	cleanupFn := func() { os.RemoveAll(tmp) }

	f, err := os.Open(sourcePath)
	if err != nil {
		cleanupFn()
		return "", nil, fmt.Errorf("open archive %s: %w", sourcePath, err)
	}
	defer f.Close()

	var r io.Reader
	switch filepath.Ext(sourcePath) {
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			cleanupFn()
			return "", nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case ".gz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			cleanupFn()
			return "", nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gr.Close()
		r = gr
	default:
		cleanupFn()
		return "", nil, terrors.New(terrors.InvalidInput, fmt.Sprintf("unrecognized archive extension for %s", sourcePath))
	}

	if err := untar(r, tmp); err != nil {
		cleanupFn()
		return "", nil, err
	}
	return tmp, cleanupFn, nil
}
