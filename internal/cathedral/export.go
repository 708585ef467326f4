package cathedral

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/mod/semver"

	"github.com/templedb/templedb/internal/storage"
	"github.com/templedb/templedb/internal/terrors"
	"github.com/templedb/templedb/internal/types"
)

// Compression selects the optional archive wrapper written around the
// exported directory tree.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
	CompressionGzip Compression = "gzip"
)

// ExportOptions configures Export.
type ExportOptions struct {
	ProjectID   int64
	OutputDir   string // destination directory; container is written directly here if Compression is None
	Compression Compression
	CreatedBy   string // stamped into the manifest's created_by; defaults to "templedb" if empty
}

// Export writes a Cathedral package for projectID to opts.OutputDir,
// optionally wrapped in a .tar.zst or .tar.gz archive.
func Export(ctx context.Context, store storage.Storage, opts ExportOptions) (*Manifest, error) {
	var manifest *Manifest
	stagingDir, err := os.MkdirTemp("", "templedb-cathedral-export-*")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		m, writeErr := writeContainer(ctx, tx, opts, stagingDir)
		if writeErr != nil {
			return writeErr
		}
		manifest = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	switch opts.Compression {
	case CompressionZstd:
		if err := archiveZstd(stagingDir, filepath.Join(opts.OutputDir, manifest.Project.Slug+".tar.zst")); err != nil {
			return nil, err
		}
	case CompressionGzip:
		if err := archiveGzip(stagingDir, filepath.Join(opts.OutputDir, manifest.Project.Slug+".tar.gz")); err != nil {
			return nil, err
		}
	default:
		if err := copyTree(stagingDir, opts.OutputDir); err != nil {
			return nil, err
		}
	}

	return manifest, nil
}

// writeContainer builds the uncompressed container under dir:
// manifest.json, project.json, files/manifest.json,
// files/file-NNNNNN.json + files/file-NNNNNN.blob (one numbered pair
// per ProjectFile, in path order), and vcs/{branches,commits,history}.json.
// Checksum is computed over every written file except manifest.json,
// in sorted relative-path order (spec §6).
func writeContainer(ctx context.Context, tx storage.Transaction, opts ExportOptions, dir string) (*Manifest, error) {
	project, err := tx.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	files, err := tx.ListFiles(ctx, opts.ProjectID, false)
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelativePath < files[j].RelativePath })

	branches, err := tx.ListBranches(ctx, opts.ProjectID)
	if err != nil {
		return nil, err
	}

	visibility, _, err := tx.GetExportConfig(ctx, opts.ProjectID, "visibility")
	if err != nil {
		return nil, err
	}
	if visibility == "" {
		visibility = "private"
	}
	license, _, err := tx.GetExportConfig(ctx, opts.ProjectID, "license")
	if err != nil {
		return nil, err
	}

	var writtenPaths []string

	projectRecord := ProjectRecord{
		Slug:          project.Slug,
		Name:          project.Name,
		Visibility:    visibility,
		License:       license,
		DefaultBranch: project.DefaultBranch,
	}
	projectPath := filepath.Join(dir, "project.json")
	if err := writeJSON(projectPath, projectRecord); err != nil {
		return nil, fmt.Errorf("write project record: %w", err)
	}
	writtenPaths = append(writtenPaths, relTo(dir, projectPath))

	filesDir := filepath.Join(dir, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, err
	}

	var filesManifest []FilesManifestEntry
	var totalSizeBytes int64
	for i, f := range files {
		fileID := fmt.Sprintf("file-%06d", i+1)

		var sizeBytes int64
		var author string
		if f.CurrentHash != "" {
			blob, err := tx.GetBlob(ctx, f.CurrentHash)
			if err != nil {
				return nil, fmt.Errorf("read blob for %s: %w", f.RelativePath, err)
			}
			sizeBytes = blob.Size
			data := []byte(blob.Text)
			if blob.Kind == types.ContentBinary {
				data = blob.Bytes
			}
			blobPath := filepath.Join(filesDir, fileID+".blob")
			if err := os.WriteFile(blobPath, data, 0o644); err != nil {
				return nil, fmt.Errorf("write blob %s: %w", fileID, err)
			}
			writtenPaths = append(writtenPaths, relTo(dir, blobPath))
		}
		totalSizeBytes += sizeBytes

		entry := FileEntry{
			FileID:        fileID,
			FilePath:      f.RelativePath,
			FileType:      f.TypeTag,
			LinesOfCode:   f.LineCount,
			FileSizeBytes: sizeBytes,
			HashSHA256:    f.CurrentHash,
			VersionNumber: f.CurrentVersion,
			Author:        author,
			CreatedAt:     f.CreatedAt,
		}
		entryPath := filepath.Join(filesDir, fileID+".json")
		if err := writeJSON(entryPath, entry); err != nil {
			return nil, fmt.Errorf("write file entry for %s: %w", f.RelativePath, err)
		}
		writtenPaths = append(writtenPaths, relTo(dir, entryPath))

		filesManifest = append(filesManifest, FilesManifestEntry{
			FileID:     fileID,
			FilePath:   f.RelativePath,
			HashSHA256: f.CurrentHash,
		})
	}
	filesManifestPath := filepath.Join(filesDir, "manifest.json")
	if err := writeJSON(filesManifestPath, filesManifest); err != nil {
		return nil, fmt.Errorf("write files manifest: %w", err)
	}
	writtenPaths = append(writtenPaths, relTo(dir, filesManifestPath))

	var branchRecords []BranchRecord
	branchNameByID := map[int64]string{}
	for _, b := range branches {
		branchNameByID[b.ID] = b.Name
	}
	for _, b := range branches {
		rec := BranchRecord{Name: b.Name, IsDefault: b.IsDefault}
		if b.ParentBranchID != nil {
			rec.ParentBranchName = branchNameByID[*b.ParentBranchID]
		}
		branchRecords = append(branchRecords, rec)
	}

	var commitRecords []CommitRecord
	var historyRecords []HistoryRecord
	for _, b := range branches {
		commits, err := tx.ListCommits(ctx, b.ID, 0)
		if err != nil {
			return nil, err
		}
		for _, c := range commits {
			cfs, err := tx.ListCommitFiles(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			rec := CommitRecord{
				Hash:       c.Hash,
				BranchName: b.Name,
				Author:     c.Author,
				Message:    c.Message,
				CreatedAt:  c.CreatedAt,
			}
			for _, cf := range cfs {
				if cf.NewPath != "" {
					rec.ChangedPaths = append(rec.ChangedPaths, cf.NewPath)
				} else {
					rec.ChangedPaths = append(rec.ChangedPaths, cf.OldPath)
				}
			}
			commitRecords = append(commitRecords, rec)
			historyRecords = append(historyRecords, HistoryRecord{
				Hash: c.Hash, BranchName: b.Name, Author: c.Author, Message: c.Message, CreatedAt: c.CreatedAt,
			})
		}
	}
	sort.SliceStable(historyRecords, func(i, j int) bool {
		return historyRecords[i].CreatedAt.After(historyRecords[j].CreatedAt)
	})

	vcsDir := filepath.Join(dir, "vcs")
	if err := os.MkdirAll(vcsDir, 0o755); err != nil {
		return nil, err
	}
	branchesPath := filepath.Join(vcsDir, "branches.json")
	if err := writeJSON(branchesPath, branchRecords); err != nil {
		return nil, fmt.Errorf("write branches: %w", err)
	}
	writtenPaths = append(writtenPaths, relTo(dir, branchesPath))

	commitsPath := filepath.Join(vcsDir, "commits.json")
	if err := writeJSON(commitsPath, commitRecords); err != nil {
		return nil, fmt.Errorf("write commit history: %w", err)
	}
	writtenPaths = append(writtenPaths, relTo(dir, commitsPath))

	historyPath := filepath.Join(vcsDir, "history.json")
	if err := writeJSON(historyPath, historyRecords); err != nil {
		return nil, fmt.Errorf("write flattened history: %w", err)
	}
	writtenPaths = append(writtenPaths, relTo(dir, historyPath))

	sort.Strings(writtenPaths)
	checksum, err := checksumFiles(dir, writtenPaths)
	if err != nil {
		return nil, err
	}

	if !semver.IsValid("v" + ManifestVersion) {
		return nil, terrors.New(terrors.IntegrityViolation, fmt.Sprintf("invalid cathedral format version %q", ManifestVersion))
	}

	createdBy := opts.CreatedBy
	if createdBy == "" {
		createdBy = "templedb"
	}

	manifest := &Manifest{
		Version:   ManifestVersion,
		Format:    FormatName,
		CreatedAt: time.Now(),
		CreatedBy: createdBy,
		Project: ManifestProject{
			Slug:       project.Slug,
			Name:       project.Name,
			Visibility: visibility,
			License:    license,
		},
		Source: ManifestSource{
			TempleDBVersion: ManifestVersion,
			SchemaVersion:   schemaVersion,
			ExportMethod:    exportMethod,
		},
		Contents: ManifestContents{
			Files:          len(files),
			Commits:        len(commitRecords),
			Branches:       len(branches),
			TotalSizeBytes: totalSizeBytes,
		},
		Checksums: ManifestChecksums{
			SHA256:    checksum,
			Algorithm: "sha256",
		},
	}

	if err := writeJSON(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return manifest, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func relTo(base, path string) string {
	rel, _ := filepath.Rel(base, path)
	return filepath.ToSlash(rel)
}

// checksumFiles computes sha256(concat_in_sorted_order(bytes of each
// file except manifest.json)) — paths is already sorted ascending by
// relative path, and only the bytes are hashed, not the names, per
// spec §6's bit-level checksum definition.
func checksumFiles(root string, paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			return "", fmt.Errorf("open %s for checksum: %w", p, err)
		}
		_, copyErr := io.Copy(h, f)
		f.Close()
		if copyErr != nil {
			return "", fmt.Errorf("hash %s: %w", p, copyErr)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}

func archiveZstd(srcDir, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", destPath, err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	return tarTree(srcDir, zw)
}

func archiveGzip(srcDir, destPath string) error {
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", destPath, err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	defer gw.Close()

	return tarTree(srcDir, gw)
}

func tarTree(srcDir string, w io.Writer) error {
	tw := tar.NewWriter(w)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
}
