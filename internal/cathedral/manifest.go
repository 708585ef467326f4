// Package cathedral implements the Cathedral package format (spec §6,
// C8): a deterministic, checksum-verified export/import container for
// a project's full registry state — a JSON manifest, one JSON file per
// ProjectFile plus its raw blob bytes, and the project's VCS history,
// optionally wrapped in a .tar.zst or .tar.gz archive.
package cathedral

import (
	"time"
)

// ManifestVersion is the Cathedral format's own version, independent
// of the project being exported. Bump it only on a breaking container
// layout change.
const ManifestVersion = "1.0.0"

// schemaVersion is stamped into Manifest.Source as the TempleDB
// database schema revision the export was taken against, so an
// importer reading an older package knows which migrations its
// content assumes have already run.
const schemaVersion = 1

// exportMethod records how the package bytes were produced. There is
// one export path: it lists the project's files and then reads each
// file's blob with its own GetBlob call, so file contents are not read
// in a single batched query.
const exportMethod = "full"

// FormatName is the manifest's format discriminator (spec §6).
const FormatName = "cathedral-package"

// Manifest is the top-level, unencrypted index written as manifest.json.
// It is excluded from the checksum computation (spec §6: "checksum
// covers all files except the manifest itself"), since the manifest
// must record the checksum of everything else. Field names and nesting
// follow spec §6's authoritative, bit-level description exactly.
type Manifest struct {
	Version   string            `json:"version"`
	Format    string            `json:"format"`
	CreatedAt time.Time         `json:"created_at"`
	CreatedBy string            `json:"created_by"`
	Project   ManifestProject   `json:"project"`
	Source    ManifestSource    `json:"source"`
	Contents  ManifestContents  `json:"contents"`
	Checksums ManifestChecksums `json:"checksums"`
	Signature string            `json:"signature,omitempty"`
}

// ManifestProject mirrors the exported project's identity.
type ManifestProject struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	Visibility string `json:"visibility"`
	License    string `json:"license,omitempty"`
}

// ManifestSource records the producing installation's version info.
type ManifestSource struct {
	TempleDBVersion string `json:"templedb_version"`
	SchemaVersion   int    `json:"schema_version"`
	ExportMethod    string `json:"export_method"`
}

// ManifestContents summarizes what the package holds, without
// requiring a reader to enumerate files/ or vcs/ to know.
type ManifestContents struct {
	Files           int   `json:"files"`
	Commits         int   `json:"commits"`
	Branches        int   `json:"branches"`
	TotalSizeBytes  int64 `json:"total_size_bytes"`
	HasSecrets      bool  `json:"has_secrets"`
	HasEnvironments bool  `json:"has_environments"`
}

// ManifestChecksums carries the package-wide integrity checksum.
type ManifestChecksums struct {
	SHA256    string `json:"sha256"`
	Algorithm string `json:"algorithm"`
}

// ProjectRecord is written to project.json.
type ProjectRecord struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	Visibility    string `json:"visibility"`
	License       string `json:"license,omitempty"`
	DefaultBranch string `json:"default_branch"`
}

// FilesManifestEntry is one row of files/manifest.json: the ordered
// (file_id, path, hash) index spec §4.8 calls for, read first so an
// importer can plan without opening every per-file JSON document.
type FilesManifestEntry struct {
	FileID     string `json:"file_id"`
	FilePath   string `json:"file_path"`
	HashSHA256 string `json:"hash_sha256"`
}

// FileEntry is one per-file record, written as files/file-NNNNNN.json
// alongside its files/file-NNNNNN.blob sibling. Field names follow
// spec §6's authoritative per-file schema.
type FileEntry struct {
	FileID        string            `json:"file_id"`
	FilePath      string            `json:"file_path"`
	FileType      string            `json:"file_type"`
	LinesOfCode   int               `json:"lines_of_code"`
	FileSizeBytes int64             `json:"file_size_bytes"`
	HashSHA256    string            `json:"hash_sha256"`
	VersionNumber int               `json:"version_number"`
	Author        string            `json:"author,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// BranchRecord is one row of vcs/branches.json.
type BranchRecord struct {
	Name             string `json:"name"`
	IsDefault        bool   `json:"is_default"`
	ParentBranchName string `json:"parent_branch_name,omitempty"`
}

// CommitRecord is one exported commit under vcs/commits.json. It
// carries more than the bit-level manifest schema requires (the full
// changed-path list) because import reconstructs CommitFile rows from
// it; vcs/history.json carries the leaner, spec-mandated view.
type CommitRecord struct {
	Hash         string    `json:"hash"`
	BranchName   string    `json:"branch_name"`
	ParentHash   string    `json:"parent_hash,omitempty"`
	Author       string    `json:"author"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
	ChangedPaths []string  `json:"changed_paths"`
}

// HistoryRecord is one row of vcs/history.json: commits across every
// branch, newest-first, the same ordering Engine.History returns for a
// single branch (spec §4.5 "history(project, branch?, limit)").
type HistoryRecord struct {
	Hash       string    `json:"hash"`
	BranchName string    `json:"branch_name"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
