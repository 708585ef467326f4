package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanSkipsIgnoredDirsAndClassifiesFiles(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	mustWrite("main.go", "package main\n\nfunc main() {}\n")
	mustWrite(".git/HEAD", "ref: refs/heads/main\n")
	mustWrite("node_modules/pkg/index.js", "module.exports = {}\n")

	files, err := Scan(root, New())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var sawMain, sawIgnored bool
	for _, f := range files {
		if f.RelativePath == "main.go" {
			sawMain = true
			if f.FileType != "go" {
				t.Errorf("expected main.go to classify as go, got %s", f.FileType)
			}
			if f.LinesOfCode != 3 {
				t.Errorf("expected 3 lines of code, got %d", f.LinesOfCode)
			}
		}
		if f.RelativePath == ".git/HEAD" || f.RelativePath == "node_modules/pkg/index.js" {
			sawIgnored = true
		}
	}
	if !sawMain {
		t.Fatal("expected main.go to be scanned")
	}
	if sawIgnored {
		t.Fatal("expected ignored directories to be skipped entirely")
	}
}

func TestCountLinesNoTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("line1\nline2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := countLines(path)
	if err != nil {
		t.Fatalf("countLines: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}
}

func TestCountLinesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := countLines(path)
	if err != nil {
		t.Fatalf("countLines: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 lines for empty file, got %d", n)
	}
}

func TestExtractComponentName(t *testing.T) {
	cases := map[string]string{
		"UserProfile.go":   "UserProfile",
		"work-item-store.go": "work-item-store",
		"main.go":          "main",
		"index.js":         "index",
	}
	for filename, want := range cases {
		if got := extractComponentName(filename); got != want {
			t.Errorf("extractComponentName(%q) = %q, want %q", filename, got, want)
		}
	}
}
