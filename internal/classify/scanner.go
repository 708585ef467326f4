package classify

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/templedb/templedb/internal/types"
)

// defaultIgnoreDirs are never descended into, matching the convention
// every VCS-adjacent scanner carries for its own metadata directory.
var defaultIgnoreDirs = map[string]bool{
	".git": true, ".templedb": true, "node_modules": true, ".hg": true, ".svn": true,
}

// componentNamePattern pulls a CamelCase or kebab-case component
// identifier out of a filename, the same shape of heuristic the
// teacher's regex extractor uses against free text (internal/extractor/regex.go).
var componentNamePattern = regexp.MustCompile(`[A-Z][a-zA-Z0-9]*|[a-z0-9]+(?:-[a-z0-9]+)+`)

// Scan walks root and returns one ScannedFile per non-ignored regular
// file, classified by c. Symlinks are not followed.
func Scan(root string, c *Classifier) ([]types.ScannedFile, error) {
	var out []types.ScannedFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if defaultIgnoreDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}

		tag, _, isText := c.Classify(path)
		loc := 0
		if isText {
			loc, err = countLines(path)
			if err != nil {
				return fmt.Errorf("count lines in %s: %w", path, err)
			}
		}

		out = append(out, types.ScannedFile{
			AbsolutePath:  path,
			RelativePath:  filepath.ToSlash(rel),
			FileName:      d.Name(),
			FileType:      tag,
			ComponentName: extractComponentName(d.Name()),
			LinesOfCode:   loc,
			IsText:        isText,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return out, nil
}

func countLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	n := strings.Count(string(data), "\n")
	if data[len(data)-1] != '\n' {
		n++
	}
	return n, nil
}

// extractComponentName returns the first CamelCase or kebab-case token
// found in the base filename (stripped of extension), or the bare stem
// if no such token is present.
func extractComponentName(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if m := componentNamePattern.FindString(stem); m != "" {
		return m
	}
	return stem
}
