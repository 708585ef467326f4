package checkout

import (
	"io/fs"
	"path/filepath"
	"time"
)

func walkDirs(root string, fn func(dir string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fn(path)
		}
		return nil
	})
}

func walkFiles(root string, fn func(path string, modTime time.Time)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // ignore transient stat errors during polling
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fn(path, info.ModTime())
		return nil
	})
}
