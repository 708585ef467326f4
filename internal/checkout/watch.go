package checkout

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch notifies onChange whenever a file under checkoutPath is
// created, written, removed, or renamed, until ctx is cancelled. It
// prefers fsnotify; if the watcher cannot be created (e.g. the host
// has exhausted inotify instances), it falls back to polling checkoutPath
// on interval.
func Watch(ctx context.Context, checkoutPath string, interval time.Duration, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("checkout watch: fsnotify unavailable (%v), falling back to polling", err)
		return pollWatch(ctx, checkoutPath, interval, onChange)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, checkoutPath); err != nil {
		watcher.Close()
		log.Printf("checkout watch: fsnotify setup failed (%v), falling back to polling", err)
		return pollWatch(ctx, checkoutPath, interval, onChange)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				onChange(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("checkout watch: fsnotify error: %v", err)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return walkDirs(root, func(dir string) error {
		return watcher.Add(dir)
	})
}

// pollWatch is the fallback path: it stats the tree on each interval
// tick and reports paths whose mtime moved forward since the last
// poll.
func pollWatch(ctx context.Context, root string, interval time.Duration, onChange func(path string)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seen := map[string]time.Time{}
	scan := func() {
		_ = walkFiles(root, func(path string, modTime time.Time) {
			if last, ok := seen[path]; !ok || modTime.After(last) {
				seen[path] = modTime
				onChange(path)
			}
		})
	}
	scan()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}
