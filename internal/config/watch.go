package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 500 * time.Millisecond

// Watch monitors a configuration file and invokes onChange after
// writes settle. Editors produce bursts of write events, so changes
// are debounced into a single callback. Watch blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, onChange func()) error {
	if path == "" {
		path = filepath.Join(DefaultDir(), "config.yaml")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files via rename, which
	// drops a watch placed on the file itself.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}

	// Timer starts stopped; first event arms it.
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounceWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "config: watch error: %v\n", err)

		case <-timer.C:
			onChange()
		}
	}
}
