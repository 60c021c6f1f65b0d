package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	m "actionlift.dev/pkg/actionlift/internal/model"
)

// DefaultDebounce is how long the watcher waits for further events before
// reporting a batch of changed files.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reports changed script files under a set of roots.
type Watcher interface {
	// Watch blocks until ctx is done, calling onChange with each debounced
	// batch of changed paths in sorted order.
	Watch(ctx context.Context, roots []m.Path, onChange func(paths []m.Path)) error
}

// FSWatcher is the fsnotify-backed Watcher. Directories created while
// watching are picked up automatically.
type FSWatcher struct {
	Debounce time.Duration
	// Accept filters the files worth reporting. Defaults to IsScriptFile.
	Accept func(path string) bool
}

// NewFSWatcher constructs an FSWatcher with the given debounce interval.
func NewFSWatcher(debounce time.Duration) *FSWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &FSWatcher{Debounce: debounce, Accept: IsScriptFile}
}

// Watch implements Watcher.
func (w *FSWatcher) Watch(ctx context.Context, roots []m.Path, onChange func(paths []m.Path)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	defer func() {
		if err := fw.Close(); err != nil {
			slog.Warn("failed to close watcher", "error", err)
		}
	}()

	for _, root := range roots {
		if err := w.addTree(fw, string(root)); err != nil {
			return err
		}
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.Debounce)
	timer.Stop()

	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if w.handle(fw, ev, pending) {
				timer.Reset(w.Debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}

			slog.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}

			paths := make([]m.Path, 0, len(pending))
			for p := range pending {
				paths = append(paths, m.Path(p))
			}

			clear(pending)
			slices.Sort(paths)
			slog.Debug("files changed", "count", len(paths))
			onChange(paths)
		}
	}
}

// handle records ev in pending and reports whether it did.
func (w *FSWatcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]struct{}) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}

			return false
		}
	}

	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}

	accept := w.Accept
	if accept == nil {
		accept = IsScriptFile
	}

	if !accept(ev.Name) {
		return false
	}

	pending[ev.Name] = struct{}{}

	return true
}

// addTree watches root and every directory below it. A file root watches
// its parent directory.
func (w *FSWatcher) addTree(fw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	if !info.IsDir() {
		return fw.Add(filepath.Dir(root))
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() {
			return nil
		}

		if path != root && skippedDirs[info.Name()] {
			return filepath.SkipDir
		}

		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}

		return nil
	})
}
