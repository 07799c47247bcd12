package project

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long Watch waits after the last change before it
// runs again.
const DefaultDebounce = 100 * time.Millisecond

// Watcher re-runs a check whenever model files change.
type Watcher struct {
	Dir      string
	Exts     []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watch calls run once per burst of changes to files with one of w.Exts
// under w.Dir, including directories created later. It returns nil when ctx
// is done. Errors from run are logged and do not stop the watch.
func (w *Watcher) Watch(ctx context.Context, run func(context.Context) error) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchTree(watcher, w.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.Dir, err)
	}
	logger.Debug("watching", slog.String("dir", w.Dir))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn("watching new directory", slog.String("dir", event.Name), slog.String("error", err.Error()))
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !HasExt(event.Name, w.Exts) {
				continue
			}
			logger.Debug("change detected", slog.String("path", event.Name), slog.String("op", event.Op.String()))
			timer.Reset(debounce)

		case <-timer.C:
			if err := run(ctx); err != nil {
				logger.Warn("check failed", slog.String("error", err.Error()))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// watchTree adds dir and its subdirectories to the watcher, skipping the
// directories Discover skips.
func watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (strings.HasPrefix(d.Name(), ".") || skipDirs[d.Name()]) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
