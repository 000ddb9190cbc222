// Package watch rescans when compose files in the repository change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 2 * time.Second

var ignoredDirs = []string{".git", "node_modules"}

// Refresher runs a scan outside the regular schedule.
type Refresher interface {
	TriggerAsync()
	Postpone()
}

// Watcher watches a repository tree and, once changes to compose files have
// settled for the debounce window, triggers a scan and postpones the next
// scheduled one.
type Watcher struct {
	root      string
	fileNames []string
	debounce  time.Duration
	refresher Refresher
	log       *slog.Logger
}

func New(root string, fileNames []string, debounce time.Duration, refresher Refresher) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:      root,
		fileNames: fileNames,
		debounce:  debounce,
		refresher: refresher,
		log:       slog.With("component", "watch", "root", root),
	}
}

// Run blocks until ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	w.log.Info("watching repository")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) && !w.ignored(event.Name) {
				if err := w.addRecursive(fw, event.Name); err != nil {
					w.log.Warn("watch new directory", "path", event.Name, "err", err)
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("compose file changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case <-timer.C:
			w.log.Info("repository changed, rescanning")
			w.refresher.TriggerAsync()
			w.refresher.Postpone()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "err", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	return base == ".env" || slices.Contains(w.fileNames, base)
}

func (w *Watcher) ignored(path string) bool {
	return slices.Contains(ignoredDirs, filepath.Base(path))
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if errors.Is(err, fs.ErrPermission) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
