package branch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// Watcher calls a refresh function when the checked-out branch or any local
// branch tip of a repository changes. Bursts of events are debounced.
type Watcher struct {
	gitDir   string
	debounce time.Duration
	refresh  func(context.Context) error
	logger   hclog.Logger
}

// NewWatcher creates a Watcher over the working tree at root.
func NewWatcher(root string, debounce time.Duration, refresh func(context.Context) error, logger hclog.Logger) (*Watcher, error) {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil {
		return nil, fmt.Errorf("failed to find git directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", gitDir)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Watcher{gitDir: gitDir, debounce: debounce, refresh: refresh, logger: logger}, nil
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addDirs(fw); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fw.Add(event.Name)
				}
			}
			if !w.relevant(event.Name) {
				continue
			}
			w.logger.Trace("repository change", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-fire:
			timer, fire = nil, nil
			if err := w.refresh(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("refresh after repository change failed", "error", err)
			}
		}
	}
}

// addDirs watches the git directory and every directory under refs/heads.
func (w *Watcher) addDirs(fw *fsnotify.Watcher) error {
	if err := fw.Add(w.gitDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.gitDir, err)
	}
	heads := filepath.Join(w.gitDir, "refs", "heads")
	return filepath.WalkDir(heads, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

// relevant reports whether a change under the git directory can move HEAD or a branch tip.
func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.gitDir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasSuffix(rel, ".lock") {
		return false
	}
	return rel == "HEAD" || rel == "packed-refs" || strings.HasPrefix(rel, "refs/heads/")
}
