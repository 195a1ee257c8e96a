// Package watcher reloads the expert registry when its file changes on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// ReloadFunc is called with the watched path after a burst of changes settles.
// moecore passes IntegrationService.ReloadRegistry, which also removes experts
// the file no longer lists.
type ReloadFunc func(ctx context.Context, path string) error

// Watcher watches one file. The parent directory is watched so that editors
// which replace the file by rename are still seen.
type Watcher struct {
	path     string
	debounce time.Duration
	reload   ReloadFunc
	fs       *fsnotify.Watcher
}

// New starts watching path. debounce <= 0 selects the default.
func New(path string, debounce time.Duration, reload ReloadFunc) (*Watcher, error) {
	if reload == nil {
		return nil, errors.New("watcher: reload func is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{path: abs, debounce: debounce, reload: reload, fs: fs}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Run delivers reloads until ctx is cancelled, then releases the watcher.
// Reload errors are logged; the previous registry stays in effect.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fs.Close() }()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	slog.Info("watching registry file", "path", w.path, "debounce", w.debounce)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			slog.Debug("registry file event", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("registry watcher error", "error", err)

		case <-timer.C:
			if err := w.reload(ctx, w.path); err != nil {
				slog.Error("registry reload failed", "path", w.path, "error", err)
				continue
			}
			slog.Info("registry reloaded", "path", w.path)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}
