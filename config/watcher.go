package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk. Events are
// debounced so that an editor's write-rename-chmod burst triggers a single
// reload. A file that fails to load is logged and the previous
// configuration stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config) error
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload (default 200ms).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher for path. onChange receives every
// successfully loaded configuration.
func NewWatcher(path string, onChange func(*Config) error, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: 200 * time.Millisecond,
		onChange: onChange,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run watches until ctx is cancelled. The parent directory is watched rather
// than the file itself so that atomic replace-by-rename is seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", w.path, err)
	}
	w.logger.Info("config: watching for changes", "path", w.path, "debounce_ms", w.debounce.Milliseconds())

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("config: watcher events channel closed")
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("config: file event", "path", ev.Name, "op", ev.Op.String())
			w.schedule()
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("config: watcher errors channel closed")
			}
			w.logger.Error("config: watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)
	if err != nil {
		w.logger.Error("config: reload failed, keeping previous configuration", "path", w.path, "error", err)
		return
	}
	if err := w.onChange(cfg); err != nil {
		w.logger.Error("config: apply failed", "path", w.path, "error", err)
		return
	}
	w.logger.Info("config: reloaded", "path", w.path)
}
