package jembatan

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ambiyansyah-risyal/jembatan/internal/backoff"
)

// ConfigWatcher reloads a Builder whenever its TOML file changes.
type ConfigWatcher struct {
	mu       sync.Mutex
	path     string
	builder  *Builder
	logger   Logger
	delay    time.Duration
	debounce *time.Timer
	onReload func(*Config, error)
	retries  int
	backoff  backoff.Exponential
	stopped  bool
}

// WatcherOption configures a ConfigWatcher
type WatcherOption func(*ConfigWatcher)

// WithDebounce sets how long to wait after the last change before reloading.
// Default: 100 milliseconds
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *ConfigWatcher) {
		w.delay = d
	}
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(*Config, error)) WatcherOption {
	return func(w *ConfigWatcher) {
		w.onReload = fn
	}
}

// WithReloadRetries retries a failed reload up to n times, waiting longer
// each time. Default: 3
func WithReloadRetries(n int, delays backoff.Exponential) WatcherOption {
	return func(w *ConfigWatcher) {
		w.retries = n
		w.backoff = delays
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(logger Logger) WatcherOption {
	return func(w *ConfigWatcher) {
		w.logger = logger
	}
}

// NewConfigWatcher creates a watcher reloading builder from path. Run
// starts watching.
func NewConfigWatcher(path string, builder *Builder, options ...WatcherOption) *ConfigWatcher {
	w := &ConfigWatcher{
		path:    path,
		builder: builder,
		logger:  NoopLogger{},
		delay:   100 * time.Millisecond,
		retries: 3,
		backoff: backoff.Default(),
	}
	for _, option := range options {
		option(w)
	}
	if w.delay <= 0 {
		w.delay = 100 * time.Millisecond
	}
	return w
}

// Run watches the file's directory until ctx is done. Editors often replace
// files instead of writing them, so the directory is watched rather than
// the file.
func (w *ConfigWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("Watching configuration", "path", w.path)

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.schedule()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Configuration watcher error", "error", err)
		}
	}
}

func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(w.delay, func() { w.attempt(0) })
}

// attempt reloads and, on failure, schedules the next try. A file can fail
// to parse while an editor is still writing it.
func (w *ConfigWatcher) attempt(n int) {
	if err := w.reload(); err == nil || n >= w.retries {
		return
	}
	delay := w.backoff.Delay(n)
	w.logger.Debug("Retrying configuration reload", "path", w.path, "attempt", n+1, "delay", delay)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.debounce = time.AfterFunc(delay, func() { w.attempt(n + 1) })
}

func (w *ConfigWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.debounce != nil {
		w.debounce.Stop()
	}
}

func (w *ConfigWatcher) reload() error {
	cfg, err := LoadConfig(w.path)
	if err == nil {
		err = w.builder.Reload(cfg)
	}
	if err != nil {
		w.logger.Error("Configuration reload failed", "path", w.path, "error", err)
	} else {
		w.logger.Info("Configuration reloaded", "path", w.path)
	}
	if w.onReload != nil {
		w.onReload(cfg, err)
	}
	return err
}
