package topology

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a topology file when it changes and hands every valid
// result to the registered handlers. Invalid files are logged and
// skipped, keeping the previous topology in effect.
type Watcher struct {
	path     string
	debounce time.Duration

	mu       sync.Mutex
	handlers []func(*Topology)
	onError  func(error)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithErrorHandler sets a callback for reload failures.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher creates a watcher for the topology file at path.
func NewWatcher(path string, opts ...WatcherOption) *Watcher {
	w := &Watcher{path: filepath.Clean(path), debounce: DefaultDebounce}
	for _, o := range opts {
		o(w)
	}
	return w
}

// OnReload registers fn to receive each reloaded topology.
func (w *Watcher) OnReload(fn func(*Topology)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, fn)
}

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are seen too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("topology: watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("topology: watch %s: %w", w.path, err)
	}
	slog.Info("topology: watching", "path", w.path, "debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			slog.Debug("topology: change detected", "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("topology: watcher error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	t, err := Load(w.path)
	if err != nil {
		slog.Warn("topology: reload failed", "path", w.path, "err", err)
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	slog.Info("topology: reloaded", "path", w.path, "chip", t.Chip.Name, "leds", len(t.LEDs))

	w.mu.Lock()
	handlers := make([]func(*Topology), len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()
	for _, h := range handlers {
		h(t)
	}
}
