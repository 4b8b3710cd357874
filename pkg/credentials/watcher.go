package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the credential pool when the JSON credential file changes
// on disk, so key rotation does not require a restart. Events are debounced
// to absorb editor and atomic-rename write patterns.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	pool    *Pool
	logger  *slog.Logger

	debounceInterval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	running bool
}

// NewWatcher creates a watcher for the credential file at path, feeding
// reloads into pool.
func NewWatcher(path string, pool *Pool, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:          fsw,
		path:             path,
		pool:             pool,
		logger:           logger,
		debounceInterval: 100 * time.Millisecond,
	}, nil
}

// Watch blocks processing file events until the context is cancelled.
// The parent directory is watched rather than the file itself: atomic
// replace writes a temp file and renames it over the target, which drops a
// watch placed directly on the file.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %q: %w", dir, err)
	}

	w.logger.Info("credential file watcher started",
		"path", w.path,
		"debounce_ms", w.debounceInterval.Milliseconds(),
	)

	defer func() {
		w.mu.Lock()
		w.running = false
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		w.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("credential file watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("credential file event",
				"path", event.Name,
				"op", event.Op.String(),
			)
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("credential file watcher error", "error", err)
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceInterval, func() {
		if err := w.Reload(); err != nil {
			w.logger.Error("credential reload failed", "error", err)
		}
	})
}

// Reload reads the credential file and swaps its keys into the pool.
// A missing file is a no-op; the previously loaded credentials stay active.
func (w *Watcher) Reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			w.logger.Warn("credential file removed, keeping current credentials", "path", w.path)
			return nil
		}
		return fmt.Errorf("failed to read credential file %q: %w", w.path, err)
	}

	var keys map[string][]string
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("failed to parse credential file %q: %w", w.path, err)
	}

	w.pool.Replace(keys)

	total := 0
	for _, list := range keys {
		total += len(list)
	}
	w.logger.Info("credentials reloaded",
		"path", w.path,
		"providers", len(keys),
		"keys", total,
	)
	return nil
}
