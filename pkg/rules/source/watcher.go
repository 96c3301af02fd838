package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig contains configuration for the definition file watcher.
type WatcherConfig struct {
	// DebounceInterval is how long to wait after the last file event before
	// resyncing. Default: 250ms.
	DebounceInterval time.Duration
}

// ApplyDefaults fills unset fields with defaults.
func (c *WatcherConfig) ApplyDefaults() {
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = 250 * time.Millisecond
	}
}

// Watcher republishes definition files into the store when they change on
// disk. Rapid event bursts are debounced into a single sync.
type Watcher struct {
	loader   *Loader
	watcher  *fsnotify.Watcher
	config   *WatcherConfig
	logger   *slog.Logger
	debounce *debouncer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher over the loader's configured path.
func NewWatcher(loader *Loader, config *WatcherConfig, logger *slog.Logger) (*Watcher, error) {
	if config == nil {
		config = &WatcherConfig{}
	}
	config.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		loader:   loader,
		watcher:  fsw,
		config:   config,
		logger:   logger.With("component", "source-watcher"),
		debounce: newDebouncer(config.DebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks processing file events until the context is cancelled or
// Stop is called. Each debounced change triggers a full loader Sync; sync
// failures are logged and the previously deployed versions stay in effect.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(w.doneCh)
	}()

	if err := w.addPath(w.loader.config.Path); err != nil {
		return fmt.Errorf("failed to watch definition path: %w", err)
	}

	w.logger.Info("Definition watcher started",
		"path", w.loader.config.Path,
		"debounce_ms", w.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Definition watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("Definition watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !shouldProcessEvent(event) {
				continue
			}

			w.logger.Debug("Definition file event",
				"path", event.Name,
				"op", event.Op.String(),
			)

			w.debounce.trigger(func() {
				syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				published, err := w.loader.Sync(syncCtx)
				if err != nil {
					w.logger.Error("Definition resync failed", "error", err)
					return
				}
				w.logger.Info("Definition resync complete", "published", published)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("Definition watcher error", "error", err)
		}
	}
}

// Stop stops the watcher and waits for Watch to return.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.debounce.stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) addPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(path)
	}
	return filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(p), ".") && p != path {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

func shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return isDefinitionFile(event.Name)
}

// debouncer collapses a burst of triggers into one callback after a quiet
// period.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()
		if cb != nil && !stopped {
			cb()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
