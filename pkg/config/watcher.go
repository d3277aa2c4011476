package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file for changes and delivers reloaded
// configurations to a callback. Changes are debounced so editors that write
// in multiple steps (or atomically replace the file) trigger one reload.
type Watcher struct {
	path     string
	onChange func(*Config)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WatcherConfig contains configuration for the config watcher.
type WatcherConfig struct {
	// Path is the config file to watch.
	Path string

	// DebounceInterval is the quiet period before a reload is triggered.
	// Default: 250ms.
	DebounceInterval time.Duration

	// OnChange receives each successfully reloaded configuration.
	OnChange func(*Config)
}

// NewWatcher creates a config file watcher. The file's parent directory is
// watched rather than the file itself, so atomic rename-replace saves are
// observed.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path must not be empty")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("OnChange callback must not be nil")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 250 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     cfg.Path,
		onChange: cfg.OnChange,
		debounce: cfg.DebounceInterval,
		watcher:  fw,
		logger:   slog.Default().With("component", "config.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; events are handled on a
// background goroutine until Stop is called.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already started")
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.running = true
	go w.loop()

	w.logger.Info("config watcher started", "path", w.path)
	return nil
}

// loop dispatches fsnotify events until the watcher is stopped.
func (w *Watcher) loop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

// scheduleReload (re)arms the debounce timer.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload loads the config file and delivers it to the callback. Load
// failures are logged and the previous configuration stays in effect.
func (w *Watcher) reload() {
	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.logger.Error("failed to reload config after change",
			"path", w.path,
			"error", err,
		)
		return
	}

	w.logger.Info("config reloaded", "path", w.path)
	w.onChange(cfg)
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.stopCh)
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.doneCh

	w.logger.Info("config watcher stopped")
	return err
}
