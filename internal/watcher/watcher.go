// Package watcher reports changes to files written by other myday processes.
// It watches the parent directory of each file, so files replaced by rename
// are still seen, and batches bursts of events with a debounce window.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"myday/internal/utils"
)

// DefaultDebounceDuration is the default debounce window for batching rapid changes.
const DefaultDebounceDuration = 250 * time.Millisecond

// Config holds file watcher configuration.
type Config struct {
	Files            []string          // Files to watch
	DebounceDuration time.Duration     // Debounce window to batch rapid changes
	OnChange         func(path string) // Called once per file after its events settle
	Logger           *utils.Logger
}

// Watcher monitors a set of files and calls OnChange when one of them changes.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	files   map[string]bool // cleaned absolute paths
	stopCh  chan struct{}
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New creates a new Watcher instance.
func New(cfg Config) (*Watcher, error) {
	if cfg.DebounceDuration <= 0 {
		cfg.DebounceDuration = DefaultDebounceDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.GetLogger()
	}

	files := make(map[string]bool, len(cfg.Files))
	for _, f := range cfg.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", f, err)
		}
		files[abs] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		files:  files,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start begins watching the directories of the configured files.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			w.cfg.Logger.Debug("watcher: skipping missing directory %s", dir)
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", dir, err)
		}
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.fsw.Close()
	w.mu.Unlock()

	select {
	case <-w.done:
	case <-time.After(time.Second):
	}
}

// eventLoop debounces events per file and reports each file once per burst.
func (w *Watcher) eventLoop() {
	defer close(w.done)

	timers := make(map[string]*time.Timer)
	fired := make(chan string, len(w.files)+1)

	for {
		select {
		case <-w.stopCh:
			for _, t := range timers {
				t.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			path := filepath.Clean(event.Name)
			if !w.files[path] {
				continue
			}
			if t, ok := timers[path]; ok {
				t.Stop()
			}
			timers[path] = time.AfterFunc(w.cfg.DebounceDuration, func() {
				select {
				case fired <- path:
				case <-w.stopCh:
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Warn("watcher: %v", err)

		case path := <-fired:
			delete(timers, path)
			if w.cfg.OnChange != nil {
				w.cfg.OnChange(path)
			}
		}
	}
}
