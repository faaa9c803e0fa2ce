// internal/config/watcher.go
package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/internal/utils"
)

// Watcher reloads a pattern-library override file when it changes and hands the
// merged library to the registered callbacks.
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	logger    utils.Logger
	callbacks []func(*selector.Library)
	mu        sync.RWMutex
	stopped   bool
	done      chan struct{}
}

// NewWatcher starts watching path.
func NewWatcher(path string, logger utils.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("patterns file path cannot be empty")
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve patterns file: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		path:    abs,
		logger:  logger.WithField("component", "pattern_watcher"),
		done:    make(chan struct{}),
	}

	if err := fw.Add(abs); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch patterns file: %w", err)
	}

	// editors that save through a temp file replace the inode
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		w.logger.Warnf("failed to watch patterns directory: %v", err)
	}

	go w.watch()

	return w, nil
}

// OnChange registers a callback to be called with each reloaded library.
func (w *Watcher) OnChange(callback func(*selector.Library)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

func (w *Watcher) watch() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == w.path && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("pattern watcher error: %v", err)
		}
	}
}

// reload parses the file. A broken file keeps the previous library in place.
func (w *Watcher) reload() {
	w.mu.RLock()
	if w.stopped {
		w.mu.RUnlock()
		return
	}
	callbacks := make([]func(*selector.Library), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	library, err := selector.LoadLibrary(w.path)
	if err != nil {
		w.logger.Errorf("failed to reload pattern library: %v", err)
		return
	}
	w.logger.WithField("entries", len(library.Entries())).Info("pattern library reloaded")

	for _, callback := range callbacks {
		callback(library)
	}
}

// Close stops the watcher and releases resources
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}
