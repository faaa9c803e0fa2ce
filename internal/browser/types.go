// internal/browser/types.go

// Package browser provides the page sources the collector reads from: a
// headless Chrome session for rendered feed pages and a rate limited HTTP
// fetcher for static HTML.
package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/valpere/FeedScrapexter/internal/collector"
	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/utils"
)

// ErrNotNavigated is returned by Current before the first successful navigation.
var ErrNotNavigated = fmt.Errorf("no page loaded: navigation has not completed successfully")

// Source is a page source that holds resources until closed.
type Source interface {
	collector.PageSource
	Stats() Stats
	Close() error
}

// Stats contains page source statistics
type Stats struct {
	PagesLoaded     int           `json:"pages_loaded"`
	AverageLoadTime time.Duration `json:"average_load_time"`
	Errors          int           `json:"errors"`
	Timeouts        int           `json:"timeouts"`
}

// statsRecorder is embedded by both sources.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func (r *statsRecorder) loaded(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.PagesLoaded++
	if r.stats.PagesLoaded == 1 {
		r.stats.AverageLoadTime = d
	} else {
		r.stats.AverageLoadTime = (r.stats.AverageLoadTime + d) / 2
	}
}

func (r *statsRecorder) failed(timeout bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Errors++
	if timeout {
		r.stats.Timeouts++
	}
}

// Stats returns a snapshot of the counters.
func (r *statsRecorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// New returns the Chrome client when the browser is enabled and the HTTP
// fetcher otherwise.
func New(cfg *config.Config, logger utils.Logger) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.Browser.Enabled {
		return NewChromeClient(cfg.Browser, logger)
	}
	return NewHTTPPage(cfg.HTTP, logger), nil
}
