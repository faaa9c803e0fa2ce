// internal/browser/chromedp.go
package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"

	"github.com/valpere/FeedScrapexter/internal/collector"
	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/utils"
)

// ChromeClient is a single headless Chrome tab used as page source.
type ChromeClient struct {
	statsRecorder

	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      config.BrowserConfig
	logger      utils.Logger

	navMu     sync.RWMutex
	navigated bool
}

// NewChromeClient starts Chrome and opens a tab.
func NewChromeClient(cfg config.BrowserConfig, logger utils.Logger) (*ChromeClient, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // containers
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	c := &ChromeClient{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      cfg,
		logger:      logger.WithField("component", "chrome"),
	}
	if err := c.initialize(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	return c, nil
}

func (c *ChromeClient) initialize() error {
	tasks := []chromedp.Action{}
	if c.config.ViewportW > 0 && c.config.ViewportH > 0 {
		tasks = append(tasks, chromedp.EmulateViewport(int64(c.config.ViewportW), int64(c.config.ViewportH)))
		// narrow viewports get the mobile layout
		if c.config.ViewportW < 768 {
			tasks = append(tasks, chromedp.Emulate(device.IPhone8))
		}
	}
	return chromedp.Run(c.ctx, tasks...)
}

// run executes actions on the tab, bounded by the configured timeout and by ctx.
func (c *ChromeClient) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(c.ctx, c.config.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

// Navigate loads url and waits for the body, plus the configured element if any.
func (c *ChromeClient) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	tasks := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if c.config.WaitFor != "" {
		tasks = append(tasks, chromedp.WaitVisible(c.config.WaitFor, chromedp.ByQuery))
	}

	err := c.run(ctx, tasks...)
	c.navMu.Lock()
	c.navigated = err == nil
	c.navMu.Unlock()
	if err != nil {
		c.failed(stderrors.Is(err, context.DeadlineExceeded))
		return fmt.Errorf("navigation failed: %w", err)
	}

	elapsed := time.Since(start)
	c.loaded(elapsed)
	c.logger.WithFields(map[string]interface{}{
		"url":        url,
		"elapsed_ms": elapsed.Milliseconds(),
	}).Debug("page loaded")
	return nil
}

// Current returns the tab's URL and rendered HTML.
func (c *ChromeClient) Current(ctx context.Context) (collector.Page, error) {
	c.navMu.RLock()
	navigated := c.navigated
	c.navMu.RUnlock()
	if !navigated {
		return collector.Page{}, ErrNotNavigated
	}

	var page collector.Page
	err := c.run(ctx,
		chromedp.Location(&page.URL),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		c.failed(stderrors.Is(err, context.DeadlineExceeded))
		return collector.Page{}, fmt.Errorf("failed to get HTML: %w", err)
	}
	return page, nil
}

// Close closes the tab and the browser.
func (c *ChromeClient) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}
