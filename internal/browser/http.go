// internal/browser/http.go
package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/valpere/FeedScrapexter/internal/collector"
	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/internal/utils"
)

// maxBodySize caps the bytes read from one page.
const maxBodySize = 16 << 20

// HTTPPage fetches pages with plain GET requests. It sees the server-rendered
// HTML only, which is enough for static snapshots and tests.
type HTTPPage struct {
	statsRecorder

	client  *http.Client
	limiter *rate.Limiter
	retry   errors.RetryConfig
	agent   string
	headers map[string]string
	logger  utils.Logger

	mu   sync.RWMutex
	page *collector.Page
}

// NewHTTPPage creates the fetcher.
func NewHTTPPage(cfg config.HTTPConfig, logger utils.Logger) *HTTPPage {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPPage{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			}),
		},
		limiter: rate.NewLimiter(limit, burst),
		retry:   cfg.Retry,
		agent:   cfg.UserAgent,
		headers: cfg.Headers,
		logger:  logger.WithField("component", "http_page"),
	}
}

// Navigate fetches url and keeps it as the current page.
func (h *HTTPPage) Navigate(ctx context.Context, target string) error {
	if _, err := url.ParseRequestURI(target); err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	start := time.Now()
	var body string
	err := errors.Retry(ctx, h.retry, "fetch "+target, func(ctx context.Context) error {
		var err error
		body, err = h.fetch(ctx, target)
		return err
	})
	if err != nil {
		h.failed(stderrors.Is(err, context.DeadlineExceeded))
		return err
	}

	h.loaded(time.Since(start))
	h.mu.Lock()
	h.page = &collector.Page{URL: target, HTML: body}
	h.mu.Unlock()
	return nil
}

func (h *HTTPPage) fetch(ctx context.Context, target string) (string, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return "", errors.Permanent(fmt.Errorf("rate limiter error: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", errors.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if h.agent != "" {
		req.Header.Set("User-Agent", h.agent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		if !retryableStatus(resp.StatusCode) {
			return "", errors.Permanent(err)
		}
		h.logger.Debugf("retryable status from %s: %d", target, resp.StatusCode)
		return "", err
	}

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", errors.Permanent(fmt.Errorf("unsupported charset: %w", err))
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(data), nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// Current returns the last fetched page.
func (h *HTTPPage) Current(_ context.Context) (collector.Page, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.page == nil {
		return collector.Page{}, ErrNotNavigated
	}
	return *h.page, nil
}

func (h *HTTPPage) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
