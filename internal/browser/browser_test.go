// internal/browser/browser_test.go
package browser

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/errors"
)

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		UserAgent: "feedscrapexter-test",
		Timeout:   5 * time.Second,
		Retry: errors.RetryConfig{
			MaxRetries:    2,
			BaseDelay:     time.Millisecond,
			BackoffFactor: 1,
			MaxDelay:      5 * time.Millisecond,
		},
		Headers: map[string]string{"Accept-Language": "en-US"},
	}
}

func TestHTTPPage_NavigateAndCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "feedscrapexter-test" {
			t.Errorf("unexpected user agent %q", got)
		}
		if got := r.Header.Get("Accept-Language"); got != "en-US" {
			t.Errorf("custom header not sent, got %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><h1>Feed</h1></body></html>"))
	}))
	defer server.Close()

	page := NewHTTPPage(testHTTPConfig(), nil)
	defer page.Close()

	ctx := context.Background()
	if _, err := page.Current(ctx); !stderrors.Is(err, ErrNotNavigated) {
		t.Fatalf("expected ErrNotNavigated before navigation, got %v", err)
	}

	target := server.URL + "/feed/subscriptions"
	if err := page.Navigate(ctx, target); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	current, err := page.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if current.URL != target {
		t.Errorf("expected URL %s, got %s", target, current.URL)
	}
	if !strings.Contains(current.HTML, "<h1>Feed</h1>") {
		t.Errorf("unexpected HTML: %s", current.HTML)
	}
	if stats := page.Stats(); stats.PagesLoaded != 1 || stats.Errors != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestHTTPPage_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	page := NewHTTPPage(testHTTPConfig(), nil)
	if err := page.Navigate(context.Background(), server.URL); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestHTTPPage_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	page := NewHTTPPage(testHTTPConfig(), nil)
	err := page.Navigate(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !errors.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected a single request, got %d", got)
	}
	if stats := page.Stats(); stats.Errors != 1 {
		t.Errorf("expected one error in stats, got %+v", stats)
	}
	if _, err := page.Current(context.Background()); !stderrors.Is(err, ErrNotNavigated) {
		t.Errorf("failed navigation must not set a page, got %v", err)
	}
}

func TestHTTPPage_DecodesCharset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Café" in Latin-1
		w.Write([]byte("<html><body><p>Caf\xe9</p></body></html>"))
	}))
	defer server.Close()

	page := NewHTTPPage(testHTTPConfig(), nil)
	if err := page.Navigate(context.Background(), server.URL); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	current, _ := page.Current(context.Background())
	if !strings.Contains(current.HTML, "Café") {
		t.Errorf("expected decoded text, got %q", current.HTML)
	}
}

func TestHTTPPage_InvalidURL(t *testing.T) {
	page := NewHTTPPage(testHTTPConfig(), nil)
	if err := page.Navigate(context.Background(), "not a url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestNew_SelectsHTTPWhenBrowserDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.Enabled = false

	source, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer source.Close()
	if _, ok := source.(*HTTPPage); !ok {
		t.Errorf("expected *HTTPPage, got %T", source)
	}

	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestChromeClient_Current(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	found := false
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			found = true
			break
		}
	}
	if !found {
		t.Skip("Chrome is not installed")
	}

	client, err := NewChromeClient(config.BrowserConfig{
		Enabled:   true,
		Headless:  true,
		ViewportW: 1366,
		ViewportH: 900,
		Timeout:   15 * time.Second,
	}, nil)
	if err != nil {
		t.Skipf("Skipping browser test - Chrome may not be available: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	if _, err := client.Current(ctx); !stderrors.Is(err, ErrNotNavigated) {
		t.Fatalf("expected ErrNotNavigated before navigation, got %v", err)
	}

	if err := client.Navigate(ctx, "data:text/html,<html><body><h1>Test</h1></body></html>"); err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	page, err := client.Current(ctx)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if !strings.Contains(page.HTML, "<h1>Test</h1>") {
		t.Errorf("expected rendered HTML, got %s", page.HTML)
	}
}
