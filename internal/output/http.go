// internal/output/http.go
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// HTTPSink posts each batch as JSON to an ingestion endpoint.
type HTTPSink struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     utils.Logger
}

// NewHTTPSink creates a sink posting to endpoint.
func NewHTTPSink(endpoint, apiKey string, timeout time.Duration, logger utils.Logger) (*HTTPSink, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("http sink endpoint is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &HTTPSink{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		logger: logger.WithField("sink", "http"),
	}, nil
}

func (s *HTTPSink) Name() string { return "http" }

// Deliver posts the batch. Client errors other than 408 and 429 are
// permanent and are not retried.
func (s *HTTPSink) Deliver(ctx context.Context, batch *types.Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return errors.Permanent(fmt.Errorf("failed to encode batch: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Permanent(fmt.Errorf("failed to build batch request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Batch-ID", batch.ID)
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("batch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("ingestion endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != http.StatusRequestTimeout && resp.StatusCode != http.StatusTooManyRequests {
			return errors.Permanent(err)
		}
		return err
	}
	io.Copy(io.Discard, resp.Body)

	s.logger.WithFields(map[string]interface{}{
		"batch_id": batch.ID,
		"records":  batch.Len(),
	}).Debug("batch delivered")
	return nil
}

func (s *HTTPSink) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
