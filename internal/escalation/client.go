// internal/escalation/client.go

// Package escalation asks an external classification service for a replacement
// selector once the local strategies for a target keep missing.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/internal/utils"
)

var (
	ErrEscalationDisabled = stderrors.New("escalation endpoint not configured")
	ErrEmptyProposal      = stderrors.New("escalation returned no selector")
	ErrProposalRejected   = stderrors.New("escalation selector matches nothing")
)

// DefaultTimeout bounds a single escalation call.
const DefaultTimeout = 20 * time.Second

// Config configures the escalation client.
type Config struct {
	Endpoint            string                      `yaml:"endpoint" json:"endpoint"`
	APIKey              string                      `yaml:"api_key" json:"api_key"`
	Timeout             time.Duration               `yaml:"timeout" json:"timeout"`
	RatePerSecond       float64                     `yaml:"rate_per_second" json:"rate_per_second"`
	Burst               int                         `yaml:"burst" json:"burst"`
	ContainerSnippetCap int                         `yaml:"container_snippet_cap" json:"container_snippet_cap"`
	FieldSnippetCap     int                         `yaml:"field_snippet_cap" json:"field_snippet_cap"`
	Diet                bool                        `yaml:"diet" json:"diet"`
	Breaker             errors.CircuitBreakerConfig `yaml:"breaker" json:"breaker"`
}

// Request is the body sent to the classification service.
type Request struct {
	HTMLSnippet string `json:"htmlSnippet"`
	Target      string `json:"target"`
	PageType    string `json:"pageType"`
}

// Response is the body expected back.
type Response struct {
	Selector string `json:"selector"`
}

// Client implements selector.Escalator over HTTP.
type Client struct {
	endpoint     string
	apiKey       string
	timeout      time.Duration
	containerCap int
	fieldCap     int
	httpClient   *http.Client
	limiter      *rate.Limiter
	breaker      *errors.CircuitBreaker
	diet         *Diet
	logger       utils.Logger
}

var _ selector.Escalator = (*Client)(nil)

// NewClient creates a client. It fails with ErrEscalationDisabled when no endpoint is set.
func NewClient(cfg Config, logger utils.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrEscalationDisabled
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ContainerSnippetCap <= 0 {
		cfg.ContainerSnippetCap = DefaultContainerSnippetCap
	}
	if cfg.FieldSnippetCap <= 0 {
		cfg.FieldSnippetCap = DefaultFieldSnippetCap
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	c := &Client{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		timeout:      cfg.Timeout,
		containerCap: cfg.ContainerSnippetCap,
		fieldCap:     cfg.FieldSnippetCap,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: errors.NewCircuitBreaker("escalation", cfg.Breaker),
		logger:  logger.WithField("component", "escalation"),
	}
	if cfg.Diet {
		c.diet = NewDiet()
	}
	return c, nil
}

// Snippet serializes the region relevant to target, reduced and size-capped.
func (c *Client) Snippet(doc *goquery.Document, target selector.Target, pageType selector.PageType) string {
	region := Region(doc, target, pageType)
	if region == nil || region.Length() == 0 {
		return ""
	}
	var markup string
	if c.diet != nil {
		markup = c.diet.Apply(region)
	} else {
		markup, _ = goquery.OuterHtml(region.First())
	}
	limit := c.fieldCap
	if isContainerTarget(target) {
		limit = c.containerCap
	}
	return truncate(markup, limit)
}

// Discover requests a selector for target and returns it only if it matches
// at least one node of doc.
func (c *Client) Discover(ctx context.Context, doc *goquery.Document, target selector.Target, pageType selector.PageType) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("escalation for %s/%s: no document", pageType, target)
	}
	if !c.breaker.CanExecute() {
		return "", errors.ErrCircuitOpen
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("escalation rate limit: %w", err)
	}

	req := Request{
		HTMLSnippet: c.Snippet(doc, target, pageType),
		Target:      string(target),
		PageType:    string(pageType),
	}
	log := c.logger.WithFields(map[string]interface{}{
		"target":        req.Target,
		"page_type":     req.PageType,
		"snippet_bytes": len(req.HTMLSnippet),
	})
	log.Debug("requesting selector")

	resp, err := c.post(ctx, req)
	if err != nil {
		c.breaker.RecordFailure()
		return "", err
	}
	c.breaker.RecordSuccess()

	proposal := strings.TrimSpace(resp.Selector)
	if proposal == "" {
		return "", ErrEmptyProposal
	}
	if !selector.Probe(doc.Selection, proposal) {
		log.WithField("query", proposal).Debug("proposal does not match the page")
		return "", fmt.Errorf("%w: %q", ErrProposalRejected, proposal)
	}
	return proposal, nil
}

func (c *Client) post(ctx context.Context, body Request) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode escalation request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build escalation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("escalation request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("escalation service returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out Response
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode escalation response: %w", err)
	}
	return &out, nil
}

// BreakerState reports the circuit breaker state for health output.
func (c *Client) BreakerState() string {
	return c.breaker.GetState().String()
}
