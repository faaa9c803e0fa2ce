// internal/collector/collector.go
package collector

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/valpere/FeedScrapexter/internal/extractor"
	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// DefaultMaxItems caps the nodes processed per batch rule.
const DefaultMaxItems = 50

// ErrPassInFlight is returned when a pass is requested while another one runs.
// The request is dropped, not queued.
var ErrPassInFlight = stderrors.New("collection pass already in progress")

// Page is a rendered page as seen by the collector.
type Page struct {
	URL  string
	HTML string
}

// PageSource supplies the current page. A headless browser and a static HTTP
// fetcher both implement it.
type PageSource interface {
	Navigate(ctx context.Context, url string) error
	Current(ctx context.Context) (Page, error)
}

// Sink receives finished batches.
type Sink interface {
	Deliver(ctx context.Context, batch *types.Batch) error
}

// Observer receives collection metrics.
type Observer interface {
	ObservePass(pageType selector.PageType, batch *types.Batch, elapsed time.Duration)
	ObserveDroppedPass()
	ObserveDelivery(err error)
}

// Options configures a Collector.
type Options struct {
	MaxItems    int
	SettleDelay time.Duration
	Logger      utils.Logger
	Observer    Observer
}

// Collector runs collection passes for one page session.
type Collector struct {
	resolver    *selector.Resolver
	extractor   *extractor.Extractor
	source      PageSource
	sink        Sink
	maxItems    int
	settleDelay time.Duration
	logger      utils.Logger
	observer    Observer
	now         func() time.Time

	collecting atomic.Bool
}

// New creates a collector. source and sink may be nil when only
// CollectDocument is used and batches are consumed from the return value.
func New(resolver *selector.Resolver, ext *extractor.Extractor, source PageSource, sink Sink, opts Options) *Collector {
	if resolver == nil {
		resolver = selector.NewResolver(nil, nil, selector.ResolverOptions{Logger: opts.Logger})
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if ext == nil {
		ext = extractor.New(opts.Logger)
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	return &Collector{
		resolver:    resolver,
		extractor:   ext,
		source:      source,
		sink:        sink,
		maxItems:    opts.MaxItems,
		settleDelay: opts.SettleDelay,
		logger:      opts.Logger.WithField("component", "collector"),
		observer:    opts.Observer,
		now:         time.Now,
	}
}

// Resolver returns the resolver shared by every pass.
func (c *Collector) Resolver() *selector.Resolver {
	return c.resolver
}

// Collecting reports whether a pass is in flight.
func (c *Collector) Collecting() bool {
	return c.collecting.Load()
}

// Collect runs a pass over the page source's current page.
func (c *Collector) Collect(ctx context.Context) (*types.Batch, error) {
	if c.source == nil {
		return nil, fmt.Errorf("collector has no page source")
	}
	if !c.acquire() {
		return nil, ErrPassInFlight
	}
	defer c.collecting.Store(false)
	return c.collectLocked(ctx)
}

// CollectDocument runs a pass over an already parsed document.
func (c *Collector) CollectDocument(ctx context.Context, pageURL string, doc *goquery.Document) (*types.Batch, error) {
	if !c.acquire() {
		return nil, ErrPassInFlight
	}
	defer c.collecting.Store(false)
	return c.pass(ctx, pageURL, doc)
}

// Navigate loads url, waits for the page to settle and runs a pass, all under
// the same guard. While another pass is in flight the page source is left
// untouched and ErrPassInFlight is returned.
func (c *Collector) Navigate(ctx context.Context, url string) (*types.Batch, error) {
	if c.source == nil {
		return nil, fmt.Errorf("collector has no page source")
	}
	if !c.acquire() {
		return nil, ErrPassInFlight
	}
	defer c.collecting.Store(false)
	if err := c.loadLocked(ctx, url); err != nil {
		return nil, err
	}
	return c.collectLocked(ctx)
}

// Load navigates to url and waits for the page to settle without running a
// pass. It holds the guard so that no pass reads a half loaded page.
func (c *Collector) Load(ctx context.Context, url string) error {
	if c.source == nil {
		return fmt.Errorf("collector has no page source")
	}
	if !c.acquire() {
		return ErrPassInFlight
	}
	defer c.collecting.Store(false)
	return c.loadLocked(ctx, url)
}

func (c *Collector) acquire() bool {
	if c.collecting.CompareAndSwap(false, true) {
		return true
	}
	c.dropped()
	return false
}

func (c *Collector) loadLocked(ctx context.Context, url string) error {
	if err := c.source.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	c.logger.WithFields(map[string]interface{}{
		"url":       url,
		"page_type": string(DetectPageType(url)),
	}).Debug("navigated")

	if c.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.settleDelay):
		}
	}
	return nil
}

func (c *Collector) collectLocked(ctx context.Context) (*types.Batch, error) {
	page, err := c.source.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", page.URL, err)
	}
	return c.pass(ctx, page.URL, doc)
}

// Run collects immediately and then on every tick until ctx is done. Ticks
// that fire while a pass is in flight are dropped.
func (c *Collector) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("collection interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := c.Collect(ctx); err != nil && !stderrors.Is(err, ErrPassInFlight) {
			c.logger.Errorf("collection pass failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pass runs the page type's rules and delivers the batch. The returned error
// is only the delivery error; the batch is always complete.
func (c *Collector) pass(ctx context.Context, pageURL string, doc *goquery.Document) (*types.Batch, error) {
	start := c.now()
	pageType := DetectPageType(pageURL)
	batch := types.NewBatch(pageURL, string(pageType), start)
	log := c.logger.WithFields(map[string]interface{}{
		"batch_id":  batch.ID,
		"page_type": string(pageType),
	})

	rules := RulesFor(pageType)
	if len(rules) > 0 {
		p := &passState{
			Collector: c,
			doc:       doc,
			pageURL:   pageURL,
			pageType:  pageType,
			batch:     batch,
			consumed:  make(map[*html.Node]struct{}),
			seenIDs:   make(map[string]struct{}),
			channels:  make(map[string]struct{}),
			queries:   c.fieldQueries(ctx, doc, pageType),
		}
		for _, rule := range rules {
			p.run(ctx, rule)
		}
	}

	elapsed := c.now().Sub(start)
	if c.observer != nil {
		c.observer.ObservePass(pageType, batch, elapsed)
	}
	log.WithFields(map[string]interface{}{
		"videos":        len(batch.Videos),
		"shorts":        len(batch.Shorts),
		"recommended":   len(batch.RecommendedVideos),
		"subscriptions": len(batch.Subscriptions),
		"elapsed_ms":    elapsed.Milliseconds(),
	}).Info("collection pass finished")

	if batch.IsEmpty() || c.sink == nil {
		return batch, nil
	}
	err := c.sink.Deliver(ctx, batch)
	if c.observer != nil {
		c.observer.ObserveDelivery(err)
	}
	if err != nil {
		log.Warnf("batch delivery failed: %v", err)
		return batch, fmt.Errorf("failed to deliver batch %s: %w", batch.ID, err)
	}
	return batch, nil
}

func (c *Collector) fieldQueries(ctx context.Context, doc *goquery.Document, pageType selector.PageType) extractor.Queries {
	resolved := make(map[selector.Target]string, 4)
	for _, t := range []selector.Target{
		selector.TargetVideoLink, selector.TargetVideoTitle,
		selector.TargetChannelName, selector.TargetMetadata,
	} {
		resolved[t] = c.resolver.Resolve(ctx, doc, pageType, t)
	}
	return extractor.QueriesFrom(resolved)
}

func (c *Collector) dropped() {
	c.logger.Debug("collection pass dropped, another pass is in flight")
	if c.observer != nil {
		c.observer.ObserveDroppedPass()
	}
}

// passState is the per-pass bookkeeping.
type passState struct {
	*Collector
	doc      *goquery.Document
	pageURL  string
	pageType selector.PageType
	batch    *types.Batch
	queries  extractor.Queries

	// nodes already turned into a record by an earlier rule
	consumed map[*html.Node]struct{}
	// id of the current video, kept out of the batch lists
	seenIDs  map[string]struct{}
	channels map[string]struct{}
}

func (p *passState) run(ctx context.Context, rule Rule) {
	switch rule.Kind {
	case RuleCurrent:
		rec := p.extractor.ExtractCurrent(p.doc.Selection, p.pageURL, p.queries, rule.Phase)
		if rec == nil {
			return
		}
		p.seenIDs[rec.ID] = struct{}{}
		p.append(rule.List, *rec)

	case RuleBatch:
		p.eachNode(ctx, rule, func(node *goquery.Selection) {
			list, phase := rule.List, rule.Phase
			if rule.Split && extractor.IsShort(node) {
				list, phase = ListShorts, types.PhaseShorts
			}
			rec := p.extractor.Extract(node, p.queries, phase)
			if rec == nil {
				return
			}
			if _, dup := p.seenIDs[rec.ID]; dup {
				return
			}
			p.append(list, *rec)
		})

	case RuleChannels:
		p.eachNode(ctx, rule, func(node *goquery.Selection) {
			rec := p.extractor.ExtractChannel(node)
			if rec == nil {
				return
			}
			key := rec.ChannelID + rec.Handle
			if _, dup := p.channels[key]; dup {
				return
			}
			p.channels[key] = struct{}{}
			p.batch.Subscriptions = append(p.batch.Subscriptions, *rec)
		})
	}
}

// eachNode resolves the rule's container query and calls fn for up to
// maxItems nodes not consumed by an earlier rule, in document order.
func (p *passState) eachNode(ctx context.Context, rule Rule, fn func(*goquery.Selection)) {
	query := p.resolver.Resolve(ctx, p.doc, p.pageType, rule.Target)
	processed := 0
	selector.Select(p.doc.Selection, query).EachWithBreak(func(_ int, node *goquery.Selection) bool {
		n := node.Get(0)
		if p.isConsumed(n) {
			return true
		}
		p.consumed[n] = struct{}{}
		fn(node)
		processed++
		return processed < p.maxItems
	})
}

// isConsumed reports whether n or one of its ancestors already produced a record.
func (p *passState) isConsumed(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if _, done := p.consumed[n]; done {
			return true
		}
	}
	return false
}

func (p *passState) append(list List, rec types.ExtractedRecord) {
	switch list {
	case ListShorts:
		p.batch.Shorts = append(p.batch.Shorts, rec)
	case ListRecommended:
		p.batch.RecommendedVideos = append(p.batch.RecommendedVideos, rec)
	default:
		p.batch.Videos = append(p.batch.Videos, rec)
	}
}
