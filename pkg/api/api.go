// pkg/api/api.go

// Package api wires the configured components into a collection pipeline and
// is the entry point used by the command-line tool and the HTTP server.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/FeedScrapexter/internal/browser"
	"github.com/valpere/FeedScrapexter/internal/collector"
	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/escalation"
	"github.com/valpere/FeedScrapexter/internal/extractor"
	"github.com/valpere/FeedScrapexter/internal/monitoring"
	"github.com/valpere/FeedScrapexter/internal/output"
	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/internal/storage"
	"github.com/valpere/FeedScrapexter/internal/utils"
)

// Options adjusts how New builds a pipeline.
type Options struct {
	Logger  utils.Logger
	Version string
	// Source replaces the configured page source.
	Source collector.PageSource
	// Offline skips creating a page source; only Extract is usable.
	Offline bool
}

type resetter interface {
	Reset(ctx context.Context) error
}

// Pipeline is one page session: a resolver with its cache and failure
// counters, a collector and the output stage.
type Pipeline struct {
	config    *config.Config
	logger    utils.Logger
	resolver  *selector.Resolver
	collector *collector.Collector
	output    *output.Manager
	metrics   *monitoring.Metrics
	health    *monitoring.HealthManager

	db        *storage.DB
	store     resetter
	escalator *escalation.Client
	source    browser.Source
	watcher   *config.Watcher
	// page source in use, owned or injected
	pageSource collector.PageSource
}

// New builds the pipeline described by cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (p *Pipeline, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	p = &Pipeline{
		config:  cfg,
		logger:  logger,
		metrics: monitoring.NewMetrics(monitoring.DefaultNamespace),
		health:  monitoring.NewHealthManager(opts.Version),
	}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	library := selector.DefaultLibrary()
	if cfg.Selectors.PatternsFile != "" {
		if library, err = selector.LoadLibrary(cfg.Selectors.PatternsFile); err != nil {
			return nil, fmt.Errorf("failed to load patterns: %w", err)
		}
	}

	var (
		store  selector.Store
		outbox output.Outboxer
	)
	if cfg.Cache.Driver == "" || cfg.Cache.Driver == config.DefaultCacheDriver {
		mem := selector.NewMemoryStore()
		store, p.store = mem, mem
	} else {
		if p.db, err = storage.Open(ctx, cfg.Cache.Driver, cfg.Cache.DSN, logger); err != nil {
			return nil, err
		}
		sqlStore := storage.NewSQLStore(p.db)
		store, p.store = sqlStore, sqlStore
		outbox = storage.NewOutbox(p.db)
		p.health.RegisterCheck(monitoring.DatabaseHealthCheck("selector_cache", p.db.Ping))
	}

	resolverOpts := selector.ResolverOptions{
		Threshold: cfg.Selectors.EscalationThreshold,
		Logger:    logger,
		Observer:  p.metrics,
	}
	p.escalator, err = escalation.NewClient(cfg.Escalation, logger)
	switch {
	case err == nil:
		resolverOpts.Escalator = p.escalator
		p.health.RegisterCheck(monitoring.BreakerHealthCheck("escalation", p.escalator.BreakerState))
	case stderrors.Is(err, escalation.ErrEscalationDisabled):
		logger.Debug("escalation disabled")
	default:
		return nil, fmt.Errorf("failed to create escalation client: %w", err)
	}
	p.resolver = selector.NewResolver(library,
		selector.NewCache(store, cfg.Selectors.CacheTTL, logger), resolverOpts)

	if p.output, err = output.NewManager(ctx, &cfg.Output, outbox, logger); err != nil {
		return nil, err
	}
	if p.output.Retaining() {
		p.health.RegisterCheck(monitoring.OutboxHealthCheck(p.output.Pending, 100))
	}

	source := opts.Source
	if source == nil && !opts.Offline {
		if p.source, err = browser.New(cfg, logger); err != nil {
			return nil, fmt.Errorf("failed to create page source: %w", err)
		}
		source = p.source
	}
	p.pageSource = source

	p.collector = collector.New(p.resolver, extractor.New(logger), source, p.output, collector.Options{
		MaxItems:    cfg.Collector.MaxItems,
		SettleDelay: cfg.Collector.SettleDelay,
		Logger:      logger,
		Observer:    p.metrics,
	})

	if cfg.Selectors.WatchPatterns && cfg.Selectors.PatternsFile != "" {
		if p.watcher, err = config.NewWatcher(cfg.Selectors.PatternsFile, logger); err != nil {
			return nil, err
		}
		p.watcher.OnChange(p.resolver.SetLibrary)
	}
	p.health.RegisterCheck(monitoring.GoroutineHealthCheck(10000))
	return p, nil
}

// Collect navigates to url and runs a pass.
func (p *Pipeline) Collect(ctx context.Context, url string) (*Batch, error) {
	batch, err := p.collector.Navigate(ctx, url)
	p.refreshRetained(ctx)
	return batch, err
}

// Extract runs a pass over an HTML document captured from pageURL.
func (p *Pipeline) Extract(ctx context.Context, pageURL string, r io.Reader) (*Batch, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	batch, err := p.collector.CollectDocument(ctx, pageURL, doc)
	p.refreshRetained(ctx)
	return batch, err
}

// Watch navigates to url and collects on every configured interval until ctx
// is done. Retained batches are flushed before each delivery.
func (p *Pipeline) Watch(ctx context.Context, url string) error {
	if p.pageSource == nil {
		return fmt.Errorf("pipeline has no page source")
	}
	if err := p.collector.Load(ctx, url); err != nil {
		return err
	}
	return p.collector.Run(ctx, p.config.Collector.Interval)
}

// Flush redelivers retained batches and prunes the ones past the retention age.
func (p *Pipeline) Flush(ctx context.Context) (int, error) {
	delivered, err := p.output.Flush(ctx)
	p.metrics.ObserveFlush(delivered)
	if pruned, perr := p.output.Prune(ctx); perr != nil {
		p.logger.Warnf("failed to prune outbox: %v", perr)
	} else if pruned > 0 {
		p.logger.Infof("pruned %d expired batches", pruned)
	}
	p.refreshRetained(ctx)
	return delivered, err
}

// ResetCache deletes every cached query.
func (p *Pipeline) ResetCache(ctx context.Context) error {
	return p.store.Reset(ctx)
}

// Patterns returns the active pattern library entries.
func (p *Pipeline) Patterns() (string, []PatternEntry) {
	lib := p.resolver.Library()
	return lib.Version, lib.Entries()
}

// Status reports the pipeline state.
func (p *Pipeline) Status(ctx context.Context) Status {
	st := Status{
		PatternsVersion: p.resolver.Library().Version,
		Escalation:      "disabled",
		CacheDriver:     config.DefaultCacheDriver,
		Retaining:       p.output.Retaining(),
		Failures:        p.resolver.Failures().Snapshot(),
	}
	if p.escalator != nil {
		st.Escalation = p.escalator.BreakerState()
	}
	if p.db != nil {
		st.CacheDriver = p.db.Driver()
	}
	if n, err := p.output.Pending(ctx); err == nil {
		st.Pending = n
	}
	return st
}

func (p *Pipeline) Metrics() *monitoring.Metrics { return p.metrics }

func (p *Pipeline) Health() *monitoring.HealthManager { return p.health }

func (p *Pipeline) Config() *config.Config { return p.config }

func (p *Pipeline) refreshRetained(ctx context.Context) {
	if !p.output.Retaining() {
		return
	}
	if n, err := p.output.Pending(ctx); err == nil {
		p.metrics.SetRetained(n)
	}
}

// Close releases the page source, the sinks and the cache database.
func (p *Pipeline) Close() error {
	var errs []error
	if p.watcher != nil {
		errs = append(errs, p.watcher.Close())
	}
	if p.source != nil {
		errs = append(errs, p.source.Close())
	}
	if p.output != nil {
		errs = append(errs, p.output.Close())
	}
	if p.db != nil {
		errs = append(errs, p.db.Close())
	}
	return stderrors.Join(errs...)
}
