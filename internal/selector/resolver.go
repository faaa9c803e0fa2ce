// internal/selector/resolver.go
package selector

import (
	"context"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/internal/utils"
)

// Tier names the step of the resolution chain that produced a query.
type Tier string

const (
	TierCache      Tier = "cache"
	TierLibrary    Tier = "library"
	TierEscalation Tier = "escalation"
	TierFallback   Tier = "fallback"
)

// Escalation outcomes reported to the Observer.
const (
	EscalationAccepted = "accepted"
	EscalationRejected = "rejected"
	EscalationFailed   = "failed"
)

// Escalator proposes a replacement query for a target after repeated misses.
// An empty result with a nil error means no proposal.
type Escalator interface {
	Discover(ctx context.Context, doc *goquery.Document, target Target, pageType PageType) (string, error)
}

// Observer receives resolution events, typically for metrics.
type Observer interface {
	ObserveResolution(pageType PageType, target Target, tier Tier, matched bool)
	ObserveEscalation(pageType PageType, target Target, outcome string)
}

// Resolution is the detailed result of one Resolve call.
type Resolution struct {
	Query    string
	Tier     Tier
	Matched  bool
	Failures int
}

// ResolverOptions configures optional collaborators of a Resolver.
type ResolverOptions struct {
	Escalator Escalator
	Threshold int
	Logger    utils.Logger
	Observer  Observer
}

// Resolver holds the per-session resolution state: the cache, the failure
// counters and the pattern library.
type Resolver struct {
	mu        sync.RWMutex
	library   *Library
	cache     *Cache
	failures  *FailureTracker
	escalator Escalator
	threshold int
	logger    utils.Logger
	observer  Observer
}

// NewResolver creates a resolver. A nil library selects the built-in one and a
// nil cache selects an in-memory cache.
func NewResolver(library *Library, cache *Cache, opts ResolverOptions) *Resolver {
	if library == nil {
		library = DefaultLibrary()
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if cache == nil {
		cache = NewCache(NewMemoryStore(), DefaultCacheTTL, opts.Logger)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultEscalationThreshold
	}
	return &Resolver{
		library:   library,
		cache:     cache,
		failures:  NewFailureTracker(),
		escalator: opts.Escalator,
		threshold: opts.Threshold,
		logger:    opts.Logger.WithField("component", "resolver"),
		observer:  opts.Observer,
	}
}

// Library returns the current pattern library.
func (r *Resolver) Library() *Library {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.library
}

// SetLibrary swaps the pattern library, e.g. after a reload.
func (r *Resolver) SetLibrary(library *Library) {
	if library == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.library = library
}

// Failures exposes the failure counters.
func (r *Resolver) Failures() *FailureTracker {
	return r.failures
}

// Resolve returns one usable query for the target. The result may match nothing;
// callers must cope with an empty selection.
func (r *Resolver) Resolve(ctx context.Context, doc *goquery.Document, pageType PageType, target Target) string {
	return r.ResolveDetailed(ctx, doc, pageType, target).Query
}

// ResolveDetailed runs the chain cache -> library -> escalation and reports
// which tier answered.
func (r *Resolver) ResolveDetailed(ctx context.Context, doc *goquery.Document, pageType PageType, target Target) Resolution {
	log := r.logger.WithFields(map[string]interface{}{
		"page_type": string(pageType),
		"target":    string(target),
	})
	root := documentRoot(doc)

	if entry, ok := r.cache.Lookup(ctx, pageType, target); ok {
		if Probe(root, entry.Query) {
			r.failures.Reset(pageType, target)
			return r.done(log, pageType, target, Resolution{Query: entry.Query, Tier: TierCache, Matched: true})
		}
		log.WithField("query", entry.Query).Debug("cached query no longer matches")
	}

	fallback, _ := r.Library().Lookup(pageType, target)
	if Probe(root, fallback) {
		r.failures.Reset(pageType, target)
		_ = r.cache.Save(ctx, pageType, target, fallback)
		return r.done(log, pageType, target, Resolution{Query: fallback, Tier: TierLibrary, Matched: true})
	}

	count := r.failures.Increment(pageType, target)
	if count >= r.threshold && r.escalator != nil {
		if proposed, ok := r.escalate(ctx, log, doc, root, pageType, target); ok {
			r.failures.Reset(pageType, target)
			_ = r.cache.Save(ctx, pageType, target, proposed)
			return r.done(log, pageType, target, Resolution{Query: proposed, Tier: TierEscalation, Matched: true})
		}
	}

	return r.done(log, pageType, target, Resolution{Query: fallback, Tier: TierFallback, Matched: false, Failures: count})
}

func (r *Resolver) escalate(ctx context.Context, log utils.Logger, doc *goquery.Document, root *goquery.Selection, pageType PageType, target Target) (string, bool) {
	proposed, err := r.escalator.Discover(ctx, doc, target, pageType)
	if err != nil {
		log.Warnf("escalation failed: %v", err)
		r.observeEscalation(pageType, target, EscalationFailed)
		return "", false
	}
	if !Probe(root, proposed) {
		log.WithField("query", proposed).Warn("escalation proposal matches nothing, discarded")
		r.observeEscalation(pageType, target, EscalationRejected)
		return "", false
	}
	log.WithField("query", proposed).Info("escalation proposal accepted")
	r.observeEscalation(pageType, target, EscalationAccepted)
	return proposed, true
}

func (r *Resolver) done(log utils.Logger, pageType PageType, target Target, res Resolution) Resolution {
	if res.Matched {
		log.WithField("tier", string(res.Tier)).Debug("query resolved")
	} else {
		log.WithFields(map[string]interface{}{
			"tier":     string(res.Tier),
			"failures": res.Failures,
		}).Warn("no query matched, using default")
	}
	if r.observer != nil {
		r.observer.ObserveResolution(pageType, target, res.Tier, res.Matched)
	}
	return res
}

func (r *Resolver) observeEscalation(pageType PageType, target Target, outcome string) {
	if r.observer != nil {
		r.observer.ObserveEscalation(pageType, target, outcome)
	}
}

func documentRoot(doc *goquery.Document) *goquery.Selection {
	if doc == nil {
		return nil
	}
	return doc.Selection
}
