// internal/selector/resolver_test.go
package selector

import (
	"context"
	"errors"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEscalator struct {
	proposal string
	err      error
	calls    int
}

func (s *stubEscalator) Discover(context.Context, *goquery.Document, Target, PageType) (string, error) {
	s.calls++
	return s.proposal, s.err
}

type recordingObserver struct {
	tiers       []Tier
	escalations []string
}

func (o *recordingObserver) ObserveResolution(_ PageType, _ Target, tier Tier, _ bool) {
	o.tiers = append(o.tiers, tier)
}

func (o *recordingObserver) ObserveEscalation(_ PageType, _ Target, outcome string) {
	o.escalations = append(o.escalations, outcome)
}

const emptyPage = `<p>nothing to see</p>`

func TestResolveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, `<ytd-rich-item-renderer><a id="video-title">x</a></ytd-rich-item-renderer>`)
	r := NewResolver(nil, nil, ResolverOptions{})

	for _, target := range AllTargets() {
		first := r.Resolve(ctx, doc, PageHome, target)
		second := r.Resolve(ctx, doc, PageHome, target)
		assert.Equal(t, first, second, "target %s", target)
	}
}

func TestResolveSecondCallHitsCache(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, `<ytd-rich-item-renderer><a id="video-title">x</a></ytd-rich-item-renderer>`)
	r := NewResolver(nil, nil, ResolverOptions{})

	first := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
	require.True(t, first.Matched)
	assert.Equal(t, TierLibrary, first.Tier)

	second := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
	assert.Equal(t, TierCache, second.Tier)
	assert.True(t, second.Matched)
	assert.Equal(t, first.Query, second.Query)
	assert.Equal(t, 0, r.Failures().Count(PageHome, TargetVideoContainer))
}

func TestResolveFallbackOrdering(t *testing.T) {
	ctx := context.Background()
	lib := DefaultLibrary()

	t.Run("nothing matches returns library query", func(t *testing.T) {
		doc := parseDoc(t, emptyPage)
		r := NewResolver(lib, nil, ResolverOptions{})
		for _, page := range AllPageTypes() {
			for _, target := range AllTargets() {
				want, _ := lib.Lookup(page, target)
				res := r.ResolveDetailed(ctx, doc, page, target)
				assert.Equal(t, want, res.Query, "%s/%s", page, target)
				assert.Equal(t, TierFallback, res.Tier)
				assert.False(t, res.Matched)
			}
		}
	})

	t.Run("valid matching cache entry wins over library", func(t *testing.T) {
		doc := parseDoc(t, `<ytd-rich-item-renderer class="custom"></ytd-rich-item-renderer>`)
		cache := NewCache(NewMemoryStore(), 0, nil)
		require.NoError(t, cache.Save(ctx, PageHome, TargetVideoContainer, ".custom"))
		r := NewResolver(lib, cache, ResolverOptions{})

		res := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
		assert.Equal(t, ".custom", res.Query)
		assert.Equal(t, TierCache, res.Tier)
	})

	t.Run("stale cache entry falls through to library and is replaced", func(t *testing.T) {
		doc := parseDoc(t, `<ytd-rich-item-renderer></ytd-rich-item-renderer>`)
		cache := NewCache(NewMemoryStore(), 0, nil)
		require.NoError(t, cache.Save(ctx, PageHome, TargetVideoContainer, ".gone"))
		r := NewResolver(lib, cache, ResolverOptions{})

		res := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
		want, _ := lib.Lookup(PageHome, TargetVideoContainer)
		assert.Equal(t, want, res.Query)
		assert.Equal(t, TierLibrary, res.Tier)

		entry, ok := cache.Lookup(ctx, PageHome, TargetVideoContainer)
		require.True(t, ok)
		assert.Equal(t, want, entry.Query)
	})

	t.Run("page type entry preferred over default", func(t *testing.T) {
		doc := parseDoc(t, `<ytd-playlist-video-renderer></ytd-playlist-video-renderer>`)
		r := NewResolver(lib, nil, ResolverOptions{})
		res := r.ResolveDetailed(ctx, doc, PagePlaylist, TargetVideoContainer)
		assert.Equal(t, "ytd-playlist-video-renderer, ytd-playlist-panel-video-renderer", res.Query)
		assert.True(t, res.Matched)
	})
}

func TestResolveEscalatesWhenCounterReachesThreshold(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, `<div class="new-card"></div>`)
	esc := &stubEscalator{proposal: ".new-card"}
	obs := &recordingObserver{}
	r := NewResolver(nil, nil, ResolverOptions{Escalator: esc, Observer: obs})

	first := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
	assert.Equal(t, TierFallback, first.Tier)
	assert.Equal(t, 0, esc.calls, "no escalation on the first miss")
	assert.Equal(t, 1, r.Failures().Count(PageHome, TargetVideoContainer))

	second := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
	assert.Equal(t, 1, esc.calls, "escalation on the call where the counter reaches 2")
	assert.Equal(t, ".new-card", second.Query)
	assert.Equal(t, TierEscalation, second.Tier)
	assert.Equal(t, 0, r.Failures().Count(PageHome, TargetVideoContainer))

	third := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
	assert.Equal(t, ".new-card", third.Query)
	assert.Equal(t, TierCache, third.Tier)
	assert.Equal(t, 1, esc.calls)

	assert.Equal(t, []Tier{TierFallback, TierEscalation, TierCache}, obs.tiers)
	assert.Equal(t, []string{EscalationAccepted}, obs.escalations)
}

func TestResolveDistrustsEscalation(t *testing.T) {
	ctx := context.Background()
	lib := DefaultLibrary()
	want, _ := lib.Lookup(PageWatch, TargetVideoTitle)

	tests := []struct {
		name    string
		esc     *stubEscalator
		outcome string
	}{
		{"proposal matches nothing", &stubEscalator{proposal: ".does-not-exist"}, EscalationRejected},
		{"malformed proposal", &stubEscalator{proposal: "div[[["}, EscalationRejected},
		{"empty proposal", &stubEscalator{proposal: ""}, EscalationRejected},
		{"service error", &stubEscalator{err: errors.New("boom")}, EscalationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, emptyPage)
			cache := NewCache(NewMemoryStore(), 0, nil)
			obs := &recordingObserver{}
			r := NewResolver(lib, cache, ResolverOptions{Escalator: tt.esc, Observer: obs})

			r.Resolve(ctx, doc, PageWatch, TargetVideoTitle)
			got := r.Resolve(ctx, doc, PageWatch, TargetVideoTitle)
			assert.Equal(t, want, got)
			assert.Equal(t, 1, tt.esc.calls)
			assert.Equal(t, []string{tt.outcome}, obs.escalations)

			_, ok := cache.Lookup(ctx, PageWatch, TargetVideoTitle)
			assert.False(t, ok, "untrusted proposal must not be cached")
			assert.Equal(t, 2, r.Failures().Count(PageWatch, TargetVideoTitle))

			r.Resolve(ctx, doc, PageWatch, TargetVideoTitle)
			assert.Equal(t, 2, tt.esc.calls, "escalation keeps being attempted while the counter stays above threshold")
		})
	}
}

func TestResolveWithoutEscalator(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, emptyPage)
	r := NewResolver(nil, nil, ResolverOptions{Threshold: 1})

	for i := 0; i < 3; i++ {
		res := r.ResolveDetailed(ctx, doc, PageSearch, TargetMetadata)
		assert.Equal(t, TierFallback, res.Tier)
		assert.Equal(t, i+1, res.Failures)
	}
}

func TestResolverSetLibrary(t *testing.T) {
	ctx := context.Background()
	doc := parseDoc(t, `<section class="feed-item"></section>`)
	r := NewResolver(nil, nil, ResolverOptions{})

	assert.Equal(t, TierFallback, r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer).Tier)

	r.SetLibrary(DefaultLibrary().Merge(&Library{Patterns: map[Target]map[string]string{
		TargetVideoContainer: {"home": "section.feed-item"},
	}}))
	r.SetLibrary(nil)

	res := r.ResolveDetailed(ctx, doc, PageHome, TargetVideoContainer)
	assert.Equal(t, "section.feed-item", res.Query)
	assert.Equal(t, TierLibrary, res.Tier)
	assert.Equal(t, 0, r.Failures().Count(PageHome, TargetVideoContainer))
}
