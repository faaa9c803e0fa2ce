// internal/escalation/snippet.go
package escalation

import (
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/internal/selector"
)

// Snippet size caps in bytes.
const (
	DefaultContainerSnippetCap = 20000
	DefaultFieldSnippetCap     = 5000
)

const (
	watchMetadataRegion = "ytd-watch-metadata, #above-the-fold, #info-contents, #primary-inner"
	sidebarRegion       = "#secondary, #related, ytd-watch-next-secondary-results-renderer"
	guideRegion         = "ytd-guide-renderer, #guide-content, tp-yt-app-drawer"
	contentRegion       = "ytd-rich-grid-renderer, ytd-section-list-renderer, ytd-playlist-video-list-renderer, ytd-shorts, #contents, #primary, #content"
)

// Region picks the part of the page worth sending for a target: the watch
// metadata block for watch-page fields, the grid or content column for
// containers, and the whole body otherwise.
func Region(doc *goquery.Document, target selector.Target, pageType selector.PageType) *goquery.Selection {
	if doc == nil {
		return nil
	}
	var query string
	switch {
	case pageType == selector.PageWatch && isFieldTarget(target):
		query = watchMetadataRegion
	case target == selector.TargetSidebarRecommendations:
		query = sidebarRegion
	case target == selector.TargetSubscriptionChannels && pageType != selector.PageSubscriptions:
		query = guideRegion
	case isContainerTarget(target) || target == selector.TargetVideoLink:
		query = contentRegion
	}
	if query != "" {
		if region := selector.Select(doc.Selection, query).First(); region.Length() > 0 {
			return region
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func isFieldTarget(t selector.Target) bool {
	switch t {
	case selector.TargetVideoTitle, selector.TargetChannelName, selector.TargetMetadata:
		return true
	}
	return false
}

func isContainerTarget(t selector.Target) bool {
	switch t {
	case selector.TargetVideoContainer, selector.TargetShortsContainer,
		selector.TargetSidebarRecommendations, selector.TargetSubscriptionChannels:
		return true
	}
	return false
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
