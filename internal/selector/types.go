// internal/selector/types.go

// Package selector resolves structural queries for page regions. Queries are tried
// from the cache, then from the pattern library, and after repeated misses from an
// external escalation service. Every candidate is probed against the live document
// before it is trusted.
package selector

import (
	"fmt"
	"strings"
)

// PageType is a coarse classification of a page derived from its URL.
type PageType string

const (
	PageHome          PageType = "home"
	PageWatch         PageType = "watch"
	PagePlaylist      PageType = "playlist"
	PageShorts        PageType = "shorts"
	PageSubscriptions PageType = "subscriptions"
	PageHistory       PageType = "history"
	PageSearch        PageType = "search"
	PageChannel       PageType = "channel"
	PageOther         PageType = "other"
)

// AllPageTypes returns every page type in a stable order.
func AllPageTypes() []PageType {
	return []PageType{
		PageHome, PageWatch, PagePlaylist, PageShorts, PageSubscriptions,
		PageHistory, PageSearch, PageChannel, PageOther,
	}
}

// IsValid checks if the page type is a known value
func (p PageType) IsValid() bool {
	for _, v := range AllPageTypes() {
		if p == v {
			return true
		}
	}
	return false
}

// ParsePageType converts a string into a PageType.
func ParsePageType(s string) (PageType, error) {
	p := PageType(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown page type %q", s)
	}
	return p, nil
}

// Target is a logical field or region to be located in the page.
type Target string

const (
	TargetVideoTitle             Target = "video_title"
	TargetChannelName            Target = "channel_name"
	TargetVideoLink              Target = "video_link"
	TargetVideoContainer         Target = "video_container"
	TargetShortsContainer        Target = "shorts_container"
	TargetSidebarRecommendations Target = "sidebar_recommendations"
	TargetSubscriptionChannels   Target = "subscription_channels"
	TargetMetadata               Target = "metadata"
)

// AllTargets returns every target in a stable order.
func AllTargets() []Target {
	return []Target{
		TargetVideoTitle, TargetChannelName, TargetVideoLink, TargetVideoContainer,
		TargetShortsContainer, TargetSidebarRecommendations, TargetSubscriptionChannels,
		TargetMetadata,
	}
}

// IsValid checks if the target is a known value
func (t Target) IsValid() bool {
	for _, v := range AllTargets() {
		if t == v {
			return true
		}
	}
	return false
}

// ParseTarget converts a string into a Target.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown target %q", s)
	}
	return t, nil
}

// CacheKey builds the persistence key for a (page type, target) pair.
func CacheKey(pageType PageType, target Target) string {
	return string(pageType) + "_" + string(target)
}
