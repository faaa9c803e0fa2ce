// internal/collector/pagetype.go

// Package collector runs collection passes over a page: it classifies the page
// from its URL, resolves queries for each rule of that page type, extracts
// records and hands the finished batch to a sink.
package collector

import (
	"net/url"
	"strings"

	"github.com/valpere/FeedScrapexter/internal/selector"
)

// DetectPageType classifies a page from its URL path and query alone.
func DetectPageType(rawURL string) selector.PageType {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return selector.PageOther
	}
	path := strings.TrimSuffix(u.Path, "/")
	query := u.Query()

	switch {
	case path == "" || path == "/index" || path == "/feed/home":
		return selector.PageHome
	case path == "/watch" && query.Get("v") != "":
		return selector.PageWatch
	case path == "/playlist" && query.Get("list") != "":
		return selector.PagePlaylist
	case strings.HasPrefix(path, "/shorts"):
		return selector.PageShorts
	case path == "/feed/subscriptions" || path == "/feed/channels":
		return selector.PageSubscriptions
	case path == "/feed/history":
		return selector.PageHistory
	case path == "/results" && (query.Get("search_query") != "" || query.Get("q") != ""):
		return selector.PageSearch
	case strings.HasPrefix(path, "/@"),
		strings.HasPrefix(path, "/channel/"),
		strings.HasPrefix(path, "/c/"),
		strings.HasPrefix(path, "/user/"):
		return selector.PageChannel
	default:
		return selector.PageOther
	}
}
