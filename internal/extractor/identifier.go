// internal/extractor/identifier.go
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/internal/selector"
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	// class tokens such as "content-id-dQw4w9WgXcQ" on lockup view models
	classIDPattern = regexp.MustCompile(`(?:^|\s)(?:content-id|video-id)-([A-Za-z0-9_-]{11})(?:\s|$)`)

	// id grammar as it appears anywhere in serialized markup
	rawIDPattern = regexp.MustCompile(`(?:[?&;]v=|/shorts/|/embed/|/vi(?:_webp)?/|youtu\.be/|"videoId":")([A-Za-z0-9_-]{11})(?:[^A-Za-z0-9_-]|$)`)
)

// data attributes known to carry the video id
var idAttributes = []string{"data-video-id", "data-context-item-id", "data-vid"}

// IsVideoID reports whether s has the 11-character id grammar.
func IsVideoID(s string) bool {
	return videoIDPattern.MatchString(s)
}

// VideoIDFromURL extracts the id from watch, shorts, embed and short-link URLs.
// Relative URLs are accepted.
func VideoIDFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if v := u.Query().Get("v"); IsVideoID(v) {
		return v, true
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if strings.EqualFold(u.Hostname(), "youtu.be") && len(segments) > 0 && IsVideoID(segments[0]) {
		return segments[0], true
	}
	for i := 0; i+1 < len(segments); i++ {
		switch segments[i] {
		case "shorts", "embed", "live", "v":
			if IsVideoID(segments[i+1]) {
				return segments[i+1], true
			}
		}
	}
	return "", false
}

func idFromLinks(query string) Strategy[string] {
	return func(node *goquery.Selection) (string, bool) {
		if strings.TrimSpace(query) == "" {
			return "", false
		}
		return firstLinkID(selector.Select(node, query))
	}
}

func idFromClassName(node *goquery.Selection) (string, bool) {
	var id string
	node.AddSelection(node.Find("[class]")).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := classIDPattern.FindStringSubmatch(s.AttrOr("class", "")); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id, id != ""
}

func idFromDataAttributes(node *goquery.Selection) (string, bool) {
	var id string
	for _, attr := range idAttributes {
		node.AddSelection(node.Find("[" + attr + "]")).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v := strings.TrimSpace(s.AttrOr(attr, "")); IsVideoID(v) {
				id = v
				return false
			}
			return true
		})
		if id != "" {
			return id, true
		}
	}
	return "", false
}

func idFromAnyLink(node *goquery.Selection) (string, bool) {
	return firstLinkID(node.AddSelection(node.Find("a[href]")).Filter("a[href]"))
}

func idFromMarkup(node *goquery.Selection) (string, bool) {
	markup, err := goquery.OuterHtml(node)
	if err != nil {
		return "", false
	}
	if m := rawIDPattern.FindStringSubmatch(markup); m != nil {
		return m[1], true
	}
	return "", false
}

func firstLinkID(links *goquery.Selection) (string, bool) {
	var id string
	links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := VideoIDFromURL(s.AttrOr("href", "")); ok {
			id = v
			return false
		}
		return true
	})
	return id, id != ""
}

// identifierStrategy is the ordered id chain for a feed item node.
func identifierStrategy(linkQuery string) Strategy[string] {
	return FirstOf(
		idFromLinks(linkQuery),
		idFromClassName,
		idFromDataAttributes,
		idFromAnyLink,
		idFromMarkup,
	)
}
