// internal/extractor/strategy.go

// Package extractor turns feed item nodes into video records. Each field has
// its own ordered list of strategies, so a layout change that breaks one field
// does not take the others down with it.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/internal/selector"
)

// Strategy derives one field from a node. ok is false when the strategy found nothing.
type Strategy[T any] func(node *goquery.Selection) (value T, ok bool)

// FirstOf combines strategies into one that returns the first success.
func FirstOf[T any](strategies ...Strategy[T]) Strategy[T] {
	return func(node *goquery.Selection) (T, bool) {
		for _, s := range strategies {
			if s == nil {
				continue
			}
			if v, ok := s(node); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

// Apply runs the strategy and returns def when it fails.
func Apply[T any](s Strategy[T], node *goquery.Selection, def T) T {
	if v, ok := s(node); ok {
		return v
	}
	return def
}

// attrOf reads attr from the first element matching query under node.
// An empty query reads the node itself.
func attrOf(query, attr string) Strategy[string] {
	return func(node *goquery.Selection) (string, bool) {
		target := node
		if query != "" {
			target = selector.Select(node, query)
		}
		var out string
		target.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				out = cleanText(v)
				return false
			}
			return true
		})
		return out, out != ""
	}
}

// textOf reads the text of the first element matching query with non-blank text.
func textOf(query string) Strategy[string] {
	return func(node *goquery.Selection) (string, bool) {
		if strings.TrimSpace(query) == "" {
			return "", false
		}
		var out string
		selector.Select(node, query).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if t := cleanText(s.Text()); t != "" {
				out = t
				return false
			}
			return true
		})
		return out, out != ""
	}
}

// cleanText trims and collapses runs of whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
