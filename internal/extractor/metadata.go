// internal/extractor/metadata.go
package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

const (
	metadataCarriers = "#metadata-line span, .inline-metadata-item, #metadata span, ytd-video-meta-block span, .yt-content-metadata-view-model-wiz__metadata-text, .yt-content-metadata-view-model__metadata-text"
	durationCarriers = "ytd-thumbnail-overlay-time-status-renderer #text, ytd-thumbnail-overlay-time-status-renderer span, .badge-shape-wiz__text, .yt-badge-shape__text, .ytp-time-duration"
)

var (
	viewsKeyword    = regexp.MustCompile(`(?i)\bviews?\b|\bwatching\b|조회수|회$`)
	durationPattern = regexp.MustCompile(`\d+:\d{2}`)
)

// scanMetadata reads view count and upload recency from the first container
// that carries each, and the duration from the time overlay.
func scanMetadata(node *goquery.Selection, metadataQuery string) types.Metadata {
	var md types.Metadata

	for _, text := range containerTexts(node, metadataQuery, metadataCarriers) {
		if md.ViewCountText == "" && viewsKeyword.MatchString(text) {
			if n := ParseViewCount(text); n != nil {
				md.ViewCount = n
				md.ViewCountText = text
			}
		}
		if md.UploadDate == "" && IsRelativeDate(text) {
			md.UploadDate = text
		}
		if md.ViewCountText != "" && md.UploadDate != "" {
			break
		}
	}

	md.Duration = Apply(durationStrategy, node, "")
	return md
}

// containerTexts lists non-blank container texts, resolved query first.
func containerTexts(node *goquery.Selection, queries ...string) []string {
	var out []string
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		selector.Select(node, q).Each(func(_ int, s *goquery.Selection) {
			if t := cleanText(s.Text()); t != "" {
				out = append(out, t)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return out
}

var durationStrategy Strategy[string] = func(node *goquery.Selection) (string, bool) {
	var out string
	selector.Select(node, durationCarriers).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := cleanText(s.Text()); durationPattern.MatchString(t) {
			out = t
			return false
		}
		return true
	})
	return out, out != ""
}
