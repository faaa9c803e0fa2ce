// internal/extractor/fields.go
package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/internal/selector"
)

const (
	shortsMarkers   = "ytd-reel-item-renderer, ytm-shorts-lockup-view-model, ytd-reel-video-renderer, [is-shorts], ytd-thumbnail-overlay-time-status-renderer[overlay-style='SHORTS']"
	titleCarriers   = "#video-title, #video-title-link, .yt-lockup-metadata-view-model-wiz__title"
	legacyTitles    = "h3 a, yt-formatted-string#video-title, h3 yt-formatted-string"
	labelCarriers   = "#video-title, #video-title-link, a#thumbnail, h3 a, a[aria-label]"
	channelCarriers = "ytd-channel-name a, #channel-name a, #text.ytd-channel-name, .yt-content-metadata-view-model-wiz__metadata-text a"
	legacyChannels  = "#byline a, .ytd-channel-name a, a.yt-simple-endpoint[href^='/@'], a[href^='/@'], a[href^='/channel/']"
	channelLinks    = "a[href^='/@'], a[href^='/channel/'], a[href*='youtube.com/@'], a[href*='youtube.com/channel/']"
)

// separators between the title and the rest of an aria label, in priority order
var labelSeparators = []string{" by ", " 게시자: ", "•", " - "}

var (
	handlePattern    = regexp.MustCompile(`/(@[^/?#\s]+)`)
	channelIDPattern = regexp.MustCompile(`/channel/(UC[A-Za-z0-9_-]{22})`)
	shortsKeyword    = regexp.MustCompile(`(?i)shorts`)
)

// IsShortURL reports whether the URL points at the shorts player.
func IsShortURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.Contains(raw, "/shorts/")
	}
	return strings.HasPrefix(u.Path, "/shorts/")
}

func shortByURL(node *goquery.Selection) (bool, bool) {
	found := false
	node.AddSelection(node.Find("a[href]")).Filter("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		found = IsShortURL(s.AttrOr("href", ""))
		return !found
	})
	return found, found
}

func shortByMarker(node *goquery.Selection) (bool, bool) {
	if node.IsMatcher(selector.Compile(shortsMarkers)) || selector.Probe(node, shortsMarkers) {
		return true, true
	}
	return false, false
}

func shortByClass(node *goquery.Selection) (bool, bool) {
	if shortsKeyword.MatchString(node.AttrOr("class", "")) {
		return true, true
	}
	return false, false
}

// isShortStrategy is the OR of the URL, marker and class checks.
var isShortStrategy = FirstOf[bool](shortByURL, shortByMarker, shortByClass)

// IsShort classifies a feed item node as a short.
func IsShort(node *goquery.Selection) bool {
	return Apply(isShortStrategy, node, false)
}

// TruncateLabel cuts an accessibility label at the first known separator.
func TruncateLabel(label string) string {
	label = cleanText(label)
	for _, sep := range labelSeparators {
		if i := strings.Index(label, sep); i > 0 {
			return strings.TrimSpace(label[:i])
		}
	}
	return label
}

func labelTitle(query string) Strategy[string] {
	return func(node *goquery.Selection) (string, bool) {
		label, ok := attrOf(query, "aria-label")(node)
		if !ok {
			return "", false
		}
		title := TruncateLabel(label)
		return title, title != ""
	}
}

// titleStrategy is the ordered title chain. titleQuery is the resolved video_title query.
func titleStrategy(titleQuery string) Strategy[string] {
	carriers := titleCarriers
	if strings.TrimSpace(titleQuery) != "" {
		carriers = titleQuery + ", " + titleCarriers
	}
	return FirstOf(
		attrOf(carriers, "title"),
		textOf(carriers),
		labelTitle(labelCarriers),
		textOf(legacyTitles),
	)
}

// channelLink is the anchor that carries the channel name and, usually, its URL.
func channelLink(channelQuery string) Strategy[*goquery.Selection] {
	queries := []string{channelQuery, channelCarriers, legacyChannels}
	return func(node *goquery.Selection) (*goquery.Selection, bool) {
		for _, q := range queries {
			if strings.TrimSpace(q) == "" {
				continue
			}
			var found *goquery.Selection
			selector.Select(node, q).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if cleanText(s.Text()) != "" {
					found = s
					return false
				}
				return true
			})
			if found != nil {
				return found, true
			}
		}
		return nil, false
	}
}

// ChannelIDFromURL returns "@handle" or an opaque "UC..." id found in a channel URL.
func ChannelIDFromURL(raw string) (string, bool) {
	if m := channelIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	if m := handlePattern.FindStringSubmatch(raw); m != nil {
		handle, err := url.PathUnescape(m[1])
		if err != nil {
			handle = m[1]
		}
		return handle, true
	}
	return "", false
}

func channelIDOf(link *goquery.Selection) (string, bool) {
	if link == nil {
		return "", false
	}
	return ChannelIDFromURL(link.AttrOr("href", ""))
}

// channelIDStrategy reads the id from the name link first, then from any channel link.
func channelIDStrategy(channelQuery string) Strategy[string] {
	return FirstOf[string](
		func(node *goquery.Selection) (string, bool) {
			link, _ := channelLink(channelQuery)(node)
			return channelIDOf(link)
		},
		func(node *goquery.Selection) (string, bool) {
			var id string
			selector.Select(node, channelLinks).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				id, _ = channelIDOf(s)
				return id == ""
			})
			return id, id != ""
		},
	)
}

func channelNameStrategy(channelQuery string) Strategy[string] {
	return func(node *goquery.Selection) (string, bool) {
		link, ok := channelLink(channelQuery)(node)
		if !ok {
			return "", false
		}
		name := cleanText(link.Text())
		return name, name != ""
	}
}
