// internal/extractor/extractor.go
package extractor

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/internal/utils"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

const siteOrigin = "https://www.youtube.com"

// regions holding the current video on watch and shorts pages
const currentVideoScope = "ytd-watch-metadata, #above-the-fold, ytd-reel-video-renderer[is-active]"

// Queries are the resolved per-target queries for one page.
type Queries struct {
	Link     string
	Title    string
	Channel  string
	Metadata string
}

// QueriesFrom builds Queries from a target -> query map.
func QueriesFrom(resolved map[selector.Target]string) Queries {
	return Queries{
		Link:     resolved[selector.TargetVideoLink],
		Title:    resolved[selector.TargetVideoTitle],
		Channel:  resolved[selector.TargetChannelName],
		Metadata: resolved[selector.TargetMetadata],
	}
}

// Extractor builds records from feed item nodes.
type Extractor struct {
	logger utils.Logger
	now    func() time.Time
}

// New creates an extractor. A nil logger discards diagnostics.
func New(logger utils.Logger) *Extractor {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Extractor{logger: logger.WithField("component", "extractor"), now: time.Now}
}

// Extract builds a record from one feed item node. It returns nil when no
// identifier can be derived; every other field falls back to a default.
func (e *Extractor) Extract(node *goquery.Selection, q Queries, phase types.SourcePhase) *types.ExtractedRecord {
	if node == nil || node.Length() == 0 {
		return nil
	}
	id, ok := identifierStrategy(q.Link)(node)
	if !ok {
		e.logger.WithField("phase", string(phase)).Debug("no video id in node, skipped")
		return nil
	}
	return e.build(node, q, phase, id, IsShort(node))
}

// ExtractCurrent builds the record for the video playing on a watch or shorts page.
func (e *Extractor) ExtractCurrent(root *goquery.Selection, pageURL string, q Queries, phase types.SourcePhase) *types.ExtractedRecord {
	if root == nil {
		return nil
	}
	id, ok := FirstOf[string](
		func(*goquery.Selection) (string, bool) { return VideoIDFromURL(pageURL) },
		attrOf("ytd-watch-flexy[video-id]", "video-id"),
		attrOf("meta[itemprop='videoId']", "content"),
		attrOf("ytd-reel-video-renderer[is-active] [data-video-id]", "data-video-id"),
	)(root)
	if !ok || !IsVideoID(id) {
		e.logger.WithField("url", pageURL).Debug("no current video id")
		return nil
	}

	scope := root.Find(currentVideoScope).First()
	if scope.Length() == 0 {
		scope = root
	}
	rec := e.build(scope, q, phase, id, IsShortURL(pageURL))
	if rec.Title == types.UntitledTitle {
		rec.Title = Apply(FirstOf(
			attrOf("meta[property='og:title']", "content"),
			attrOf("meta[name='title']", "content"),
		), root, types.UntitledTitle)
	}
	if rec.Metadata.Duration == "" {
		rec.Metadata.Duration = Apply(durationStrategy, root, "")
	}
	return rec
}

func (e *Extractor) build(node *goquery.Selection, q Queries, phase types.SourcePhase, id string, short bool) *types.ExtractedRecord {
	title := Apply(titleStrategy(q.Title), node, types.UntitledTitle)
	channel := Apply(channelNameStrategy(q.Channel), node, types.UnknownChannel)
	channelID := Apply(channelIDStrategy(q.Channel), node, "")
	md := scanMetadata(node, q.Metadata)

	return &types.ExtractedRecord{
		ID:                 id,
		Title:              title,
		ChannelName:        channel,
		ChannelID:          channelID,
		URL:                types.VideoURL(id, short),
		ThumbnailURL:       types.ThumbnailURL(id),
		IsShort:            short,
		Metadata:           md,
		SourcePhase:        phase,
		SignificanceWeight: phase.Weight(),
		CollectedAt:        e.now(),
	}
}

// ExtractChannel builds a channel record from a subscription list entry. The
// node may be the channel link itself or an element containing it.
func (e *Extractor) ExtractChannel(node *goquery.Selection) *types.ChannelRecord {
	if node == nil || node.Length() == 0 {
		return nil
	}
	link := node
	if !node.Is("a[href]") {
		link = selector.Select(node, channelLinks).First()
	}
	href := link.AttrOr("href", "")
	ident, ok := ChannelIDFromURL(href)
	if !ok {
		e.logger.WithField("href", href).Debug("no channel identity in node, skipped")
		return nil
	}

	rec := &types.ChannelRecord{
		URL:         absoluteURL(href),
		SourcePhase: types.PhaseSubscriptions,
	}
	if strings.HasPrefix(ident, "@") {
		rec.Handle = ident
	} else {
		rec.ChannelID = ident
	}
	rec.Name = Apply(FirstOf(
		attrOf("", "title"),
		textOf("#text, #channel-title, #channel-name, yt-formatted-string, .title"),
		func(s *goquery.Selection) (string, bool) {
			t := cleanText(s.Text())
			return t, t != ""
		},
	), node, ident)
	return rec
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		return siteOrigin + href
	}
	return href
}
