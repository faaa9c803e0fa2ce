// internal/extractor/extractor_test.go
package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	return doc
}

func firstNode(t *testing.T, body, query string) *goquery.Selection {
	t.Helper()
	node := mustDoc(t, body).Find(query).First()
	if node.Length() == 0 {
		t.Fatalf("fixture has no %q", query)
	}
	return node
}

var homeQueries = Queries{
	Link:     "a#video-title-link, a#thumbnail[href*='/watch']",
	Title:    "#video-title",
	Channel:  "ytd-channel-name a",
	Metadata: "#metadata-line span",
}

const fullItem = `
<ytd-rich-item-renderer>
  <a id="thumbnail" href="/watch?v=dQw4w9WgXcQ&amp;t=5s">
    <ytd-thumbnail-overlay-time-status-renderer><span id="text"> 3:33 </span></ytd-thumbnail-overlay-time-status-renderer>
  </a>
  <h3><a id="video-title-link" href="/watch?v=dQw4w9WgXcQ" title="Never Gonna Give You Up">
    <yt-formatted-string id="video-title">Never Gonna Give You Up</yt-formatted-string></a></h3>
  <ytd-channel-name><a href="/@RickAstleyYT">Rick Astley</a></ytd-channel-name>
  <div id="metadata-line"><span>1.2M views</span><span>3 days ago</span></div>
</ytd-rich-item-renderer>`

func TestExtractFullRecord(t *testing.T) {
	node := firstNode(t, fullItem, "ytd-rich-item-renderer")
	rec := New(nil).Extract(node, homeQueries, types.PhaseHomeFeed)
	if rec == nil {
		t.Fatal("expected a record")
	}

	if rec.ID != "dQw4w9WgXcQ" {
		t.Errorf("ID = %q", rec.ID)
	}
	if rec.Title != "Never Gonna Give You Up" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.ChannelName != "Rick Astley" {
		t.Errorf("ChannelName = %q", rec.ChannelName)
	}
	if rec.ChannelID != "@RickAstleyYT" {
		t.Errorf("ChannelID = %q", rec.ChannelID)
	}
	if rec.IsShort {
		t.Error("regular video classified as short")
	}
	if rec.ThumbnailURL != "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg" {
		t.Errorf("ThumbnailURL = %q", rec.ThumbnailURL)
	}
	if rec.URL != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("URL = %q", rec.URL)
	}
	if rec.Metadata.ViewCount == nil || *rec.Metadata.ViewCount != 1200000 {
		t.Errorf("ViewCount = %v", rec.Metadata.ViewCount)
	}
	if rec.Metadata.ViewCountText != "1.2M views" {
		t.Errorf("ViewCountText = %q", rec.Metadata.ViewCountText)
	}
	if rec.Metadata.UploadDate != "3 days ago" {
		t.Errorf("UploadDate = %q", rec.Metadata.UploadDate)
	}
	if rec.Metadata.Duration != "3:33" {
		t.Errorf("Duration = %q", rec.Metadata.Duration)
	}
	if rec.SourcePhase != types.PhaseHomeFeed || rec.SignificanceWeight != types.PhaseHomeFeed.Weight() {
		t.Errorf("phase = %s weight = %d", rec.SourcePhase, rec.SignificanceWeight)
	}
}

func TestExtractIdentifierStrategies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"link query", `<div class="item"><a id="video-title-link" href="/watch?v=AAAAAAAAAAA">x</a></div>`},
		{"class name", `<div class="item"><div class="yt-lockup-view-model-wiz content-id-AAAAAAAAAAA"></div></div>`},
		{"data attribute", `<div class="item" data-video-id="AAAAAAAAAAA"></div>`},
		{"nested data attribute", `<div class="item"><span data-context-item-id="AAAAAAAAAAA"></span></div>`},
		{"any link", `<div class="item"><a href="https://youtu.be/AAAAAAAAAAA">x</a></div>`},
		{"embed link", `<div class="item"><a href="/embed/AAAAAAAAAAA?autoplay=1">x</a></div>`},
		{"raw markup", `<div class="item"><img src="https://i.ytimg.com/vi/AAAAAAAAAAA/hqdefault.jpg"></div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := New(nil).Extract(firstNode(t, tt.body, ".item"), homeQueries, types.PhaseSearch)
			if rec == nil {
				t.Fatal("expected a record")
			}
			if rec.ID != "AAAAAAAAAAA" {
				t.Errorf("ID = %q", rec.ID)
			}
		})
	}
}

func TestExtractDiscardsNodeWithoutID(t *testing.T) {
	bodies := []string{
		`<div class="item"><a id="video-title" title="Has a title">Has a title</a></div>`,
		`<div class="item"><a href="/watch?v=short">bad id</a><span data-video-id="toolongtobeanid"></span></div>`,
		`<div class="item"><a href="/@channel">channel only</a></div>`,
		`<div class="item"></div>`,
	}
	for _, body := range bodies {
		if rec := New(nil).Extract(firstNode(t, body, ".item"), homeQueries, types.PhaseHomeFeed); rec != nil {
			t.Errorf("expected nil for %s, got %+v", body, rec)
		}
	}

	if rec := New(nil).Extract(nil, homeQueries, types.PhaseHomeFeed); rec != nil {
		t.Error("expected nil for nil node")
	}
}

func TestExtractDefaults(t *testing.T) {
	node := firstNode(t, `<div class="item" data-video-id="BBBBBBBBBBB"></div>`, ".item")
	rec := New(nil).Extract(node, Queries{}, types.PhaseHomeFeed)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.Title != types.UntitledTitle {
		t.Errorf("Title = %q, want %q", rec.Title, types.UntitledTitle)
	}
	if rec.ChannelName != types.UnknownChannel {
		t.Errorf("ChannelName = %q, want %q", rec.ChannelName, types.UnknownChannel)
	}
	if rec.ChannelID != "" {
		t.Errorf("ChannelID = %q, want empty", rec.ChannelID)
	}
	if rec.Metadata.ViewCount != nil || rec.Metadata.UploadDate != "" || rec.Metadata.Duration != "" {
		t.Errorf("unexpected metadata %+v", rec.Metadata)
	}
}

func TestExtractTitleFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"title attribute", `<div class="item" data-video-id="CCCCCCCCCCC"><a id="video-title" title="From attribute">Text</a></div>`, "From attribute"},
		{"text carrier", `<div class="item" data-video-id="CCCCCCCCCCC"><span id="video-title">  From   text </span></div>`, "From text"},
		{"aria label by", `<div class="item" data-video-id="CCCCCCCCCCC"><a aria-label="Label title by Some Channel 12 views"></a></div>`, "Label title"},
		{"aria label korean", `<div class="item" data-video-id="CCCCCCCCCCC"><a aria-label="한국어 제목 게시자: 채널 조회수 3회"></a></div>`, "한국어 제목"},
		{"legacy carrier", `<div class="item" data-video-id="CCCCCCCCCCC"><h3><a>Legacy title</a></h3></div>`, "Legacy title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := New(nil).Extract(firstNode(t, tt.body, ".item"), homeQueries, types.PhaseHomeFeed)
			if rec == nil {
				t.Fatal("expected a record")
			}
			if rec.Title != tt.want {
				t.Errorf("Title = %q, want %q", rec.Title, tt.want)
			}
		})
	}
}

func TestExtractChannelIDWithoutName(t *testing.T) {
	body := `<div class="item" data-video-id="DDDDDDDDDDD"><a href="/channel/UCuAXFkgsw1L7xaCfnd5JJOw"><img></a></div>`
	rec := New(nil).Extract(firstNode(t, body, ".item"), homeQueries, types.PhaseHomeFeed)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.ChannelName != types.UnknownChannel {
		t.Errorf("ChannelName = %q", rec.ChannelName)
	}
	if rec.ChannelID != "UCuAXFkgsw1L7xaCfnd5JJOw" {
		t.Errorf("ChannelID = %q", rec.ChannelID)
	}
}

func TestIsShort(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"shorts url", `<div class="item"><a href="/shorts/EEEEEEEEEEE">x</a></div>`, true},
		{"reel renderer", `<ytd-reel-item-renderer class="item"></ytd-reel-item-renderer>`, true},
		{"nested lockup", `<div class="item"><ytm-shorts-lockup-view-model></ytm-shorts-lockup-view-model></div>`, true},
		{"overlay style", `<div class="item"><ytd-thumbnail-overlay-time-status-renderer overlay-style="SHORTS"></ytd-thumbnail-overlay-time-status-renderer></div>`, true},
		{"is-shorts attribute", `<div class="item" is-shorts></div>`, true},
		{"class keyword", `<div class="item shortsLockupViewModelHost"></div>`, true},
		{"regular video", `<div class="item"><a href="/watch?v=EEEEEEEEEEE">x</a></div>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsShort(firstNode(t, tt.body, ".item")); got != tt.want {
				t.Errorf("IsShort = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExtractShortRecord(t *testing.T) {
	body := `<ytm-shorts-lockup-view-model class="item"><a href="/shorts/FFFFFFFFFFF"><span>Short clip</span></a><div class="inline-metadata-item">조회수 123만회</div></ytm-shorts-lockup-view-model>`
	rec := New(nil).Extract(firstNode(t, body, ".item"), homeQueries, types.PhaseShorts)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if !rec.IsShort || rec.URL != "https://www.youtube.com/shorts/FFFFFFFFFFF" {
		t.Errorf("IsShort = %v URL = %q", rec.IsShort, rec.URL)
	}
	if rec.Metadata.ViewCount == nil || *rec.Metadata.ViewCount != 1230000 {
		t.Errorf("ViewCount = %v", rec.Metadata.ViewCount)
	}
	if rec.SignificanceWeight != 40 {
		t.Errorf("SignificanceWeight = %d", rec.SignificanceWeight)
	}
}

func TestExtractCurrent(t *testing.T) {
	doc := mustDoc(t, `
<ytd-watch-flexy video-id="GGGGGGGGGGG">
  <ytd-watch-metadata>
    <h1><yt-formatted-string>Current video</yt-formatted-string></h1>
    <ytd-video-owner-renderer><ytd-channel-name><a href="/@owner">Owner</a></ytd-channel-name></ytd-video-owner-renderer>
    <ytd-watch-info-text><div id="info"><span>10,345 views</span><span>2 weeks ago</span></div></ytd-watch-info-text>
  </ytd-watch-metadata>
  <div id="related">
    <ytd-compact-video-renderer><ytd-channel-name><a href="/@other">Other</a></ytd-channel-name></ytd-compact-video-renderer>
  </div>
</ytd-watch-flexy>`)
	q := Queries{
		Title:    "ytd-watch-metadata h1 yt-formatted-string",
		Channel:  "ytd-video-owner-renderer ytd-channel-name a",
		Metadata: "ytd-watch-info-text #info span",
	}

	rec := New(nil).ExtractCurrent(doc.Selection, "https://www.youtube.com/watch?v=GGGGGGGGGGG&list=PL1", q, types.PhaseVideo)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.ID != "GGGGGGGGGGG" || rec.Title != "Current video" || rec.ChannelName != "Owner" || rec.ChannelID != "@owner" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Metadata.ViewCount == nil || *rec.Metadata.ViewCount != 10345 {
		t.Errorf("ViewCount = %v", rec.Metadata.ViewCount)
	}

	rec = New(nil).ExtractCurrent(doc.Selection, "https://www.youtube.com/watch", q, types.PhaseVideo)
	if rec == nil || rec.ID != "GGGGGGGGGGG" {
		t.Errorf("expected id from the player element, got %+v", rec)
	}

	empty := mustDoc(t, `<p>no player</p>`)
	if rec := New(nil).ExtractCurrent(empty.Selection, "https://www.youtube.com/feed/library", q, types.PhaseVideo); rec != nil {
		t.Errorf("expected nil, got %+v", rec)
	}
}

func TestExtractChannel(t *testing.T) {
	doc := mustDoc(t, `
<ytd-guide-entry-renderer><a href="/@handle" title="Handle Channel"><span>ignored</span></a></ytd-guide-entry-renderer>
<ytd-channel-renderer><a href="/channel/UCuAXFkgsw1L7xaCfnd5JJOw"><div id="text">Opaque Channel</div></a></ytd-channel-renderer>
<ytd-guide-entry-renderer><a href="/feed/history">History</a></ytd-guide-entry-renderer>`)
	ex := New(nil)

	rec := ex.ExtractChannel(doc.Find("ytd-guide-entry-renderer a").First())
	if rec == nil || rec.Handle != "@handle" || rec.Name != "Handle Channel" || rec.URL != "https://www.youtube.com/@handle" {
		t.Errorf("unexpected handle channel %+v", rec)
	}
	if rec != nil && rec.SourcePhase != types.PhaseSubscriptions {
		t.Errorf("SourcePhase = %s", rec.SourcePhase)
	}

	rec = ex.ExtractChannel(doc.Find("ytd-channel-renderer"))
	if rec == nil || rec.ChannelID != "UCuAXFkgsw1L7xaCfnd5JJOw" || rec.Name != "Opaque Channel" {
		t.Errorf("unexpected opaque channel %+v", rec)
	}

	if rec := ex.ExtractChannel(doc.Find("ytd-guide-entry-renderer a").Last()); rec != nil {
		t.Errorf("expected nil for non-channel link, got %+v", rec)
	}
}

func TestVideoIDFromURL(t *testing.T) {
	tests := []struct {
		url string
		id  string
		ok  bool
	}{
		{"/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?app=desktop&v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ?t=1", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"/watch?v=tooshort", "", false},
		{"/@channel", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := VideoIDFromURL(tt.url)
		if id != tt.id || ok != tt.ok {
			t.Errorf("VideoIDFromURL(%q) = %q, %v; want %q, %v", tt.url, id, ok, tt.id, tt.ok)
		}
	}
}

func TestFirstOf(t *testing.T) {
	calls := 0
	miss := func(*goquery.Selection) (int, bool) { calls++; return 0, false }
	hit := func(*goquery.Selection) (int, bool) { calls++; return 7, true }
	never := func(*goquery.Selection) (int, bool) {
		t.Fatal("strategy after a success must not run")
		return 0, false
	}

	v, ok := FirstOf[int](miss, nil, hit, never)(nil)
	if !ok || v != 7 || calls != 2 {
		t.Errorf("FirstOf = %d, %v after %d calls", v, ok, calls)
	}

	if v, ok := FirstOf[int](miss)(nil); ok || v != 0 {
		t.Errorf("FirstOf with no success = %d, %v", v, ok)
	}
}
