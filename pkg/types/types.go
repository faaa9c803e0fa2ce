// pkg/types/types.go
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field defaults used when a field cannot be resolved from the page.
const (
	UntitledTitle  = "Untitled"
	UnknownChannel = "Unknown"
)

// SourcePhase tags how a record was discovered on the page.
type SourcePhase string

const (
	PhaseShorts        SourcePhase = "shorts"
	PhaseVideo         SourcePhase = "video"
	PhasePlaylist      SourcePhase = "playlist"
	PhaseHomeFeed      SourcePhase = "home_feed"
	PhaseWatchHistory  SourcePhase = "watch_history"
	PhaseSubscriptions SourcePhase = "subscriptions"
	PhaseSearch        SourcePhase = "search"
	PhaseRecommended   SourcePhase = "recommended"
)

// ValidPhases returns all valid source phase values
func ValidPhases() []SourcePhase {
	return []SourcePhase{
		PhaseShorts, PhaseVideo, PhasePlaylist, PhaseHomeFeed,
		PhaseWatchHistory, PhaseSubscriptions, PhaseSearch, PhaseRecommended,
	}
}

// IsValid checks if the phase is a valid value
func (p SourcePhase) IsValid() bool {
	for _, valid := range ValidPhases() {
		if p == valid {
			return true
		}
	}
	return false
}

// phaseWeights holds the significance weight assigned at collection time.
var phaseWeights = map[SourcePhase]int{
	PhaseWatchHistory:  80,
	PhaseVideo:         70,
	PhaseSubscriptions: 60,
	PhaseSearch:        55,
	PhasePlaylist:      50,
	PhaseHomeFeed:      45,
	PhaseShorts:        40,
	PhaseRecommended:   35,
}

// Weight returns the significance weight (0-100) for records discovered in this phase.
func (p SourcePhase) Weight() int {
	if w, ok := phaseWeights[p]; ok {
		return w
	}
	return 0
}

// Metadata holds free-text fields normalized from the page.
type Metadata struct {
	ViewCount     *int64 `json:"viewCount,omitempty" bson:"view_count,omitempty"`
	ViewCountText string `json:"viewCountText,omitempty" bson:"view_count_text,omitempty"`
	UploadDate    string `json:"uploadDate,omitempty" bson:"upload_date,omitempty"`
	Duration      string `json:"duration,omitempty" bson:"duration,omitempty"`
}

// ExtractedRecord is one video found on a page. It is built once per node and not
// modified afterwards. IDs are not unique across passes.
type ExtractedRecord struct {
	ID                 string      `json:"id" bson:"video_id"`
	Title              string      `json:"title" bson:"title"`
	ChannelName        string      `json:"channelName" bson:"channel_name"`
	ChannelID          string      `json:"channelId,omitempty" bson:"channel_id,omitempty"`
	URL                string      `json:"url" bson:"url"`
	ThumbnailURL       string      `json:"thumbnailUrl" bson:"thumbnail_url"`
	IsShort            bool        `json:"isShort" bson:"is_short"`
	Metadata           Metadata    `json:"metadata" bson:"metadata"`
	SourcePhase        SourcePhase `json:"sourcePhase" bson:"source_phase"`
	SignificanceWeight int         `json:"significanceWeight" bson:"significance_weight"`
	CollectedAt        time.Time   `json:"collectedAt" bson:"collected_at"`
}

// ThumbnailURL derives the thumbnail location from a video id.
func ThumbnailURL(id string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", id)
}

// VideoURL returns the canonical URL for a video id.
func VideoURL(id string, short bool) string {
	if short {
		return "https://www.youtube.com/shorts/" + id
	}
	return "https://www.youtube.com/watch?v=" + id
}

// ChannelRecord is a channel listed on the subscriptions page.
type ChannelRecord struct {
	ChannelID   string      `json:"channelId,omitempty" bson:"channel_id,omitempty"`
	Handle      string      `json:"handle,omitempty" bson:"handle,omitempty"`
	Name        string      `json:"name" bson:"name"`
	URL         string      `json:"url,omitempty" bson:"url,omitempty"`
	SourcePhase SourcePhase `json:"sourcePhase" bson:"source_phase"`
}

// Batch is the unit handed to the transport layer after one collection pass.
type Batch struct {
	ID                string            `json:"id" bson:"batch_id"`
	PageURL           string            `json:"pageUrl" bson:"page_url"`
	PageType          string            `json:"pageType" bson:"page_type"`
	CollectedAt       time.Time         `json:"collectedAt" bson:"collected_at"`
	Videos            []ExtractedRecord `json:"videos" bson:"videos"`
	Shorts            []ExtractedRecord `json:"shorts" bson:"shorts"`
	Subscriptions     []ChannelRecord   `json:"subscriptions" bson:"subscriptions"`
	RecommendedVideos []ExtractedRecord `json:"recommendedVideos" bson:"recommended_videos"`
}

// NewBatch creates an empty batch with a fresh id.
func NewBatch(pageURL, pageType string, now time.Time) *Batch {
	return &Batch{
		ID:                uuid.NewString(),
		PageURL:           pageURL,
		PageType:          pageType,
		CollectedAt:       now,
		Videos:            []ExtractedRecord{},
		Shorts:            []ExtractedRecord{},
		Subscriptions:     []ChannelRecord{},
		RecommendedVideos: []ExtractedRecord{},
	}
}

// Len returns the total number of records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Videos) + len(b.Shorts) + len(b.Subscriptions) + len(b.RecommendedVideos)
}

// IsEmpty reports whether the batch carries no records.
func (b *Batch) IsEmpty() bool {
	return b.Len() == 0
}

// Records returns every video record in the batch in list order
// (videos, shorts, recommended).
func (b *Batch) Records() []ExtractedRecord {
	if b == nil {
		return nil
	}
	out := make([]ExtractedRecord, 0, len(b.Videos)+len(b.Shorts)+len(b.RecommendedVideos))
	out = append(out, b.Videos...)
	out = append(out, b.Shorts...)
	out = append(out, b.RecommendedVideos...)
	return out
}
