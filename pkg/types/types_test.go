// pkg/types/types_test.go
package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcePhase(t *testing.T) {
	tests := []struct {
		name    string
		phase   SourcePhase
		isValid bool
		weight  int
	}{
		{"recommended", PhaseRecommended, true, 35},
		{"shorts", PhaseShorts, true, 40},
		{"home feed", PhaseHomeFeed, true, 45},
		{"watch history", PhaseWatchHistory, true, 80},
		{"unknown", SourcePhase("sidebar"), false, 0},
		{"empty", SourcePhase(""), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.phase.IsValid())
			assert.Equal(t, tt.weight, tt.phase.Weight())
		})
	}

	for _, p := range ValidPhases() {
		w := p.Weight()
		assert.True(t, w > 0 && w <= 100, "weight for %s out of range: %d", p, w)
	}
}

func TestNewBatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := NewBatch("https://www.youtube.com/", "home", now)

	require.NotNil(t, b)
	assert.NotEmpty(t, b.ID)
	assert.True(t, b.IsEmpty())
	assert.Equal(t, now, b.CollectedAt)

	other := NewBatch("https://www.youtube.com/", "home", now)
	assert.NotEqual(t, b.ID, other.ID, "batch ids should be unique")
}

func TestBatch_LenAndRecords(t *testing.T) {
	b := NewBatch("https://www.youtube.com/", "home", time.Now())
	b.Videos = append(b.Videos, ExtractedRecord{ID: "aaaaaaaaaaa"})
	b.Shorts = append(b.Shorts, ExtractedRecord{ID: "bbbbbbbbbbb", IsShort: true})
	b.RecommendedVideos = append(b.RecommendedVideos, ExtractedRecord{ID: "ccccccccccc"})
	b.Subscriptions = append(b.Subscriptions, ChannelRecord{Name: "chan"})

	assert.Equal(t, 4, b.Len())
	assert.False(t, b.IsEmpty())

	ids := []string{}
	for _, r := range b.Records() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"}, ids)

	var nilBatch *Batch
	assert.Equal(t, 0, nilBatch.Len())
	assert.Nil(t, nilBatch.Records())
}

func TestBatch_EmptyListsEncodeAsArrays(t *testing.T) {
	b := NewBatch("https://www.youtube.com/feed/history", "history", time.Now())

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"videos", "shorts", "subscriptions", "recommendedVideos"} {
		assert.IsType(t, []interface{}{}, decoded[key], "%s should encode as an array", key)
	}
}

func TestThumbnailAndVideoURL(t *testing.T) {
	assert.Equal(t, "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", ThumbnailURL("dQw4w9WgXcQ"))
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", VideoURL("dQw4w9WgXcQ", false))
	assert.Equal(t, "https://www.youtube.com/shorts/dQw4w9WgXcQ", VideoURL("dQw4w9WgXcQ", true))
}
