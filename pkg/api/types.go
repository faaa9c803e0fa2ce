// pkg/api/types.go
package api

import (
	"github.com/valpere/FeedScrapexter/internal/config"
	"github.com/valpere/FeedScrapexter/internal/selector"
	"github.com/valpere/FeedScrapexter/pkg/types"
)

// Re-export types from internal packages for public API
type (
	Config          = config.Config
	Batch           = types.Batch
	ExtractedRecord = types.ExtractedRecord
	ChannelRecord   = types.ChannelRecord
	PatternEntry    = selector.Entry
)

// Status summarizes a pipeline for the CLI and the HTTP API.
type Status struct {
	PatternsVersion string         `json:"patterns_version"`
	Escalation      string         `json:"escalation"`
	CacheDriver     string         `json:"cache_driver"`
	Retaining       bool           `json:"retaining"`
	Pending         int            `json:"pending"`
	Failures        map[string]int `json:"failures,omitempty"`
}
