// internal/config/types.go
package config

import (
	"time"

	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/internal/escalation"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Log        LogConfig         `yaml:"log" json:"log"`
	Browser    BrowserConfig     `yaml:"browser" json:"browser"`
	HTTP       HTTPConfig        `yaml:"http" json:"http"`
	Selectors  SelectorsConfig   `yaml:"selectors" json:"selectors"`
	Cache      CacheConfig       `yaml:"cache" json:"cache"`
	Escalation escalation.Config `yaml:"escalation" json:"escalation"`
	Collector  CollectorConfig   `yaml:"collector" json:"collector"`
	Output     OutputConfig      `yaml:"output" json:"output"`
	Metrics    MetricsConfig     `yaml:"metrics" json:"metrics"`
	Server     ServerConfig      `yaml:"server" json:"server"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
}

// BrowserConfig defines browser automation settings.
type BrowserConfig struct {
	// Enabled selects the headless browser as page source; otherwise pages are fetched over HTTP
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	Headless      bool          `yaml:"headless" json:"headless"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	ViewportW     int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportH     int           `yaml:"viewport_height" json:"viewport_height"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	WaitFor       string        `yaml:"wait_for" json:"wait_for"`
	UserDataDir   string        `yaml:"user_data_dir" json:"user_data_dir"`
	DisableImages bool          `yaml:"disable_images" json:"disable_images"`
}

// HTTPConfig configures the static page fetcher.
type HTTPConfig struct {
	UserAgent string             `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration      `yaml:"timeout" json:"timeout"`
	RateLimit RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Retry     errors.RetryConfig `yaml:"retry" json:"retry"`
	Headers   map[string]string  `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// RateLimitConfig defines rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// SelectorsConfig configures resolution.
type SelectorsConfig struct {
	// PatternsFile overrides entries of the built-in pattern library
	PatternsFile        string        `yaml:"patterns_file,omitempty" json:"patterns_file,omitempty"`
	WatchPatterns       bool          `yaml:"watch_patterns" json:"watch_patterns"`
	CacheTTL            time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	EscalationThreshold int           `yaml:"escalation_threshold" json:"escalation_threshold"`
}

// CacheConfig selects the selector cache backend: memory, sqlite3, postgres or mysql.
type CacheConfig struct {
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// CollectorConfig tunes collection passes.
type CollectorConfig struct {
	MaxItems    int           `yaml:"max_items" json:"max_items"`
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
	Interval    time.Duration `yaml:"interval" json:"interval"`
}

// OutputConfig lists the batch sinks and the retention policy.
type OutputConfig struct {
	Sinks     []SinkConfig    `yaml:"sinks" json:"sinks"`
	Retention RetentionConfig `yaml:"retention" json:"retention"`
}

// SinkConfig configures one sink. Which fields apply depends on Type.
type SinkConfig struct {
	Type       string        `yaml:"type" json:"type"` // http, json, excel, mongodb, nats
	Endpoint   string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Path       string        `yaml:"path,omitempty" json:"path,omitempty"`
	URI        string        `yaml:"uri,omitempty" json:"uri,omitempty"`
	Database   string        `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string        `yaml:"collection,omitempty" json:"collection,omitempty"`
	URL        string        `yaml:"url,omitempty" json:"url,omitempty"`
	Subject    string        `yaml:"subject,omitempty" json:"subject,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// RetentionConfig controls the outbox of undelivered batches. The outbox
// lives in the cache database.
type RetentionConfig struct {
	Enabled bool               `yaml:"enabled" json:"enabled"`
	MaxAge  time.Duration      `yaml:"max_age" json:"max_age"`
	Retry   errors.RetryConfig `yaml:"retry" json:"retry"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address      string        `yaml:"address" json:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	APIKey       string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
}

// Sink types.
const (
	SinkHTTP    = "http"
	SinkJSON    = "json"
	SinkExcel   = "excel"
	SinkMongoDB = "mongodb"
	SinkNATS    = "nats"
)

// ValidSinkTypes returns all valid sink type values
func ValidSinkTypes() []string {
	return []string{SinkHTTP, SinkJSON, SinkExcel, SinkMongoDB, SinkNATS}
}
