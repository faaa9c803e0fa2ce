// internal/config/config.go

// Package config loads the YAML configuration of the collector, the HTTP API and
// the CLI. Values may reference environment variables as ${NAME}.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valpere/FeedScrapexter/internal/errors"
	"github.com/valpere/FeedScrapexter/internal/escalation"
	"github.com/valpere/FeedScrapexter/internal/selector"
)

// Defaults applied by applyDefaults.
const (
	DefaultMaxItems      = 50
	DefaultSettleDelay   = 2 * time.Second
	DefaultInterval      = 5 * time.Minute
	DefaultCacheDriver   = "memory"
	DefaultMetricsPath   = "/metrics"
	DefaultServerAddress = ":8080"
	DefaultUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
)

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	data, err := readFile(filename)
	if err != nil {
		return nil, err
	}
	return LoadFromBytes(data)
}

// ParseFile reads a YAML file and applies defaults without validating, so
// that every problem can be reported with ValidateDetailed.
func ParseFile(filename string) (*Config, error) {
	data, err := readFile(filename)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

func readFile(filename string) ([]byte, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return data, nil
}

// LoadFromBytes loads configuration from YAML bytes
func LoadFromBytes(data []byte) (*Config, error) {
	config, err := parse(data)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func parse(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := expandEnvironmentVariables(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// SaveToWriter writes configuration as YAML
func SaveToWriter(config *Config, writer io.Writer) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

// GenerateTemplate returns an annotated starting configuration. Kind "minimal"
// keeps the in-memory cache and a single JSON lines sink; "full" enables the
// SQLite cache, escalation, retention and metrics.
func GenerateTemplate(kind string) Config {
	config := Config{
		Log: LogConfig{Level: "info", Format: "console"},
		Output: OutputConfig{
			Sinks: []SinkConfig{{Type: SinkJSON, Path: "output/batches.jsonl"}},
		},
	}

	if kind == "full" {
		config.Browser = BrowserConfig{Enabled: true, Headless: true, WaitFor: "ytd-app"}
		config.Selectors.PatternsFile = "configs/patterns.yaml"
		config.Selectors.WatchPatterns = true
		config.Cache = CacheConfig{Driver: "sqlite3", DSN: "data/feedscrapexter.db"}
		config.Escalation = escalation.Config{
			Endpoint: "http://localhost:8000/api/ai/selector",
			APIKey:   "${FEEDSCRAPEXTER_AI_KEY}",
			Diet:     true,
		}
		config.Output.Sinks = append(config.Output.Sinks, SinkConfig{
			Type:     SinkHTTP,
			Endpoint: "http://localhost:8000/api/extension/batch",
			APIKey:   "${FEEDSCRAPEXTER_API_KEY}",
		})
		config.Output.Retention = RetentionConfig{Enabled: true, MaxAge: 72 * time.Hour}
		config.Metrics.Enabled = true
	}

	applyDefaults(&config)
	return config
}

// expandEnvironmentVariables substitutes environment variables in the configuration
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults fills zero values
func applyDefaults(config *Config) {
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}

	if config.Browser.UserAgent == "" {
		config.Browser.UserAgent = DefaultUserAgent
	}
	if config.Browser.ViewportW == 0 {
		config.Browser.ViewportW = 1366
	}
	if config.Browser.ViewportH == 0 {
		config.Browser.ViewportH = 900
	}
	if config.Browser.Timeout == 0 {
		config.Browser.Timeout = 30 * time.Second
	}

	if config.HTTP.UserAgent == "" {
		config.HTTP.UserAgent = DefaultUserAgent
	}
	if config.HTTP.Timeout == 0 {
		config.HTTP.Timeout = 30 * time.Second
	}
	if config.HTTP.RateLimit.RequestsPerSecond == 0 {
		config.HTTP.RateLimit.RequestsPerSecond = 1
	}
	if config.HTTP.RateLimit.Burst == 0 {
		config.HTTP.RateLimit.Burst = 1
	}
	if config.HTTP.Retry.MaxRetries == 0 && config.HTTP.Retry.BaseDelay == 0 {
		config.HTTP.Retry = errors.DefaultRetryConfig()
	}

	if config.Selectors.CacheTTL == 0 {
		config.Selectors.CacheTTL = selector.DefaultCacheTTL
	}
	if config.Selectors.EscalationThreshold == 0 {
		config.Selectors.EscalationThreshold = selector.DefaultEscalationThreshold
	}

	if config.Cache.Driver == "" {
		config.Cache.Driver = DefaultCacheDriver
	}

	if config.Escalation.Timeout == 0 {
		config.Escalation.Timeout = escalation.DefaultTimeout
	}
	if config.Escalation.RatePerSecond == 0 {
		config.Escalation.RatePerSecond = 1
	}
	if config.Escalation.Burst == 0 {
		config.Escalation.Burst = 2
	}
	if config.Escalation.ContainerSnippetCap == 0 {
		config.Escalation.ContainerSnippetCap = escalation.DefaultContainerSnippetCap
	}
	if config.Escalation.FieldSnippetCap == 0 {
		config.Escalation.FieldSnippetCap = escalation.DefaultFieldSnippetCap
	}

	if config.Collector.MaxItems == 0 {
		config.Collector.MaxItems = DefaultMaxItems
	}
	if config.Collector.SettleDelay == 0 {
		config.Collector.SettleDelay = DefaultSettleDelay
	}
	if config.Collector.Interval == 0 {
		config.Collector.Interval = DefaultInterval
	}

	for i := range config.Output.Sinks {
		if config.Output.Sinks[i].Timeout == 0 {
			config.Output.Sinks[i].Timeout = 15 * time.Second
		}
	}
	if config.Output.Retention.MaxAge == 0 {
		config.Output.Retention.MaxAge = 7 * 24 * time.Hour
	}
	if config.Output.Retention.Retry.MaxRetries == 0 && config.Output.Retention.Retry.BaseDelay == 0 {
		config.Output.Retention.Retry = errors.DefaultRetryConfig()
	}

	if config.Metrics.Path == "" {
		config.Metrics.Path = DefaultMetricsPath
	}

	if config.Server.Address == "" {
		config.Server.Address = DefaultServerAddress
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 2 * time.Minute
	}
}
