// internal/config/validation.go
package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/valpere/FeedScrapexter/internal/storage"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("%s: %s (got %q)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

// Validate checks the configuration and returns every problem found as one error.
func (c *Config) Validate() error {
	result := c.ValidateDetailed()
	if result.Valid {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("%d validation error(s): %s", len(result.Errors), strings.Join(msgs, "; "))
}

// ValidateDetailed returns errors and warnings without collapsing them.
func (c *Config) ValidateDetailed() *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validateLog(result)
	c.validateSelectors(result)
	c.validateCache(result)
	c.validateEscalation(result)
	c.validateCollector(result)
	c.validateOutput(result)
	c.validateServer(result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateLog(result *ValidationResult) {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		result.addError("log.level", c.Log.Level, "must be debug, info, warn or error")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		result.addError("log.format", c.Log.Format, "must be json or console")
	}
}

func (c *Config) validateSelectors(result *ValidationResult) {
	if c.Selectors.CacheTTL < 0 {
		result.addError("selectors.cache_ttl", c.Selectors.CacheTTL.String(), "cannot be negative")
	}
	if c.Selectors.EscalationThreshold < 0 {
		result.addError("selectors.escalation_threshold", fmt.Sprint(c.Selectors.EscalationThreshold), "cannot be negative")
	}
	if c.Selectors.WatchPatterns && c.Selectors.PatternsFile == "" {
		result.Warnings = append(result.Warnings, "selectors.watch_patterns has no effect without selectors.patterns_file")
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	if c.Cache.Driver == "" || c.Cache.Driver == "memory" {
		return
	}
	if _, err := storage.NormalizeDriver(c.Cache.Driver); err != nil {
		result.addError("cache.driver", c.Cache.Driver, "must be memory, sqlite3, postgres or mysql")
		return
	}
	if strings.TrimSpace(c.Cache.DSN) == "" {
		result.addError("cache.dsn", "", "is required for SQL cache drivers")
	}
}

func (c *Config) validateEscalation(result *ValidationResult) {
	e := c.Escalation
	if e.Endpoint == "" {
		return
	}
	if err := validateHTTPURL(e.Endpoint); err != nil {
		result.addError("escalation.endpoint", e.Endpoint, err.Error())
	}
	if e.Timeout < 0 {
		result.addError("escalation.timeout", e.Timeout.String(), "cannot be negative")
	}
	if e.RatePerSecond < 0 {
		result.addError("escalation.rate_per_second", fmt.Sprint(e.RatePerSecond), "cannot be negative")
	}
	if e.APIKey == "" {
		result.Warnings = append(result.Warnings, "escalation.api_key is empty")
	}
}

func (c *Config) validateCollector(result *ValidationResult) {
	if c.Collector.MaxItems < 0 {
		result.addError("collector.max_items", fmt.Sprint(c.Collector.MaxItems), "cannot be negative")
	}
	if c.Collector.SettleDelay < 0 {
		result.addError("collector.settle_delay", c.Collector.SettleDelay.String(), "cannot be negative")
	}
	if c.Collector.Interval < 0 {
		result.addError("collector.interval", c.Collector.Interval.String(), "cannot be negative")
	}
}

func (c *Config) validateOutput(result *ValidationResult) {
	for i, sink := range c.Output.Sinks {
		field := fmt.Sprintf("output.sinks[%d]", i)
		switch sink.Type {
		case SinkHTTP:
			if err := validateHTTPURL(sink.Endpoint); err != nil {
				result.addError(field+".endpoint", sink.Endpoint, err.Error())
			}
		case SinkJSON, SinkExcel:
			if sink.Path == "" {
				result.addError(field+".path", "", "is required for "+sink.Type+" sinks")
			}
		case SinkMongoDB:
			if sink.URI == "" {
				result.addError(field+".uri", "", "is required for mongodb sinks")
			}
			if sink.Database == "" {
				result.addError(field+".database", "", "is required for mongodb sinks")
			}
		case SinkNATS:
			if sink.Subject == "" {
				result.addError(field+".subject", "", "is required for nats sinks")
			}
		default:
			result.addError(field+".type", sink.Type,
				"must be one of "+strings.Join(ValidSinkTypes(), ", "))
		}
	}
	if len(c.Output.Sinks) == 0 {
		result.Warnings = append(result.Warnings, "no output sinks configured, batches are only logged")
	}
	if c.Output.Retention.Enabled && (c.Cache.Driver == "" || c.Cache.Driver == "memory") {
		result.addError("output.retention.enabled", "true", "requires a SQL cache driver")
	}
}

func (c *Config) validateServer(result *ValidationResult) {
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		result.addError("metrics.path", c.Metrics.Path, "must start with /")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		result.addError("server", "", "timeouts cannot be negative")
	}
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
