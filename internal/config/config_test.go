// internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valpere/FeedScrapexter/internal/escalation"
	"github.com/valpere/FeedScrapexter/internal/selector"
)

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	config, err := LoadFromBytes([]byte("log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Log.Level != "debug" {
		t.Errorf("expected level debug, got %q", config.Log.Level)
	}
	if config.Collector.MaxItems != DefaultMaxItems {
		t.Errorf("expected max items %d, got %d", DefaultMaxItems, config.Collector.MaxItems)
	}
	if config.Selectors.EscalationThreshold != selector.DefaultEscalationThreshold {
		t.Errorf("unexpected threshold %d", config.Selectors.EscalationThreshold)
	}
	if config.Selectors.CacheTTL != selector.DefaultCacheTTL {
		t.Errorf("unexpected cache TTL %s", config.Selectors.CacheTTL)
	}
	if config.Escalation.Timeout != escalation.DefaultTimeout {
		t.Errorf("unexpected escalation timeout %s", config.Escalation.Timeout)
	}
	if config.Cache.Driver != DefaultCacheDriver {
		t.Errorf("unexpected cache driver %q", config.Cache.Driver)
	}
	if config.HTTP.Retry.MaxRetries == 0 {
		t.Error("expected default HTTP retry policy")
	}
}

func TestLoadFromBytesExpandsEnvironment(t *testing.T) {
	t.Setenv("FEED_TEST_KEY", "secret-key")
	configYAML := `
escalation:
  endpoint: "http://localhost:8000/api/ai/selector"
  api_key: "${FEED_TEST_KEY}"
  timeout: 5s
`
	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if config.Escalation.APIKey != "secret-key" {
		t.Errorf("expected expanded key, got %q", config.Escalation.APIKey)
	}
	if config.Escalation.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", config.Escalation.Timeout)
	}
}

func TestLoadFromBytesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "", "cannot be empty"},
		{"bad yaml", "log: [", "failed to parse"},
		{"bad log level", "log:\n  level: loud\n", "log.level"},
		{"unknown cache driver", "cache:\n  driver: oracle\n  dsn: x\n", "cache.driver"},
		{"missing dsn", "cache:\n  driver: sqlite3\n", "cache.dsn"},
		{"bad escalation endpoint", "escalation:\n  endpoint: ftp://x\n", "escalation.endpoint"},
		{"unknown sink", "output:\n  sinks:\n    - type: carrier_pigeon\n", "output.sinks[0].type"},
		{"http sink without endpoint", "output:\n  sinks:\n    - type: http\n", "output.sinks[0].endpoint"},
		{"mongodb sink without uri", "output:\n  sinks:\n    - type: mongodb\n      database: feed\n", "output.sinks[0].uri"},
		{"nats sink without subject", "output:\n  sinks:\n    - type: nats\n", "output.sinks[0].subject"},
		{"retention on memory cache", "output:\n  retention:\n    enabled: true\n", "requires a SQL cache driver"},
		{"negative max items", "collector:\n  max_items: -1\n", "collector.max_items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	configYAML := `
cache:
  driver: sqlite3
  dsn: data/cache.db
output:
  sinks:
    - type: json
      path: out/batches.jsonl
  retention:
    enabled: true
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if len(config.Output.Sinks) != 1 || config.Output.Sinks[0].Timeout == 0 {
		t.Errorf("unexpected sinks %+v", config.Output.Sinks)
	}
	if !config.Output.Retention.Enabled || config.Output.Retention.MaxAge == 0 {
		t.Errorf("unexpected retention %+v", config.Output.Retention)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFromFile(""); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	original := GenerateTemplate("full")
	if err := SaveToFile(&original, path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Cache.Driver != original.Cache.Driver || len(loaded.Output.Sinks) != len(original.Output.Sinks) {
		t.Errorf("config changed across save/load: %+v", loaded)
	}

	if err := SaveToFile(nil, path); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestGenerateTemplate(t *testing.T) {
	for _, kind := range []string{"minimal", "full"} {
		config := GenerateTemplate(kind)
		if len(config.Output.Sinks) == 0 {
			t.Errorf("%s template should have a sink", kind)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("%s template should be valid: %v", kind, err)
		}
	}

	var buf bytes.Buffer
	full := GenerateTemplate("full")
	if err := SaveToWriter(&full, &buf); err != nil {
		t.Fatalf("SaveToWriter failed: %v", err)
	}
	if !strings.Contains(buf.String(), "escalation:") {
		t.Errorf("template output missing escalation section:\n%s", buf.String())
	}
}

func TestValidateDetailedWarnings(t *testing.T) {
	config := Default()
	config.Selectors.WatchPatterns = true
	result := config.ValidateDetailed()
	if !result.Valid {
		t.Fatalf("default config should be valid: %+v", result.Errors)
	}
	if len(result.Warnings) < 2 {
		t.Errorf("expected warnings for missing sinks and patterns file, got %v", result.Warnings)
	}
}

func TestParseFileSkipsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("output:\n  sinks:\n    - type: ftp\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("LoadFromFile should reject an unknown sink type")
	}

	config, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if config.Collector.MaxItems != DefaultMaxItems {
		t.Errorf("expected defaults to be applied, got max_items %d", config.Collector.MaxItems)
	}
	result := config.ValidateDetailed()
	if result.Valid || len(result.Errors) == 0 {
		t.Errorf("expected validation errors, got %+v", result)
	}
}
