package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.StaleThresholdMs != 5000 {
		t.Errorf("Default stale threshold should be 5000, got %d", cfg.StaleThresholdMs)
	}
	if cfg.HeartbeatInterval() != 15*time.Second {
		t.Errorf("Default heartbeat interval should be 15s, got %v", cfg.HeartbeatInterval())
	}
	if cfg.FlushInterval() != 60*time.Second {
		t.Errorf("Default flush interval should be 60s, got %v", cfg.FlushInterval())
	}
	if cfg.SampleBuffer != 1024 {
		t.Errorf("Default sample buffer should be 1024, got %d", cfg.SampleBuffer)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.yaml")

	yaml := `feed_url: "wss://example.com/ws"
markets:
  - "BTC/USD"
  - "ETH/USD"
stale_threshold_ms: 2500
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should succeed: %v", err)
	}

	if cfg.FeedURL != "wss://example.com/ws" {
		t.Errorf("Feed URL not loaded, got %q", cfg.FeedURL)
	}
	if cfg.StaleThresholdMs != 2500 {
		t.Errorf("Stale threshold not loaded, got %d", cfg.StaleThresholdMs)
	}
	if !reflect.DeepEqual(cfg.Markets, []string{"BTC/USD", "ETH/USD"}) {
		t.Errorf("Markets not loaded, got %v", cfg.Markets)
	}

	// Unset fields should take defaults
	if cfg.FlushIntervalSec != 60 {
		t.Errorf("Flush interval should default to 60, got %d", cfg.FlushIntervalSec)
	}
	if cfg.LogFile == "" {
		t.Error("Log file should default to non-empty")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of a missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Markets = []string{"BTC/USD"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Valid config should pass: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty markets", func(c *Config) { c.Markets = nil }},
		{"zero stale threshold", func(c *Config) { c.StaleThresholdMs = 0 }},
		{"negative flush interval", func(c *Config) { c.FlushIntervalSec = -1 }},
		{"zero heartbeat interval", func(c *Config) { c.HeartbeatIntervalSec = 0 }},
		{"zero sample buffer", func(c *Config) { c.SampleBuffer = 0 }},
		{"empty feed url", func(c *Config) { c.FeedURL = "" }},
	}
	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("Config with %s should fail validation", tc.name)
		}
	}
}

func TestNormalizeMarkets(t *testing.T) {
	got := NormalizeMarkets([]string{" BTC/USD ", "", "  ", "ETH/USD"})
	want := []string{"BTC/USD", "ETH/USD"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeMarkets = %v, want %v", got, want)
	}

	if got := NormalizeMarkets([]string{"", "   "}); len(got) != 0 {
		t.Errorf("All-blank input should normalize to empty, got %v", got)
	}
}
