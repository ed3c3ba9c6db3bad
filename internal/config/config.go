package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the monitor configuration loaded from YAML, with CLI flag
// overrides applied on top by the command layer.
type Config struct {
	FeedURL              string   `yaml:"feed_url"`
	LogFile              string   `yaml:"log_file"`
	MetricsAddr          string   `yaml:"metrics_addr"`
	Markets              []string `yaml:"markets"`
	StaleThresholdMs     int64    `yaml:"stale_threshold_ms"`
	FlushIntervalSec     int      `yaml:"flush_interval_sec"`
	HeartbeatIntervalSec int      `yaml:"heartbeat_interval_sec"`
	SampleBuffer         int      `yaml:"sample_buffer"`
}

// Default returns the baseline configuration used when no file is provided.
func Default() Config {
	return Config{
		FeedURL:              "wss://ftx.com/ws/",
		LogFile:              "ftx-socket-msgs.log",
		StaleThresholdMs:     5000,
		FlushIntervalSec:     60,
		HeartbeatIntervalSec: 15,
		SampleBuffer:         1024,
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields from Default. MetricsAddr is left
// alone: empty means the metrics server stays off.
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.FeedURL == "" {
		c.FeedURL = def.FeedURL
	}
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
	if c.StaleThresholdMs == 0 {
		c.StaleThresholdMs = def.StaleThresholdMs
	}
	if c.FlushIntervalSec == 0 {
		c.FlushIntervalSec = def.FlushIntervalSec
	}
	if c.HeartbeatIntervalSec == 0 {
		c.HeartbeatIntervalSec = def.HeartbeatIntervalSec
	}
	if c.SampleBuffer == 0 {
		c.SampleBuffer = def.SampleBuffer
	}
}

// Validate checks the configuration for values the monitor cannot run with.
func (c Config) Validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("feed_url must not be empty")
	}
	if c.LogFile == "" {
		return fmt.Errorf("log_file must not be empty")
	}
	if c.StaleThresholdMs <= 0 {
		return fmt.Errorf("stale_threshold_ms must be positive, got %d", c.StaleThresholdMs)
	}
	if c.FlushIntervalSec <= 0 {
		return fmt.Errorf("flush_interval_sec must be positive, got %d", c.FlushIntervalSec)
	}
	if c.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("heartbeat_interval_sec must be positive, got %d", c.HeartbeatIntervalSec)
	}
	if c.SampleBuffer <= 0 {
		return fmt.Errorf("sample_buffer must be positive, got %d", c.SampleBuffer)
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	return nil
}

// FlushInterval returns the aggregation window length.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSec) * time.Second
}

// HeartbeatInterval returns the keep-alive period.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSec) * time.Second
}

// NormalizeMarkets trims whitespace and drops empty entries, preserving order.
func NormalizeMarkets(markets []string) []string {
	out := make([]string, 0, len(markets))
	for _, m := range markets {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
