// Package config loads the observability core's configuration from a YAML
// file overlaid with environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all tunables for the observability core.
type Config struct {
	Environment string `yaml:"environment" validate:"required,oneof=development test production"`
	Service     string `yaml:"service" validate:"required"`
	LogLevel    string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error fatal"`

	// Request instrumentation
	ExcludedPaths []string `yaml:"excluded_paths"`

	// Performance thresholds
	SlowQueryThresholdMs    int `yaml:"slow_query_threshold_ms" validate:"gte=0"`
	SlowExternalThresholdMs int `yaml:"slow_external_threshold_ms" validate:"gte=0"`
	MemoryThresholdMB       int `yaml:"memory_threshold_mb" validate:"gte=0"`

	// Alerting
	AlertCooldownSeconds int    `yaml:"alert_cooldown_seconds" validate:"gte=0"`
	AlertSinkURL         string `yaml:"alert_sink_url" validate:"omitempty,url"`

	// Pool sampling
	PoolSampleIntervalSeconds int `yaml:"pool_sample_interval_seconds" validate:"gte=0"`
}

// Defaults returns the baseline configuration.
func Defaults() Config {
	return Config{
		Environment:               "development",
		Service:                   "obscore",
		LogLevel:                  "info",
		SlowQueryThresholdMs:      100,
		SlowExternalThresholdMs:   1000,
		MemoryThresholdMB:         500,
		AlertCooldownSeconds:      300,
		PoolSampleIntervalSeconds: 30,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment variable overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OBSCORE_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("OBSCORE_SERVICE"); v != "" {
		cfg.Service = v
	}
	if v := os.Getenv("OBSCORE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("OBSCORE_ALERT_SINK_URL"); v != "" {
		cfg.AlertSinkURL = v
	}
	if v, err := strconv.Atoi(os.Getenv("OBSCORE_SLOW_QUERY_THRESHOLD_MS")); err == nil && v > 0 {
		cfg.SlowQueryThresholdMs = v
	}
	if v, err := strconv.Atoi(os.Getenv("OBSCORE_ALERT_COOLDOWN_SECONDS")); err == nil && v > 0 {
		cfg.AlertCooldownSeconds = v
	}
}

// SlowQueryThreshold returns the query threshold as a duration.
func (c Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

// SlowExternalThreshold returns the external-call threshold as a duration.
func (c Config) SlowExternalThreshold() time.Duration {
	return time.Duration(c.SlowExternalThresholdMs) * time.Millisecond
}

// AlertCooldown returns the alert cooldown as a duration.
func (c Config) AlertCooldown() time.Duration {
	return time.Duration(c.AlertCooldownSeconds) * time.Second
}

// PoolSampleInterval returns the pool sampling interval as a duration.
func (c Config) PoolSampleInterval() time.Duration {
	return time.Duration(c.PoolSampleIntervalSeconds) * time.Second
}
