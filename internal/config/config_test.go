package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "obscore", cfg.Service)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 100*time.Millisecond, cfg.SlowQueryThreshold())
		assert.Equal(t, time.Second, cfg.SlowExternalThreshold())
		assert.Equal(t, 5*time.Minute, cfg.AlertCooldown())
		assert.Equal(t, 30*time.Second, cfg.PoolSampleInterval())
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
environment: production
service: graph-api
log_level: warn
slow_query_threshold_ms: 250
excluded_paths:
  - /healthz
  - /ping
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "graph-api", cfg.Service)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryThreshold())
		assert.Equal(t, []string{"/healthz", "/ping"}, cfg.ExcludedPaths)
	})

	t.Run("environment variables override the file", func(t *testing.T) {
		path := writeConfig(t, "environment: development\nlog_level: info\n")
		t.Setenv("OBSCORE_ENVIRONMENT", "production")
		t.Setenv("OBSCORE_LOG_LEVEL", "DEBUG")
		t.Setenv("OBSCORE_SLOW_QUERY_THRESHOLD_MS", "75")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 75, cfg.SlowQueryThresholdMs)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid environment fails validation", func(t *testing.T) {
		path := writeConfig(t, "environment: staging\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "validate config")
	})

	t.Run("invalid log level fails validation", func(t *testing.T) {
		path := writeConfig(t, "log_level: verbose\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "validate config")
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		path := writeConfig(t, "environment: [unclosed\n")
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config file")
	})

	t.Run("invalid sink url fails validation", func(t *testing.T) {
		path := writeConfig(t, "alert_sink_url: not-a-url\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}
