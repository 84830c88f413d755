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
	path := filepath.Join(t.TempDir(), "uxpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  http_port: 9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 10000, cfg.Telemetry.InteractionCap)
	assert.Equal(t, 5000, cfg.Telemetry.PerformanceCap)
	assert.Equal(t, 5*time.Minute, cfg.Telemetry.AnalysisWindow)
	assert.Equal(t, 50, cfg.Telemetry.HeatmapGridSize)
	assert.Equal(t, 5*time.Minute, cfg.Cycles.Fast)
	assert.Equal(t, 30*time.Minute, cfg.Cycles.Standard)
	assert.Equal(t, 24*time.Hour, cfg.Cycles.Deep)
	assert.Equal(t, "medium", cfg.Autonomy.Level)
	assert.Equal(t, 3, cfg.RateLimit.MaxChangesPerHour)
	assert.Equal(t, 100, cfg.RateLimit.HistoryCap)
	assert.Equal(t, 0.05, cfg.Neural.DecayRate)
	assert.Equal(t, 30*time.Second, cfg.Neural.TickInterval)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("UXPULSE_TEST_API_KEY", "sk-test-123")
	path := writeConfig(t, "collaborator:\n  api_key: ${UXPULSE_TEST_API_KEY}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.Collaborator.APIKey)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
cycles:
  fast: 10s
  standard: 1m
autonomy:
  level: full
rate_limit:
  max_changes_per_hour: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Cycles.Fast)
	assert.Equal(t, time.Minute, cfg.Cycles.Standard)
	assert.Equal(t, "full", cfg.Autonomy.Level)
	assert.Equal(t, 5, cfg.RateLimit.MaxChangesPerHour)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
