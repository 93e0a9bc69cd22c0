package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/resilience"
)

func TestConfigStats(t *testing.T) {
	cfg := &Config{Providers: []ProviderConfig{
		{Name: "prometheus", Enabled: true},
		{Name: "grafana", Enabled: false},
		{Name: "webhook", Enabled: true},
	}}

	stats := cfg.Stats()
	assert.Equal(t, 3, stats.Providers)
	assert.Equal(t, 2, stats.EnabledProviders)
}

func TestConfigProviderLookup(t *testing.T) {
	cfg := &Config{Providers: []ProviderConfig{
		{Name: "prometheus", Enabled: true},
		{Name: "grafana", Enabled: false},
	}}

	p, err := cfg.Provider("grafana")
	require.NoError(t, err)
	assert.Equal(t, "grafana", p.Name)

	_, err = cfg.Provider("pagerduty")
	assert.ErrorIs(t, err, ErrProviderNotFound)

	enabled := cfg.EnabledProviders()
	require.Len(t, enabled, 1)
	assert.Equal(t, "prometheus", enabled[0].Name)
}

func TestConfigResilience(t *testing.T) {
	tuned := resilience.DefaultConfig()
	tuned.MaxAttempts = 7
	cfg := &Config{resilience: map[string]resilience.Config{"neo4j": tuned}}

	assert.Equal(t, 7, cfg.Resilience("neo4j").MaxAttempts)

	// Upstreams without an override fall back to the package defaults.
	assert.Equal(t, resilience.DefaultConfig(), cfg.Resilience("qdrant"))
}

func TestSystemConfigSlogLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  slog.Level
	}{
		{LogLevelDebug, slog.LevelDebug},
		{LogLevelInfo, slog.LevelInfo},
		{LogLevelWarn, slog.LevelWarn},
		{LogLevelError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SystemConfig{LogLevel: tt.level}.SlogLevel())
	}
}

func TestDefaultSystemConfig(t *testing.T) {
	cfg := DefaultSystemConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.TickInterval)
	assert.Equal(t, "strands-controller", cfg.SystemIdentity)
	assert.Equal(t, "replay", cfg.ReplayDir)
}

func TestProviderKindIsValid(t *testing.T) {
	assert.True(t, ProviderKindPrometheus.IsValid())
	assert.True(t, ProviderKindGrafana.IsValid())
	assert.True(t, ProviderKindWebhook.IsValid())
	assert.False(t, ProviderKind("pagerduty").IsValid())
	assert.False(t, ProviderKind("").IsValid())
}
