package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/resilience"
)

func TestWebhookProvider_EnqueueDrain(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewWebhookProvider(WebhookProviderConfig{Priority: 100, QueueSize: 10}, logger)
	require.NoError(t, err)

	p.Enqueue(RawAlert{Severity: "critical", Description: "pushed"})
	p.Enqueue(RawAlert{Severity: "high", Description: "pushed too"})
	assert.Equal(t, 2, p.Depth())

	alerts, _, err := p.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
	assert.Zero(t, p.Depth(), "drain empties the queue")

	alerts, _, err = p.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts, "empty queue is a valid empty answer")
}

func TestWebhookProvider_OverflowDropsOldest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewWebhookProvider(WebhookProviderConfig{QueueSize: 2}, logger)
	require.NoError(t, err)

	p.Enqueue(RawAlert{Description: "first"})
	p.Enqueue(RawAlert{Description: "second"})
	p.Enqueue(RawAlert{Description: "third"})

	alerts, _, err := p.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "second", alerts[0].Description)
	assert.Equal(t, "third", alerts[1].Description)
}

func TestGrafanaProvider_ListActive(t *testing.T) {
	startsAt := time.Date(2026, 8, 25, 11, 55, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alertmanager/grafana/api/v2/alerts", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"labels":      map[string]string{"severity": "critical", "service": "checkout"},
				"annotations": map[string]string{"description": "checkout crash looping"},
				"startsAt":    startsAt.Format(time.RFC3339),
				"fingerprint": "fp-1",
				"status":      map[string]string{"state": "active"},
			},
			{
				"labels":      map[string]string{"severity": "info"},
				"annotations": map[string]string{"summary": "suppressed"},
				"status":      map[string]string{"state": "suppressed"},
			},
		})
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := resilience.DefaultConfig()
	cfg.MaxAttempts = 1
	exec := resilience.NewExecutor("grafana", cfg, logger)
	p, err := NewGrafanaProvider(GrafanaProviderConfig{
		Endpoint: srv.URL,
		Priority: 50,
		Token:    "token-1",
	}, exec)
	require.NoError(t, err)

	alerts, _, err := p.ListActive(context.Background())

	require.NoError(t, err)
	require.Len(t, alerts, 1, "suppressed alerts are skipped")
	assert.Equal(t, "fp-1", alerts[0].Fingerprint)
	assert.Equal(t, "critical", alerts[0].Severity)
	assert.Equal(t, "checkout crash looping", alerts[0].Description)
	assert.True(t, alerts[0].StartsAt.Equal(startsAt))
}

func TestGrafanaProvider_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := resilience.DefaultConfig()
	cfg.MaxAttempts = 1
	exec := resilience.NewExecutor("grafana", cfg, logger)
	p, err := NewGrafanaProvider(GrafanaProviderConfig{Endpoint: srv.URL}, exec)
	require.NoError(t, err)

	_, _, err = p.ListActive(context.Background())

	require.Error(t, err)
}

func TestNewGrafanaProvider_RequiresEndpoint(t *testing.T) {
	_, err := NewGrafanaProvider(GrafanaProviderConfig{}, nil)
	require.Error(t, err)
}
