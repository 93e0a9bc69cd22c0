package llm

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

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := resilience.DefaultConfig()
	cfg.MaxAttempts = 1
	cfg.CallTimeout = 5 * time.Second
	exec := resilience.NewExecutor("model", cfg, logger)

	c, err := NewClient(Config{
		BaseURL:       srv.URL,
		EmbedModel:    "all-minilm",
		GenerateModel: "llama3.1",
	}, exec, logger)
	require.NoError(t, err)
	return c
}

func TestClient_Embed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		assert.Equal(t, "OOMKilled loop in checkout", req.Prompt)

		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	})

	vec, err := c.Embed(context.Background(), "OOMKilled loop in checkout")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClient_Embed_EmptyText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.Embed(context.Background(), "")

	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
}

func TestClient_Embed_EmptyEmbedding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	})

	_, err := c.Embed(context.Background(), "text")

	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindUpstreamUnavailable))
}

func TestClient_Generate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1", req.Model)
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(generateResponse{Response: "  1. Scale the deployment\n2. Check memory limits  "})
	})

	out, err := c.Generate(context.Background(), "draft remediation steps")

	require.NoError(t, err)
	assert.Equal(t, "1. Scale the deployment\n2. Check memory limits", out)
}

func TestClient_ServerErrors(t *testing.T) {
	t.Run("5xx maps to upstream unavailable", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		})

		_, err := c.Generate(context.Background(), "prompt")

		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindUpstreamUnavailable))
		assert.Contains(t, err.Error(), "model loading")
	})

	t.Run("4xx maps to validation failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unknown model", http.StatusBadRequest)
		})

		_, err := c.Generate(context.Background(), "prompt")

		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
	})
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)

	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
}
