// Package llm talks to the model endpoint used for two things: embedding
// incident summaries for the vector index and generating draft playbook
// steps when no historical playbook fits. The endpoint speaks the Ollama
// wire format (POST /api/embeddings, POST /api/generate).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

// Config contains the model endpoint settings.
type Config struct {
	// BaseURL is the endpoint root, e.g. http://model:11434.
	BaseURL string `yaml:"base_url"`

	// EmbedModel produces embeddings for the vector index.
	EmbedModel string `yaml:"embed_model"`

	// GenerateModel drafts playbook steps.
	GenerateModel string `yaml:"generate_model"`
}

// DefaultConfig returns the built-in model endpoint defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:11434",
		EmbedModel:    "all-minilm",
		GenerateModel: "llama3.1",
	}
}

// Client is the shared model endpoint client. Safe for concurrent use.
type Client struct {
	baseURL       string
	embedModel    string
	generateModel string
	httpClient    *http.Client
	exec          *resilience.Executor
	logger        *slog.Logger
}

// NewClient creates a model endpoint client.
func NewClient(cfg Config, exec *resilience.Executor, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, faults.New(faults.KindValidationFailed, "llm.NewClient", "model base URL is required")
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		embedModel:    cfg.EmbedModel,
		generateModel: cfg.GenerateModel,
		httpClient:    &http.Client{Timeout: 120 * time.Second},
		exec:          exec,
		logger:        logger,
	}, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, faults.New(faults.KindValidationFailed, "llm.Embed", "empty text")
	}
	var out embedResponse
	err := c.exec.Do(ctx, "llm.Embed", func(ctx context.Context) error {
		return c.post(ctx, "/api/embeddings", embedRequest{
			Model:  c.embedModel,
			Prompt: text,
		}, &out)
	})
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, faults.New(faults.KindUpstreamUnavailable, "llm.Embed", "model returned empty embedding")
	}
	return out.Embedding, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate returns the model's completion for the prompt, non-streaming.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", faults.New(faults.KindValidationFailed, "llm.Generate", "empty prompt")
	}
	var out generateResponse
	err := c.exec.Do(ctx, "llm.Generate", func(ctx context.Context) error {
		return c.post(ctx, "/api/generate", generateRequest{
			Model:  c.generateModel,
			Prompt: prompt,
			Stream: false,
		}, &out)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Response), nil
}

// Snapshot exposes the resilience counters for health reporting.
func (c *Client) Snapshot() resilience.Snapshot {
	return c.exec.Snapshot()
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return faults.Wrap(faults.KindValidationFailed, "llm.post", "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return faults.Wrap(faults.KindValidationFailed, "llm.post", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := faults.KindUpstreamUnavailable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			kind = faults.KindValidationFailed
		}
		return faults.Newf(kind, "llm.post", "model endpoint returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.Wrap(faults.KindUpstreamUnavailable, "llm.post",
			fmt.Sprintf("decode %s response", path), err)
	}
	return nil
}
