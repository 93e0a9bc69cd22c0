package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// WebhookProviderConfig configures the push-based webhook provider.
type WebhookProviderConfig struct {
	Enabled         bool                       `yaml:"enabled"`
	Priority        int                        `yaml:"priority"`
	QueueSize       int                        `yaml:"queue_size"`
	SeverityMap     map[string]models.Severity `yaml:"severity_map"`
	ServicePatterns []string                   `yaml:"service_patterns"`
}

// WebhookProvider buffers alerts pushed through the HTTP API until the
// next collection cycle drains them. When the buffer fills, the oldest
// alert is dropped; a stale alert is worth less than a fresh one.
type WebhookProvider struct {
	priority int
	capacity int
	recipe   Recipe
	logger   *slog.Logger

	mu      sync.Mutex
	pending []RawAlert
	dropped uint64
}

// NewWebhookProvider creates the provider.
func NewWebhookProvider(cfg WebhookProviderConfig, logger *slog.Logger) (*WebhookProvider, error) {
	patterns, err := CompilePatterns(cfg.ServicePatterns)
	if err != nil {
		return nil, err
	}
	capacity := cfg.QueueSize
	if capacity <= 0 {
		capacity = 1000
	}
	return &WebhookProvider{
		priority: cfg.Priority,
		capacity: capacity,
		logger:   logger,
		recipe: Recipe{
			SeverityMap:     cfg.SeverityMap,
			ServicePatterns: patterns,
		},
	}, nil
}

func (p *WebhookProvider) Name() string  { return "webhook" }
func (p *WebhookProvider) Priority() int { return p.priority }

// Enqueue buffers one pushed alert for the next cycle.
func (p *WebhookProvider) Enqueue(raw RawAlert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) >= p.capacity {
		p.pending = p.pending[1:]
		p.dropped++
		p.logger.Warn("Webhook queue full, dropped oldest alert", "capacity", p.capacity)
	}
	p.pending = append(p.pending, raw)
}

// ListActive drains the buffered alerts. An empty buffer is a valid
// empty answer, not a failure.
func (p *WebhookProvider) ListActive(ctx context.Context) ([]RawAlert, Recipe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out, p.recipe, nil
}

// Depth reports the current queue depth for health reporting.
func (p *WebhookProvider) Depth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

var _ Provider = (*WebhookProvider)(nil)
