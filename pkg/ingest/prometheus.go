package ingest

import (
	"context"
	"strings"

	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/tsdb"
)

// PrometheusProviderConfig configures the Prometheus alert provider.
type PrometheusProviderConfig struct {
	Enabled         bool                       `yaml:"enabled"`
	Priority        int                        `yaml:"priority"`
	SeverityMap     map[string]models.Severity `yaml:"severity_map"`
	ServicePatterns []string                   `yaml:"service_patterns"`
}

// PrometheusProvider reads firing alerts from the metrics backend's
// alerts endpoint.
type PrometheusProvider struct {
	querier  *tsdb.Querier
	priority int
	recipe   Recipe
}

// NewPrometheusProvider creates the provider over an existing querier.
func NewPrometheusProvider(cfg PrometheusProviderConfig, querier *tsdb.Querier) (*PrometheusProvider, error) {
	patterns, err := CompilePatterns(cfg.ServicePatterns)
	if err != nil {
		return nil, err
	}
	return &PrometheusProvider{
		querier:  querier,
		priority: cfg.Priority,
		recipe: Recipe{
			SeverityMap:     cfg.SeverityMap,
			ServicePatterns: patterns,
		},
	}, nil
}

func (p *PrometheusProvider) Name() string  { return "prometheus" }
func (p *PrometheusProvider) Priority() int { return p.priority }

// ListActive returns the currently firing alerts. Pending and resolved
// alerts are skipped; they have not crossed their for-duration yet or are
// already recovering.
func (p *PrometheusProvider) ListActive(ctx context.Context) ([]RawAlert, Recipe, error) {
	firing, err := p.querier.ActiveAlerts(ctx)
	if err != nil {
		return nil, Recipe{}, err
	}
	raws := make([]RawAlert, 0, len(firing))
	for _, a := range firing {
		if !strings.EqualFold(a.State, "firing") {
			continue
		}
		raws = append(raws, RawAlert{
			Labels:      a.Labels,
			Annotations: a.Annotations,
			Severity:    a.Labels["severity"],
			Description: alertDescription(a.Annotations, a.Labels),
			StartsAt:    a.ActiveAt,
			Status:      "firing",
		})
	}
	return raws, p.recipe, nil
}

// alertDescription picks the most informative text field available.
func alertDescription(annotations, labels map[string]string) string {
	for _, key := range []string{"description", "summary", "message"} {
		if v := annotations[key]; v != "" {
			return v
		}
	}
	return labels["alertname"]
}

var _ Provider = (*PrometheusProvider)(nil)
