package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

// GrafanaProviderConfig configures the Grafana alert provider.
type GrafanaProviderConfig struct {
	Enabled         bool                       `yaml:"enabled"`
	Endpoint        string                     `yaml:"endpoint"`
	Priority        int                        `yaml:"priority"`
	Token           string                     `yaml:"token"`
	SeverityMap     map[string]models.Severity `yaml:"severity_map"`
	ServicePatterns []string                   `yaml:"service_patterns"`
}

// grafanaAlert is the alertmanager-compatible wire shape Grafana serves
// from /api/alertmanager/grafana/api/v2/alerts.
type grafanaAlert struct {
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	StartsAt    time.Time         `json:"startsAt"`
	Fingerprint string            `json:"fingerprint"`
	Status      struct {
		State string `json:"state"`
	} `json:"status"`
}

// GrafanaProvider polls a Grafana alerting endpoint.
type GrafanaProvider struct {
	endpoint   string
	token      string
	priority   int
	recipe     Recipe
	httpClient *http.Client
	exec       *resilience.Executor
}

// NewGrafanaProvider creates the provider.
func NewGrafanaProvider(cfg GrafanaProviderConfig, exec *resilience.Executor) (*GrafanaProvider, error) {
	if cfg.Endpoint == "" {
		return nil, faults.New(faults.KindValidationFailed, "ingest.NewGrafanaProvider",
			"grafana endpoint is required")
	}
	patterns, err := CompilePatterns(cfg.ServicePatterns)
	if err != nil {
		return nil, err
	}
	return &GrafanaProvider{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.Token,
		priority:   cfg.Priority,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
		recipe: Recipe{
			SeverityMap:     cfg.SeverityMap,
			ServicePatterns: patterns,
		},
	}, nil
}

func (p *GrafanaProvider) Name() string  { return "grafana" }
func (p *GrafanaProvider) Priority() int { return p.priority }

// ListActive fetches the active alerts from Grafana.
func (p *GrafanaProvider) ListActive(ctx context.Context) ([]RawAlert, Recipe, error) {
	var wire []grafanaAlert
	err := p.exec.Do(ctx, "grafana.ListActive", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			p.endpoint+"/api/alertmanager/grafana/api/v2/alerts", nil)
		if err != nil {
			return faults.Wrap(faults.KindValidationFailed, "grafana.ListActive", "build request", err)
		}
		req.Header.Set("Accept", "application/json")
		if p.token != "" {
			req.Header.Set("Authorization", "Bearer "+p.token)
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return faults.Newf(faults.KindUpstreamUnavailable, "grafana.ListActive",
				"grafana returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		}
		wire = wire[:0]
		return json.NewDecoder(resp.Body).Decode(&wire)
	})
	if err != nil {
		return nil, Recipe{}, err
	}

	raws := make([]RawAlert, 0, len(wire))
	for _, a := range wire {
		if a.Status.State != "" && !strings.EqualFold(a.Status.State, "active") {
			continue
		}
		raws = append(raws, RawAlert{
			Fingerprint: a.Fingerprint,
			Labels:      a.Labels,
			Annotations: a.Annotations,
			Severity:    a.Labels["severity"],
			Description: alertDescription(a.Annotations, a.Labels),
			StartsAt:    a.StartsAt,
			Status:      "firing",
		})
	}
	return raws, p.recipe, nil
}

var _ Provider = (*GrafanaProvider)(nil)
