package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/codeready-toolchain/strands/pkg/correlate"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/tsdb"
)

// metricsSource is the slice of the metrics backend the analyst needs.
type metricsSource interface {
	Range(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]tsdb.Series, error)
}

// signalQuery is one named PromQL probe the analyst runs per service.
type signalQuery struct {
	name    string
	symptom string
	expr    string
	actions []string
}

// MetricsAnalyst pulls the service's key signals over the lookback window
// and flags anomalous ones by z-score.
type MetricsAnalyst struct {
	source   metricsSource
	engine   *correlate.Engine
	logger   *slog.Logger
	lookback time.Duration
	step     time.Duration
}

// NewMetricsAnalyst creates the analyst.
func NewMetricsAnalyst(source metricsSource, engine *correlate.Engine, logger *slog.Logger) *MetricsAnalyst {
	return &MetricsAnalyst{
		source:   source,
		engine:   engine,
		logger:   logger,
		lookback: 30 * time.Minute,
		step:     time.Minute,
	}
}

func (a *MetricsAnalyst) ID() string { return "metrics-analyst" }

func (a *MetricsAnalyst) queries(service string) []signalQuery {
	return []signalQuery{
		{
			name:    "error_rate",
			symptom: "error burst",
			expr:    fmt.Sprintf(`sum(rate(http_requests_total{service=%q,code=~"5.."}[5m]))`, service),
			actions: []string{"Check recent deployments for " + service, "Inspect error logs for the failing endpoint"},
		},
		{
			name:    "latency_p95",
			symptom: "latency regression",
			expr:    fmt.Sprintf(`histogram_quantile(0.95, sum(rate(http_request_duration_seconds_bucket{service=%q}[5m])) by (le))`, service),
			actions: []string{"Compare latency against upstream dependencies of " + service},
		},
		{
			name:    "memory_working_set",
			symptom: "memory exhaustion",
			expr:    fmt.Sprintf(`max(container_memory_working_set_bytes{pod=~"%s.*"})`, service),
			actions: []string{"Review memory limits for " + service, "Check for a leak in the latest release"},
		},
		{
			name:    "cpu_usage",
			symptom: "cpu saturation",
			expr:    fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{pod=~"%s.*"}[5m]))`, service),
			actions: []string{"Scale " + service + " horizontally", "Profile hot paths under load"},
		},
	}
}

// Investigate probes each signal and reports the anomalous ones. Failed
// probes are skipped; the specialist only errors when every probe failed.
func (a *MetricsAnalyst) Investigate(ctx context.Context, cluster models.AlertCluster) (models.SpecialistResult, error) {
	end := cluster.LatestAt
	if end.IsZero() {
		end = time.Now()
	}
	start := end.Add(-a.lookback)

	var (
		res      models.SpecialistResult
		symptoms []string
		actions  []string
		lastErr  error
		probed   int
	)
	for _, q := range a.queries(cluster.Service) {
		series, err := a.source.Range(ctx, q.expr, start, end, a.step)
		if err != nil {
			lastErr = err
			a.logger.Debug("Metrics probe failed", "signal", q.name, "error", err)
			continue
		}
		probed++
		if len(series) == 0 || len(series[0].Points) == 0 {
			continue
		}
		points := toCorrelatePoints(series[0].Points)
		anomalies := a.engine.Anomalies(points)
		if len(anomalies) == 0 {
			continue
		}
		noisy := a.engine.IsNoisy(points)
		quality := 0.9
		if noisy {
			quality = 0.6
		}
		peak := points[anomalies[len(anomalies)-1]].V
		res.Evidence = append(res.Evidence, models.EvidenceItem{
			Kind:   models.EvidenceMetric,
			Source: q.name,
			Description: fmt.Sprintf("%s anomalous: %d/%d points beyond 3 sigma (peak %.4g)",
				q.name, len(anomalies), len(points), peak),
			Quality:   quality,
			Timestamp: points[anomalies[len(anomalies)-1]].T,
			Value:     &peak,
		})
		symptoms = append(symptoms, q.symptom)
		actions = append(actions, q.actions...)
	}

	if probed == 0 {
		return res, lastErr
	}

	if len(symptoms) == 0 {
		res.Hypothesis = "no metric anomalies detected for " + cluster.Service
		res.Confidence = 0.2
		return res, nil
	}
	res.Hypothesis = fmt.Sprintf("%s in %s (signals: %d anomalous)", dominantSymptom(symptoms), cluster.Service, len(symptoms))
	res.Confidence = math.Min(0.9, 0.5+0.1*float64(len(symptoms)))
	res.SuggestedActions = actions
	return res, nil
}

// dominantSymptom ranks resource exhaustion above traffic symptoms so the
// hypothesis names the most actionable cause first.
func dominantSymptom(symptoms []string) string {
	rank := map[string]int{
		"memory exhaustion":  3,
		"cpu saturation":     2,
		"error burst":        1,
		"latency regression": 0,
	}
	best := symptoms[0]
	for _, s := range symptoms[1:] {
		if rank[s] > rank[best] {
			best = s
		}
	}
	return best
}

func toCorrelatePoints(points []tsdb.Point) []correlate.Point {
	out := make([]correlate.Point, len(points))
	for i, p := range points {
		out[i] = correlate.Point{T: p.T, V: p.V}
	}
	return out
}

var _ Specialist = (*MetricsAnalyst)(nil)
