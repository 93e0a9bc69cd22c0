package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/strands/pkg/correlate"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// correlationGraph is the slice of the graph store the correlator needs:
// listing services with recent incidents and persisting discovered couplings.
type correlationGraph interface {
	graphReader
	UpsertRelation(ctx context.Context, rel graph.Relation) error
}

// Correlator cross-correlates the incident service's signals with each other
// and with the error rates of services that had recent incidents. Strong
// positive-lag couplings are written back to the graph as CORRELATES_WITH
// edges from leader to lagger, so later investigations start with them.
type Correlator struct {
	metrics  metricsSource
	graph    correlationGraph
	engine   *correlate.Engine
	logger   *slog.Logger
	lookback time.Duration
	step     time.Duration
	maxPeers int
}

// NewCorrelator creates the specialist.
func NewCorrelator(metrics metricsSource, g correlationGraph, engine *correlate.Engine, logger *slog.Logger) *Correlator {
	return &Correlator{
		metrics:  metrics,
		graph:    g,
		engine:   engine,
		logger:   logger,
		lookback: 30 * time.Minute,
		step:     time.Minute,
		maxPeers: 4,
	}
}

func (c *Correlator) ID() string { return "correlator" }

func errorRateExpr(service string) string {
	return fmt.Sprintf(`sum(rate(http_requests_total{service=%q,code=~"5.."}[5m]))`, service)
}

func latencyExpr(service string) string {
	return fmt.Sprintf(`histogram_quantile(0.95, sum(rate(http_request_duration_seconds_bucket{service=%q}[5m])) by (le))`, service)
}

func cpuExpr(service string) string {
	return fmt.Sprintf(`sum(rate(container_cpu_usage_seconds_total{pod=~"%s.*"}[5m]))`, service)
}

// Investigate runs the pairwise correlations. The in-service pairs couple the
// error rate with latency and CPU; the cross-service pairs couple the error
// rate with peers that had incidents in the last day.
func (c *Correlator) Investigate(ctx context.Context, cluster models.AlertCluster) (models.SpecialistResult, error) {
	var res models.SpecialistResult

	end := cluster.LatestAt
	if end.IsZero() {
		end = time.Now()
	}
	start := end.Add(-c.lookback)

	self := cluster.Service
	errSeries, err := c.fetch(ctx, self+":error_rate", errorRateExpr(self), start, end)
	if err != nil {
		return res, err
	}

	type finding struct {
		result correlate.Result
		peer   string // empty for in-service pairs
	}
	var findings []finding

	for _, probe := range []struct {
		name string
		expr string
	}{
		{self + ":latency_p95", latencyExpr(self)},
		{self + ":cpu_usage", cpuExpr(self)},
	} {
		other, err := c.fetch(ctx, probe.name, probe.expr, start, end)
		if err != nil {
			c.logger.Debug("Correlator probe failed", "series", probe.name, "error", err)
			continue
		}
		if r := c.engine.Correlate(errSeries, other); !r.Degenerate {
			findings = append(findings, finding{result: r})
		}
	}

	for _, peer := range c.recentPeers(ctx, self, end) {
		other, err := c.fetch(ctx, peer+":error_rate", errorRateExpr(peer), start, end)
		if err != nil {
			c.logger.Debug("Correlator peer probe failed", "peer", peer, "error", err)
			continue
		}
		r := c.engine.Correlate(errSeries, other)
		if r.Degenerate {
			continue
		}
		findings = append(findings, finding{result: r, peer: peer})
		if r.Strength == models.StrengthStrong || r.Strength == models.StrengthVeryStrong {
			c.persistCoupling(ctx, self, peer, r, end)
		}
	}

	var best *finding
	for i := range findings {
		f := &findings[i]
		kind := models.EvidenceMetric
		if f.peer != "" {
			kind = models.EvidenceGraphRelation
		}
		res.Evidence = append(res.Evidence, models.EvidenceItem{
			Kind:   kind,
			Source: f.result.A + "~" + f.result.B,
			Description: fmt.Sprintf("%s vs %s: r=%.2f lag=%+d posterior=%.2f (%s)",
				f.result.A, f.result.B, f.result.R, f.result.Lag, f.result.Posterior, f.result.Strength),
			Quality:   f.result.Posterior,
			Timestamp: end,
		})
		if best == nil || f.result.Posterior > best.result.Posterior {
			best = f
		}
	}

	if best == nil {
		res.Hypothesis = "no significant signal correlations for " + self
		res.Confidence = 0.2
		return res, nil
	}

	res.Confidence = best.result.Posterior
	if best.peer != "" {
		leader, lagger := self, best.peer
		lag := best.result.Lag
		if lag < 0 {
			leader, lagger, lag = best.peer, self, -lag
		}
		res.Hypothesis = fmt.Sprintf("cascading failure: errors in %s lead %s by %dm (posterior %.2f)",
			leader, lagger, lag, best.result.Posterior)
		res.SuggestedActions = []string{"Investigate " + leader + " as the likely origin"}
	} else {
		res.Hypothesis = fmt.Sprintf("coupled signal regression: %s moves with %s in %s (posterior %.2f)",
			best.result.A, best.result.B, self, best.result.Posterior)
	}
	return res, nil
}

func (c *Correlator) fetch(ctx context.Context, name, expr string, start, end time.Time) (correlate.Series, error) {
	series, err := c.metrics.Range(ctx, expr, start, end, c.step)
	if err != nil {
		return correlate.Series{}, err
	}
	out := correlate.Series{Name: name}
	if len(series) > 0 {
		out.Points = toCorrelatePoints(series[0].Points)
	}
	return out, nil
}

// recentPeers lists services with an alert cluster in the last day, the
// incident service excluded. Graph failures degrade to an empty peer set.
func (c *Correlator) recentPeers(ctx context.Context, self string, end time.Time) []string {
	rows, err := c.graph.Query(ctx,
		`MATCH (c:AlertCluster)
		 WHERE c.created_at >= $since AND c.service <> $service
		 RETURN DISTINCT c.service AS service
		 ORDER BY service LIMIT $limit`,
		map[string]any{
			"since":   end.Add(-24 * time.Hour).Unix(),
			"service": self,
			"limit":   c.maxPeers,
		})
	if err != nil {
		c.logger.Debug("Peer lookup failed", "service", self, "error", err)
		return nil
	}
	peers := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["service"].(string); ok && name != "" {
			peers = append(peers, name)
		}
	}
	return peers
}

func (c *Correlator) persistCoupling(ctx context.Context, self, peer string, r correlate.Result, at time.Time) {
	from, to, lag := self, peer, r.Lag
	if r.Lag < 0 {
		from, to, lag = peer, self, -r.Lag
	}
	rel := graph.Relation{
		FromLabel: "Service",
		FromID:    from,
		Type:      "CORRELATES_WITH",
		ToLabel:   "Service",
		ToID:      to,
		Props: map[string]any{
			"r":          r.R,
			"lag":        lag,
			"posterior":  r.Posterior,
			"strength":   string(r.Strength),
			"updated_at": at.Unix(),
		},
	}
	if err := c.graph.UpsertRelation(ctx, rel); err != nil {
		c.logger.Warn("Coupling write failed", "from", from, "to", to, "error", err)
	}
}

var _ Specialist = (*Correlator)(nil)
