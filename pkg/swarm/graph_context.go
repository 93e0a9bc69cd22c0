package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// graphReader is the slice of the graph store this specialist needs.
type graphReader interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// GraphContext reads the knowledge graph around the incident service:
// known correlated neighbours and recent incident history.
type GraphContext struct {
	graph   graphReader
	logger  *slog.Logger
	history time.Duration
}

// NewGraphContext creates the specialist.
func NewGraphContext(graph graphReader, logger *slog.Logger) *GraphContext {
	return &GraphContext{
		graph:   graph,
		logger:  logger,
		history: 7 * 24 * time.Hour,
	}
}

func (g *GraphContext) ID() string { return "graph-context" }

// Investigate reports what the graph already knows about the service.
func (g *GraphContext) Investigate(ctx context.Context, cluster models.AlertCluster) (models.SpecialistResult, error) {
	var res models.SpecialistResult

	neighbours, err := g.graph.Query(ctx,
		`MATCH (s:Service {id: $service})-[r:CORRELATES_WITH]-(o:Service)
		 RETURN o.id AS service, r.posterior AS posterior, r.lag AS lag
		 ORDER BY r.posterior DESC LIMIT 5`,
		map[string]any{"service": cluster.Service})
	if err != nil {
		return res, err
	}

	bestPosterior := 0.0
	bestNeighbour := ""
	for _, row := range neighbours {
		name, _ := row["service"].(string)
		posterior := toFloat(row["posterior"])
		lag := toInt(row["lag"])
		if name == "" {
			continue
		}
		res.Evidence = append(res.Evidence, models.EvidenceItem{
			Kind:        models.EvidenceGraphRelation,
			Source:      name,
			Description: fmt.Sprintf("%s correlates with %s (posterior %.2f, lag %+d)", cluster.Service, name, posterior, lag),
			Quality:     posterior,
		})
		if posterior > bestPosterior {
			bestPosterior = posterior
			bestNeighbour = name
		}
	}

	incidents := 0
	since := cluster.EarliestAt.Add(-g.history).Unix()
	if rows, err := g.graph.Query(ctx,
		`MATCH (c:AlertCluster {service: $service})
		 WHERE c.created_at >= $since
		 RETURN count(c) AS n`,
		map[string]any{"service": cluster.Service, "since": since}); err == nil && len(rows) > 0 {
		incidents = toInt(rows[0]["n"])
		if incidents > 0 {
			n := float64(incidents)
			res.Evidence = append(res.Evidence, models.EvidenceItem{
				Kind:        models.EvidenceGraphRelation,
				Source:      "incident-history",
				Description: fmt.Sprintf("%d incidents for %s in the last 7 days", incidents, cluster.Service),
				Quality:     0.5,
				Value:       &n,
			})
		}
	} else if err != nil {
		g.logger.Debug("Incident history query failed", "service", cluster.Service, "error", err)
	}

	switch {
	case bestNeighbour != "":
		res.Hypothesis = fmt.Sprintf("known dependency coupling: %s moves with %s (posterior %.2f)",
			cluster.Service, bestNeighbour, bestPosterior)
		res.Confidence = bestPosterior
		res.SuggestedActions = []string{"Check the health of " + bestNeighbour + " first"}
	case incidents > 0:
		res.Hypothesis = fmt.Sprintf("recurring incident pattern for %s (%d in 7 days)", cluster.Service, incidents)
		res.Confidence = 0.4
	default:
		res.Hypothesis = "no graph context for " + cluster.Service
		res.Confidence = 0.2
	}
	return res, nil
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	default:
		return 0
	}
}

func toInt(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int:
		return x
	case float64:
		return int(x)
	default:
		return 0
	}
}

var _ Specialist = (*GraphContext)(nil)
