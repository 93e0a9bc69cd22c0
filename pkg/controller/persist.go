package controller

import (
	"context"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// persist writes the cluster, its member alerts, and the decision to
// the graph. Write order matters for crash recovery: the cluster and
// alerts land before the decision that references them, so a partial
// write never leaves a dangling DECIDED_FROM edge.
func (c *Controller) persist(ctx context.Context, cluster models.AlertCluster, d models.DecisionCandidate, rec models.Recommendation, auto bool) error {
	const op = "controller.persist"

	clusterProps := map[string]any{
		"service":      cluster.Service,
		"cluster_type": cluster.ClusterType,
		"earliest_at":  cluster.EarliestAt.UTC().Unix(),
		"latest_at":    cluster.LatestAt.UTC().Unix(),
		"member_count": int64(len(cluster.Members)),
	}
	if cluster.CorrelationBasis != "" {
		clusterProps["correlation_basis"] = cluster.CorrelationBasis
	}
	if err := c.deps.Graph.UpsertNode(ctx, labelCluster, cluster.ID, clusterProps); err != nil {
		return faults.Wrap(faults.KindUpstreamUnavailable, op, "cluster write failed", err)
	}

	for _, m := range cluster.Members {
		alertProps := map[string]any{
			"provider":    m.Provider,
			"service":     m.Service,
			"severity":    string(m.Severity),
			"description": m.Description,
			"status":      string(m.Status),
			"received_at": m.ReceivedAt.UTC().Unix(),
		}
		if err := c.deps.Graph.UpsertNode(ctx, labelAlert, m.Fingerprint, alertProps); err != nil {
			return faults.Wrap(faults.KindUpstreamUnavailable, op, "alert write failed", err)
		}
		if err := c.deps.Graph.UpsertRelation(ctx, graph.Relation{
			FromLabel: labelAlert, FromID: m.Fingerprint,
			Type:    relMemberOf,
			ToLabel: labelCluster, ToID: cluster.ID,
		}); err != nil {
			return faults.Wrap(faults.KindUpstreamUnavailable, op, "membership write failed", err)
		}
	}

	decisionProps := map[string]any{
		"cluster_id":            d.ClusterID,
		"hypothesis":            d.Hypothesis,
		"confidence":            d.Confidence,
		"risk":                  string(d.Risk),
		"automation":            string(d.Automation),
		"type":                  string(d.Type),
		"conflict":              d.Conflict,
		"degraded":              d.Degraded,
		"model_version":         d.ModelVersion,
		"weights_version":       d.WeightsVersion,
		"audit_id":              d.AuditID,
		"created_at":            d.CreatedAt.UTC().Unix(),
		"auto_approved":         auto,
		"recommendation_source": string(rec.Source),
		"recommendation_status": string(rec.Status),
	}
	if rec.Playbook.ID != "" {
		decisionProps["playbook_id"] = rec.Playbook.ID
		decisionProps["playbook_version"] = rec.Playbook.Version
	}
	if err := c.deps.Graph.UpsertNode(ctx, labelDecision, d.ID, decisionProps); err != nil {
		return faults.Wrap(faults.KindUpstreamUnavailable, op, "decision write failed", err)
	}
	if err := c.deps.Graph.UpsertRelation(ctx, graph.Relation{
		FromLabel: labelDecision, FromID: d.ID,
		Type:    relDecidedFrom,
		ToLabel: labelCluster, ToID: cluster.ID,
	}); err != nil {
		return faults.Wrap(faults.KindUpstreamUnavailable, op, "decision edge write failed", err)
	}
	return nil
}

// replayEvent is the ledger line for one processed cluster. The first
// member stands in as the representative alert; the full cluster and
// roster ride along so a replay needs no live upstream.
func replayEvent(cluster models.AlertCluster, results []models.SpecialistResult, degraded bool, d models.DecisionCandidate, rec models.Recommendation) models.ReplayEvent {
	ev := models.ReplayEvent{
		Timestamp:     d.CreatedAt,
		Cluster:       &cluster,
		Investigation: results,
		Degraded:      degraded,
		Decision:      &d,
	}
	if len(cluster.Members) > 0 {
		ev.Alert = cluster.Members[0].Alert
	}
	if rec.Playbook.ID != "" {
		ev.PlaybookID = rec.Playbook.ID
		ev.PlaybookVersion = rec.Playbook.Version
	}
	return ev
}

// record forwards an audit entry when a trail is wired.
func (c *Controller) record(entry audit.Entry) {
	if c.deps.Trail == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = c.now().UTC()
	}
	c.deps.Trail.Record(entry)
}
