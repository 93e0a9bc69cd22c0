package controller

import (
	"context"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/vector"
)

// consumeOutcomes drains the review desk. Approvals arrive here as
// EXECUTE_REQUEST outcomes, for auto-approvals the gate calls
// executeRequest directly.
func (c *Controller) consumeOutcomes(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.Info("Outcome consumer shutting down")
			return
		case <-ctx.Done():
			c.logger.Info("Context cancelled, outcome consumer shutting down")
			return
		case out := <-c.deps.Reviews.Outcomes():
			c.executeRequest(ctx, out)
		}
	}
}

// executeRequest hands an approved decision to the execution surface:
// an audit entry plus a flag on the decision node that operators poll.
// Execution itself happens outside the process; its outcome comes back
// through record-execution.
func (c *Controller) executeRequest(ctx context.Context, out models.ReviewOutcome) {
	c.logger.Info("Execution requested",
		"decision_id", out.DecisionID, "playbook_id", out.PlaybookID,
		"reviewer", out.Reviewer)
	c.record(audit.Entry{
		EventType:  audit.EventExecuteRequest,
		DecisionID: out.DecisionID,
		PlaybookID: out.PlaybookID,
		Payload:    map[string]any{"reviewer": out.Reviewer},
	})

	props := map[string]any{
		"execute_requested":    true,
		"execute_requested_at": out.At.UTC().Unix(),
		"approved_by":          out.Reviewer,
	}
	if err := c.deps.Graph.UpsertNode(ctx, labelDecision, out.DecisionID, props); err != nil {
		c.logger.Warn("Marking decision for execution failed",
			"decision_id", out.DecisionID, "error", err)
	}

	// Only reviewed judgement feeds the similarity memory; an
	// auto-approval carries no human signal worth recalling.
	if out.Reviewer != c.cfg.SystemIdentity {
		c.indexResolution(ctx, out)
	}
}

// indexResolution embeds a human-approved resolution for similarity
// search. Failures degrade to a log line: the approval already stands.
func (c *Controller) indexResolution(ctx context.Context, out models.ReviewOutcome) {
	if c.deps.Embedder == nil || c.deps.Vectors == nil {
		return
	}

	rows, err := c.deps.Graph.Query(ctx,
		`MATCH (d:Decision {id: $id})-[:DECIDED_FROM]->(cl:AlertCluster)
		 RETURN d.hypothesis AS hypothesis, cl.service AS service`,
		map[string]any{"id": out.DecisionID})
	if err != nil || len(rows) == 0 {
		c.logger.Warn("Approved decision not found for indexing",
			"decision_id", out.DecisionID, "error", err)
		return
	}
	hypothesis, _ := rows[0]["hypothesis"].(string)
	service, _ := rows[0]["service"].(string)
	if hypothesis == "" {
		return
	}

	embedding, err := c.deps.Embedder.Embed(ctx, service+": "+hypothesis)
	if err != nil {
		c.logger.Warn("Resolution embedding failed",
			"decision_id", out.DecisionID, "error", err)
		return
	}
	err = c.deps.Vectors.Upsert(ctx, []vector.Point{{
		ID:     out.DecisionID,
		Vector: embedding,
		Payload: map[string]any{
			"decision_id": out.DecisionID,
			"playbook_id": out.PlaybookID,
			"service":     service,
			"hypothesis":  hypothesis,
			"reviewer":    out.Reviewer,
			"approved_at": out.At.UTC().Unix(),
		},
	}})
	if err != nil {
		c.logger.Warn("Resolution indexing failed",
			"decision_id", out.DecisionID, "error", err)
		return
	}
	c.logger.Info("Resolution indexed",
		"decision_id", out.DecisionID, "service", service)
}
