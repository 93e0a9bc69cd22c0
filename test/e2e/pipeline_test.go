package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

func TestPipelineAlertToReview(t *testing.T) {
	p := startPipeline(t)
	ctx := context.Background()

	p.webhook.Enqueue(criticalAlert("fp-checkout-1", "checkout",
		"Checkout error rate above threshold"))

	stats := p.ctrl.Tick(ctx)
	require.False(t, stats.Skipped, "tick skipped: %s", stats.SkipReason)
	require.Equal(t, "webhook", stats.Provider)
	require.Equal(t, 1, stats.Clusters)
	require.Equal(t, 1, stats.Decisions)
	require.Zero(t, stats.Errors)
	// A drafted playbook is never READY, so the decision cannot
	// auto-approve and must land in review.
	require.Zero(t, stats.AutoApproved)
	require.Equal(t, 1, stats.ReviewsOpened)

	decisionID := p.decisionID(t)

	t.Run("review is pending with the drafted playbook attached", func(t *testing.T) {
		rec, err := p.reviews.Get(ctx, decisionID)
		require.NoError(t, err)
		assert.Equal(t, models.ReviewPending, rec.State)
		assert.Equal(t, decisionID, rec.DecisionID)
		require.NotEmpty(t, rec.PlaybookID)

		draft, err := p.playbooks.Get(ctx, rec.PlaybookID)
		require.NoError(t, err)
		assert.Equal(t, models.PlaybookPendingReview, draft.Status)
		assert.Equal(t, models.SourceLLMGenerated, draft.Source)
		assert.Equal(t, "llm-generator", draft.CreatedBy)
		assert.Equal(t, "Restart the degraded deployment", draft.Title)
		assert.Len(t, draft.Steps, 2)
	})

	t.Run("graph links alert, cluster, and decision", func(t *testing.T) {
		rows, err := p.graph.Query(ctx, `
			MATCH (a:Alert {id: $fp})-[:MEMBER_OF]->(c:AlertCluster)<-[:DECIDED_FROM]-(d:Decision {id: $id})
			RETURN a.service AS service, a.severity AS severity, c.id AS cluster_id`,
			map[string]any{"fp": "fp-checkout-1", "id": decisionID})
		require.NoError(t, err)
		require.Len(t, rows, 1, "alert, cluster, and decision must be connected")
		assert.Equal(t, "checkout", rows[0]["service"])
		assert.Equal(t, "critical", rows[0]["severity"])
		assert.NotEmpty(t, rows[0]["cluster_id"])
	})

	t.Run("review node hangs off the decision", func(t *testing.T) {
		rows, err := p.graph.Query(ctx, `
			MATCH (d:Decision {id: $id})-[:REVIEWED_BY]->(r:Review)
			RETURN r.state AS state`,
			map[string]any{"id": decisionID})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "PENDING", rows[0]["state"])
	})

	t.Run("audit trail records the pass", func(t *testing.T) {
		events := p.auditEvents(t)
		assert.Contains(t, events, audit.EventDecisionMade)
		assert.Contains(t, events, audit.EventReviewOpened)
		require.NotEmpty(t, events)
		assert.Equal(t, audit.EventTickCompleted, events[len(events)-1])
	})

	assert.Equal(t, 1, p.generator.calls, "one cluster drafts exactly one playbook")
}

func TestPipelineApproveReleasesPlaybook(t *testing.T) {
	p := startPipeline(t)
	ctx := context.Background()

	p.webhook.Enqueue(criticalAlert("fp-payments-1", "payments",
		"Payment latency p99 breached for 15 minutes"))
	stats := p.ctrl.Tick(ctx)
	require.Equal(t, 1, stats.ReviewsOpened)

	decisionID := p.decisionID(t)
	pending, err := p.reviews.Get(ctx, decisionID)
	require.NoError(t, err)
	require.NotEmpty(t, pending.PlaybookID)

	t.Run("controller identity cannot review", func(t *testing.T) {
		_, err := p.reviews.Approve(ctx, decisionID, systemIdentity, "self serve")
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindInvalidReviewer), "got %v", err)
	})

	rec, err := p.reviews.Approve(ctx, decisionID, "sre-lee", "matches the runbook for this failure")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, rec.State)
	assert.Equal(t, "sre-lee", rec.Reviewer)
	require.NotNil(t, rec.DecidedAt)

	t.Run("playbook is promoted to active", func(t *testing.T) {
		released, err := p.playbooks.Get(ctx, pending.PlaybookID)
		require.NoError(t, err)
		assert.Equal(t, models.PlaybookActive, released.Status)
	})

	t.Run("execute request reaches the outcome channel", func(t *testing.T) {
		select {
		case out := <-p.reviews.Outcomes():
			assert.Equal(t, models.OutcomeExecuteRequest, out.Kind)
			assert.Equal(t, decisionID, out.DecisionID)
			assert.Equal(t, pending.PlaybookID, out.PlaybookID)
			assert.Equal(t, "sre-lee", out.Reviewer)
		default:
			t.Fatal("no outcome emitted for the approval")
		}
	})

	t.Run("repeat approval by the same reviewer is idempotent", func(t *testing.T) {
		again, err := p.reviews.Approve(ctx, decisionID, "sre-lee", "double click")
		require.NoError(t, err)
		assert.Equal(t, models.ReviewApproved, again.State)

		select {
		case out := <-p.reviews.Outcomes():
			t.Fatalf("repeat approval emitted a second outcome: %+v", out)
		default:
		}
	})

	t.Run("conflicting verdict is refused", func(t *testing.T) {
		_, err := p.reviews.Reject(ctx, decisionID, "sre-kim", "changed my mind")
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindReviewAlreadyClosed), "got %v", err)
	})
}

func TestPipelineRejectArchivesDraft(t *testing.T) {
	p := startPipeline(t)
	ctx := context.Background()

	p.webhook.Enqueue(criticalAlert("fp-search-1", "search",
		"Search index shard unavailable"))
	stats := p.ctrl.Tick(ctx)
	require.Equal(t, 1, stats.ReviewsOpened)

	decisionID := p.decisionID(t)
	pending, err := p.reviews.Get(ctx, decisionID)
	require.NoError(t, err)
	require.NotEmpty(t, pending.PlaybookID)

	rec, err := p.reviews.Reject(ctx, decisionID, "sre-kim", "wrong remediation for this failure")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewRejected, rec.State)
	assert.Equal(t, "wrong remediation for this failure", rec.Note)

	t.Run("generated draft is archived", func(t *testing.T) {
		archived, err := p.playbooks.Get(ctx, pending.PlaybookID)
		require.NoError(t, err)
		assert.Equal(t, models.PlaybookArchived, archived.Status)
	})

	t.Run("no execute request is emitted", func(t *testing.T) {
		select {
		case out := <-p.reviews.Outcomes():
			t.Fatalf("rejection emitted an outcome: %+v", out)
		default:
		}
	})
}

func TestPipelineMasksSecretsBeforePersisting(t *testing.T) {
	p := startPipeline(t)
	ctx := context.Background()

	p.webhook.Enqueue(criticalAlert("fp-orders-db-1", "orders-db",
		"Replica lag growing; connection string password: hunter2secret leaked in logs"))

	stats := p.ctrl.Tick(ctx)
	require.Zero(t, stats.Errors)
	require.Equal(t, 1, stats.Decisions)

	rows, err := p.graph.Query(ctx,
		"MATCH (a:Alert {id: $fp}) RETURN a.description AS description",
		map[string]any{"fp": "fp-orders-db-1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	description, ok := rows[0]["description"].(string)
	require.True(t, ok, "description is not a string: %v", rows[0]["description"])
	assert.NotContains(t, description, "hunter2secret",
		"raw credential must never reach the graph")
	assert.Contains(t, description, "__MASKED_PASSWORD__")
}
