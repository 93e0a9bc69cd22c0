package playbook

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

func TestAdvanceStats_MeanAndVariance(t *testing.T) {
	at := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	var s models.PlaybookStats
	for _, d := range []float64{10, 12, 15, 11, 14} {
		s = advanceStats(s, models.OutcomeSuccess, d, at)
	}

	assert.Equal(t, 5, s.TotalExecutions)
	assert.Equal(t, 5, s.SuccessCount)
	assert.Equal(t, 0, s.FailureCount)
	assert.InDelta(t, 12.4, s.MeanDuration, 1e-9)
	assert.InDelta(t, 4.3, s.Variance(), 1e-9)
	assert.InDelta(t, 1.0, s.SuccessRate(), 1e-9)
	require.NotNil(t, s.LastExecutedAt)
	assert.Equal(t, at, *s.LastExecutedAt)
}

func TestAdvanceStats_CountsByOutcome(t *testing.T) {
	at := time.Now()
	var s models.PlaybookStats
	s = advanceStats(s, models.OutcomeSuccess, 10, at)
	s = advanceStats(s, models.OutcomeFailure, 10, at)
	s = advanceStats(s, models.OutcomePartial, 10, at)
	s = advanceStats(s, models.OutcomeRolledBack, 10, at)

	assert.Equal(t, 4, s.TotalExecutions)
	assert.Equal(t, 1, s.SuccessCount)
	assert.Equal(t, 3, s.FailureCount)
	assert.Equal(t, s.TotalExecutions, s.SuccessCount+s.FailureCount)
}

func TestAdvanceStats_SingleExecutionHasZeroVariance(t *testing.T) {
	s := advanceStats(models.PlaybookStats{}, models.OutcomeSuccess, 42, time.Now())
	assert.InDelta(t, 42, s.MeanDuration, 1e-9)
	assert.Zero(t, s.Variance())
}

func TestAdvanceStats_MatchesBatchComputation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	at := time.Now()

	const n = 100_000
	durations := make([]float64, n)
	var s models.PlaybookStats
	for i := range durations {
		durations[i] = 20 + 40*rng.Float64()
		s = advanceStats(s, models.OutcomeSuccess, durations[i], at)
	}

	var sum float64
	for _, d := range durations {
		sum += d
	}
	mean := sum / n
	var sq float64
	for _, d := range durations {
		sq += (d - mean) * (d - mean)
	}
	variance := sq / (n - 1)

	assert.InEpsilon(t, mean, s.MeanDuration, 1e-9)
	assert.InEpsilon(t, variance, s.Variance(), 1e-9)
}

func execution(id string, durationS float64, outcome models.ExecutionOutcome) models.PlaybookExecution {
	return models.PlaybookExecution{
		ID:          id,
		PlaybookID:  "pb-1",
		DecisionID:  "d-1",
		Outcome:     outcome,
		DurationS:   durationS,
		CompletedAt: time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC),
	}
}

func TestStore_RecordExecution(t *testing.T) {
	t.Run("updates stats and persists the record", func(t *testing.T) {
		g := newFakeGraph()
		s := newTestStore(g)
		insertPlaybook(t, g, basePlaybook("pb-1", models.PlaybookActive))

		require.NoError(t, s.RecordExecution(context.Background(), execution("ex-1", 30, models.OutcomeSuccess)))

		node := g.node(labelPlaybook, "pb-1")
		assert.Equal(t, int64(1), node["total_executions"])
		assert.Equal(t, int64(1), node["success_count"])
		assert.Equal(t, 30.0, node["mean_duration_s"])

		exec := g.node(labelExecution, "ex-1")
		require.NotNil(t, exec)
		assert.Equal(t, "SUCCESS", exec["outcome"])
		assert.Equal(t, "d-1", exec["decision_id"])
		assert.Equal(t, 1, g.relationCount(relExecutedBy))
	})

	t.Run("repeated execution id is a no-op", func(t *testing.T) {
		g := newFakeGraph()
		s := newTestStore(g)
		insertPlaybook(t, g, basePlaybook("pb-1", models.PlaybookActive))

		exec := execution("ex-1", 30, models.OutcomeSuccess)
		require.NoError(t, s.RecordExecution(context.Background(), exec))
		require.NoError(t, s.RecordExecution(context.Background(), exec))

		assert.Equal(t, int64(1), g.node(labelPlaybook, "pb-1")["total_executions"])
		assert.Equal(t, 1, g.casCalls)
		assert.Equal(t, 1, g.relationCount(relExecutedBy))
	})

	t.Run("failure outcomes count against the playbook", func(t *testing.T) {
		g := newFakeGraph()
		s := newTestStore(g)
		insertPlaybook(t, g, basePlaybook("pb-1", models.PlaybookActive))

		require.NoError(t, s.RecordExecution(context.Background(), execution("ex-1", 30, models.OutcomeFailure)))

		node := g.node(labelPlaybook, "pb-1")
		assert.Equal(t, int64(1), node["total_executions"])
		assert.Equal(t, int64(0), node["success_count"])
		assert.Equal(t, int64(1), node["failure_count"])
	})

	t.Run("lost races retry until the write lands", func(t *testing.T) {
		g := newFakeGraph()
		s := newTestStore(g)
		insertPlaybook(t, g, basePlaybook("pb-1", models.PlaybookActive))
		g.casDenies = 2

		require.NoError(t, s.RecordExecution(context.Background(), execution("ex-1", 30, models.OutcomeSuccess)))
		assert.Equal(t, 3, g.casCalls)
		assert.Equal(t, int64(1), g.node(labelPlaybook, "pb-1")["total_executions"])
	})

	t.Run("exhausted retries surface as upstream unavailable", func(t *testing.T) {
		g := newFakeGraph()
		s := newTestStore(g)
		insertPlaybook(t, g, basePlaybook("pb-1", models.PlaybookActive))
		g.casDenies = casAttempts

		err := s.RecordExecution(context.Background(), execution("ex-1", 30, models.OutcomeSuccess))
		require.Error(t, err)
		assert.Equal(t, faults.KindUpstreamUnavailable, faults.KindOf(err))
		assert.True(t, faults.IsKind(err, faults.KindOptimisticConflict))
		assert.Equal(t, casAttempts, g.casCalls)
		assert.Nil(t, g.node(labelExecution, "ex-1"))
		assert.Zero(t, g.relationCount(relExecutedBy))
	})

	t.Run("missing ids are rejected", func(t *testing.T) {
		g := newFakeGraph()
		s := newTestStore(g)

		err := s.RecordExecution(context.Background(), models.PlaybookExecution{ID: "ex-1"})
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
	})
}

func TestStore_RecordExecution_SequenceRoundTrips(t *testing.T) {
	g := newFakeGraph()
	s := newTestStore(g)
	insertPlaybook(t, g, basePlaybook("pb-1", models.PlaybookActive))

	for i, d := range []float64{10, 12, 15, 11, 14} {
		exec := execution(fmt.Sprintf("ex-%d", i), d, models.OutcomeSuccess)
		require.NoError(t, s.RecordExecution(context.Background(), exec))
	}

	got, err := s.Get(context.Background(), "pb-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stats.TotalExecutions)
	assert.Equal(t, 5, got.Stats.SuccessCount)
	assert.InDelta(t, 12.4, got.Stats.MeanDuration, 1e-9)
	assert.InDelta(t, 4.3, got.Stats.Variance(), 1e-9)
	require.NotNil(t, got.Stats.LastExecutedAt)
	assert.Equal(t, time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC), *got.Stats.LastExecutedAt)
}
