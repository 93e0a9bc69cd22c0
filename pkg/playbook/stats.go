package playbook

import (
	"context"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// casAttempts bounds the optimistic-write retry loop for statistics.
const casAttempts = 5

// advanceStats folds one execution into the running statistics using
// Welford's online algorithm, so mean and variance stay numerically stable
// without keeping the raw durations.
func advanceStats(s models.PlaybookStats, outcome models.ExecutionOutcome, durationS float64, at time.Time) models.PlaybookStats {
	s.TotalExecutions++
	if outcome == models.OutcomeSuccess {
		s.SuccessCount++
	} else {
		s.FailureCount++
	}
	delta := durationS - s.MeanDuration
	s.MeanDuration += delta / float64(s.TotalExecutions)
	s.M2Duration += delta * (durationS - s.MeanDuration)
	t := at.UTC()
	s.LastExecutedAt = &t
	return s
}

// RecordExecution folds an execution outcome into the playbook's
// statistics and persists the execution record. Guarantees:
//
//   - a previously recorded execution id is a no-op, so retries after a
//     partial failure never double-count;
//   - the statistics write is a compare-and-set keyed on the current
//     total_executions, retried up to casAttempts times; exhaustion
//     surfaces as UPSTREAM_UNAVAILABLE wrapping the conflict.
func (s *Store) RecordExecution(ctx context.Context, exec models.PlaybookExecution) error {
	if exec.ID == "" || exec.PlaybookID == "" {
		return faults.New(faults.KindValidationFailed, "playbook.RecordExecution",
			"execution id and playbook id are required")
	}

	rows, err := s.graph.Query(ctx,
		"MATCH (e:Execution {id: $id}) RETURN e.id AS id",
		map[string]any{"id": exec.ID})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		s.logger.Debug("Execution already recorded", "execution_id", exec.ID)
		return nil
	}

	at := exec.CompletedAt
	if at.IsZero() {
		at = s.now()
	}

	for attempt := 1; attempt <= casAttempts; attempt++ {
		p, err := s.fetch(ctx, exec.PlaybookID)
		if err != nil {
			return err
		}
		next := advanceStats(p.Stats, exec.Outcome, exec.DurationS, at)
		ok, err := s.graph.CompareAndSet(ctx, labelPlaybook, p.ID,
			"total_executions", int64(p.Stats.TotalExecutions), statsProps(next))
		if err != nil {
			return err
		}
		if ok {
			s.invalidate(exec.PlaybookID)
			return s.persistExecution(ctx, exec, at)
		}
		s.logger.Debug("Stats write lost an update race",
			"playbook_id", exec.PlaybookID, "attempt", attempt)
		if attempt < casAttempts {
			time.Sleep(time.Duration(attempt) * 20 * time.Millisecond)
		}
	}

	conflict := faults.Newf(faults.KindOptimisticConflict, "playbook.RecordExecution",
		"stats update for %s lost %d consecutive races", exec.PlaybookID, casAttempts)
	return faults.Wrap(faults.KindUpstreamUnavailable, "playbook.RecordExecution",
		"stats update exhausted retries", conflict)
}

func (s *Store) persistExecution(ctx context.Context, exec models.PlaybookExecution, at time.Time) error {
	props := map[string]any{
		"id":              exec.ID,
		"playbook_id":     exec.PlaybookID,
		"decision_id":     exec.DecisionID,
		"outcome":         string(exec.Outcome),
		"duration_s":      exec.DurationS,
		"steps_attempted": int64(exec.StepsAttempted),
		"steps_completed": int64(exec.StepsCompleted),
		"error":           exec.Error,
		"feedback":        exec.Feedback,
		"completed_at":    at.UTC().Unix(),
	}
	if !exec.StartedAt.IsZero() {
		props["started_at"] = exec.StartedAt.UTC().Unix()
	}
	if err := s.graph.UpsertNode(ctx, labelExecution, exec.ID, props); err != nil {
		return err
	}
	if err := s.graph.UpsertRelation(ctx, graph.Relation{
		FromLabel: labelExecution, FromID: exec.ID,
		Type:    relExecutedBy,
		ToLabel: labelPlaybook, ToID: exec.PlaybookID,
	}); err != nil {
		return err
	}
	s.logger.Info("Execution recorded",
		"execution_id", exec.ID, "playbook_id", exec.PlaybookID,
		"outcome", exec.Outcome, "duration_s", exec.DurationS)
	return nil
}
