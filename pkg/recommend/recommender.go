package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// playbookCatalog is the slice of the playbook store the recommender uses.
type playbookCatalog interface {
	FindActive(ctx context.Context, patternType, servicePattern string) ([]models.Playbook, error)
	Create(ctx context.Context, p models.Playbook) (models.Playbook, error)
}

// playbookDrafter turns decision context into a playbook draft.
type playbookDrafter interface {
	Draft(ctx context.Context, patternType, service string, d models.DecisionCandidate) (models.Playbook, error)
}

// Recommender resolves a decision to a playbook. Lookup failures degrade
// to generation and generation failures degrade to the synthetic
// fallback, so a recommendation always comes back.
type Recommender struct {
	catalog playbookCatalog
	drafter playbookDrafter
	logger  *slog.Logger

	now func() time.Time
}

// NewRecommender creates a recommender. Panics if logger is nil.
func NewRecommender(catalog playbookCatalog, drafter playbookDrafter, logger *slog.Logger) *Recommender {
	if logger == nil {
		panic("NewRecommender: nil logger")
	}
	return &Recommender{catalog: catalog, drafter: drafter, logger: logger, now: time.Now}
}

// SetClock overrides the recommender clock. Replay pins it.
func (r *Recommender) SetClock(now func() time.Time) { r.now = now }

// Recommend maps a decision to a playbook. Known ACTIVE playbooks win by
// adaptive score; otherwise a draft is generated and parked in review;
// if that fails too, a synthetic fallback carries the specialist
// suggestions forward.
func (r *Recommender) Recommend(ctx context.Context, cluster models.AlertCluster, d models.DecisionCandidate) models.Recommendation {
	patternType := PatternType(d)
	rec := models.Recommendation{
		DecisionID:  d.ID,
		ClusterID:   cluster.ID,
		PatternType: patternType,
		Service:     cluster.Service,
		CreatedAt:   r.now().UTC(),
	}

	candidates, err := r.catalog.FindActive(ctx, patternType, cluster.Service)
	if err != nil {
		r.logger.Warn("Playbook lookup failed, falling through to generation",
			"decision_id", d.ID, "pattern_type", patternType, "error", err)
	}
	if best, score, ok := pickBest(d.Confidence, candidates); ok {
		rec.Playbook = best
		rec.Source = models.RecommendationKnown
		rec.Status = models.RecommendationReady
		rec.Score = score
		r.logger.Info("Known playbook recommended",
			"decision_id", d.ID, "playbook_id", best.ID, "score", score)
		return rec
	}

	draft, err := r.drafter.Draft(ctx, patternType, cluster.Service, d)
	if err == nil {
		persisted, createErr := r.catalog.Create(ctx, draft)
		if createErr == nil {
			rec.Playbook = persisted
			rec.Source = models.RecommendationGenerated
			rec.Status = models.RecommendationRequiresApproval
			r.logger.Info("Generated playbook parked for review",
				"decision_id", d.ID, "playbook_id", persisted.ID)
			return rec
		}
		err = createErr
	}
	r.logger.Warn("Playbook generation failed, using fallback actions",
		"decision_id", d.ID, "pattern_type", patternType, "error", err)

	rec.Playbook = syntheticPlaybook(patternType, cluster.Service, d)
	rec.Source = models.RecommendationFallback
	rec.Status = models.RecommendationRequiresApproval
	return rec
}

// pickBest returns the highest-scoring candidate. Ties break on the most
// recent execution; candidates arrive ordered by id, which makes the
// scan deterministic.
func pickBest(confidence float64, candidates []models.Playbook) (models.Playbook, float64, bool) {
	if len(candidates) == 0 {
		return models.Playbook{}, 0, false
	}
	best := candidates[0]
	bestScore := adaptiveScore(confidence, best)
	for _, c := range candidates[1:] {
		score := adaptiveScore(confidence, c)
		switch {
		case score > bestScore:
			best, bestScore = c, score
		case score == bestScore && lastExecuted(c).After(lastExecuted(best)):
			best, bestScore = c, score
		}
	}
	return best, bestScore, true
}

// adaptiveScore favours playbooks that have repeatedly worked:
// confidence x success rate x ln(1 + executions).
func adaptiveScore(confidence float64, p models.Playbook) float64 {
	return confidence * p.Stats.SuccessRate() * math.Log1p(float64(p.Stats.TotalExecutions))
}

func lastExecuted(p models.Playbook) time.Time {
	if p.Stats.LastExecutedAt == nil {
		return time.Time{}
	}
	return *p.Stats.LastExecutedAt
}

// syntheticPlaybook wraps the specialist-suggested actions so the review
// surface always has concrete next steps. Never persisted.
func syntheticPlaybook(patternType, service string, d models.DecisionCandidate) models.Playbook {
	steps := make([]models.PlaybookStep, 0, len(d.SuggestedActions)+1)
	for i, action := range d.SuggestedActions {
		steps = append(steps, models.PlaybookStep{Index: i, Title: action})
	}
	if len(steps) == 0 {
		steps = append(steps, models.PlaybookStep{
			Index: 0,
			Title: "Escalate to the on-call engineer",
		})
	}
	return models.Playbook{
		Title:          fmt.Sprintf("Fallback actions for %s", service),
		Description:    d.Hypothesis,
		PatternType:    patternType,
		ServicePattern: service,
		Steps:          steps,
		Automation:     models.AutomationManual,
		Risk:           d.Risk,
		Source:         models.SourceHybrid,
		Status:         models.PlaybookDraft,
		Version:        "0.0.0",
	}
}
