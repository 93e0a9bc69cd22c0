// Package review runs the human gate on decisions: one PENDING record per
// decision, closed exactly once by an APPROVED or REJECTED verdict from a
// reviewer who is not the system identity that produced the decision.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
)

const (
	labelReview   = "Review"
	labelDecision = "Decision"

	relReviewedBy = "REVIEWED_BY"
)

// reviewGraph is the slice of the graph layer the review service needs.
type reviewGraph interface {
	UpsertNode(ctx context.Context, label, id string, props map[string]any) error
	UpsertRelation(ctx context.Context, rel graph.Relation) error
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// playbookGate is the slice of the playbook store driven by verdicts.
type playbookGate interface {
	Get(ctx context.Context, id string) (models.Playbook, error)
	Transition(ctx context.Context, id string, to models.PlaybookStatus, actor, note string) (models.Playbook, error)
}

// Service owns review records and their side effects.
type Service struct {
	graph     reviewGraph
	playbooks playbookGate
	logger    *slog.Logger

	// systemIdentity is the actor recorded on machine-made decisions.
	// Verdicts from it are refused: the system cannot review itself.
	systemIdentity string

	outcomes chan models.ReviewOutcome

	now   func() time.Time
	newID func() string
}

// NewService creates a review service. Panics if logger is nil.
func NewService(g reviewGraph, playbooks playbookGate, systemIdentity string, logger *slog.Logger) *Service {
	if logger == nil {
		panic("NewService: nil logger")
	}
	return &Service{
		graph:          g,
		playbooks:      playbooks,
		logger:         logger,
		systemIdentity: systemIdentity,
		outcomes:       make(chan models.ReviewOutcome, 64),
		now:            time.Now,
		newID:          uuid.NewString,
	}
}

// SetClock overrides the service clock. Replay pins it.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetIDSource overrides id generation. Replay pins it.
func (s *Service) SetIDSource(newID func() string) { s.newID = newID }

// Outcomes returns the channel the controller consumes execute requests
// from. Emission never blocks; an unread backlog beyond the buffer is
// dropped with a warning.
func (s *Service) Outcomes() <-chan models.ReviewOutcome { return s.outcomes }

// Open creates the PENDING review record for a decision, or returns the
// existing one. A decision has exactly one review for its lifetime.
func (s *Service) Open(ctx context.Context, decisionID, playbookID, escalationNote string) (models.ReviewRecord, error) {
	if decisionID == "" {
		return models.ReviewRecord{}, faults.New(faults.KindValidationFailed, "review.Open",
			"decision id is required")
	}
	if existing, err := s.find(ctx, decisionID); err == nil {
		return existing, nil
	} else if !faults.IsKind(err, faults.KindValidationFailed) {
		return models.ReviewRecord{}, err
	}

	rec := models.ReviewRecord{
		ID:             s.newID(),
		DecisionID:     decisionID,
		PlaybookID:     playbookID,
		State:          models.ReviewPending,
		RequestedAt:    s.now().UTC(),
		EscalationNote: escalationNote,
	}
	if err := s.persist(ctx, rec); err != nil {
		return models.ReviewRecord{}, err
	}
	if err := s.graph.UpsertRelation(ctx, graph.Relation{
		FromLabel: labelDecision, FromID: decisionID,
		Type:    relReviewedBy,
		ToLabel: labelReview, ToID: rec.ID,
	}); err != nil {
		return models.ReviewRecord{}, err
	}
	s.logger.Info("Review opened",
		"review_id", rec.ID, "decision_id", decisionID, "playbook_id", playbookID)
	return rec, nil
}

// Get returns the review record for a decision.
func (s *Service) Get(ctx context.Context, decisionID string) (models.ReviewRecord, error) {
	return s.find(ctx, decisionID)
}

// Approve closes the review with an APPROVED verdict, promotes a playbook
// waiting in PENDING_REVIEW to ACTIVE, and emits an EXECUTE_REQUEST.
func (s *Service) Approve(ctx context.Context, decisionID, reviewer, note string) (models.ReviewRecord, error) {
	return s.apply(ctx, decisionID, reviewer, note, models.ReviewApproved)
}

// Reject closes the review with a REJECTED verdict and archives a newly
// generated playbook, keeping the rejection note.
func (s *Service) Reject(ctx context.Context, decisionID, reviewer, note string) (models.ReviewRecord, error) {
	return s.apply(ctx, decisionID, reviewer, note, models.ReviewRejected)
}

func (s *Service) apply(ctx context.Context, decisionID, reviewer, note string, verdict models.ReviewState) (models.ReviewRecord, error) {
	if reviewer == "" {
		return models.ReviewRecord{}, faults.New(faults.KindValidationFailed, "review.apply",
			"reviewer identity is required")
	}
	if reviewer == s.systemIdentity {
		return models.ReviewRecord{}, faults.Newf(faults.KindInvalidReviewer, "review.apply",
			"%s cannot review its own decisions", reviewer)
	}

	rec, err := s.find(ctx, decisionID)
	if err != nil {
		return models.ReviewRecord{}, err
	}
	if rec.State.Closed() {
		if rec.State == verdict && rec.Reviewer == reviewer {
			return rec, nil
		}
		return models.ReviewRecord{}, faults.Newf(faults.KindReviewAlreadyClosed, "review.apply",
			"review for decision %s is already %s by %s", decisionID, rec.State, rec.Reviewer)
	}

	// Playbook side effects run before the record flips so a persistence
	// failure leaves the review retryable; the transitions involved are
	// idempotent on repeat.
	switch verdict {
	case models.ReviewApproved:
		if err := s.promote(ctx, rec.PlaybookID, reviewer); err != nil {
			return models.ReviewRecord{}, err
		}
	case models.ReviewRejected:
		if err := s.archiveGenerated(ctx, rec.PlaybookID, reviewer, note); err != nil {
			return models.ReviewRecord{}, err
		}
	}

	now := s.now().UTC()
	rec.State = verdict
	rec.Reviewer = reviewer
	rec.Note = note
	rec.DecidedAt = &now
	if err := s.persist(ctx, rec); err != nil {
		return models.ReviewRecord{}, err
	}
	s.logger.Info("Review closed",
		"review_id", rec.ID, "decision_id", decisionID, "state", verdict, "reviewer", reviewer)

	if verdict == models.ReviewApproved {
		s.emit(models.ReviewOutcome{
			Kind:       models.OutcomeExecuteRequest,
			DecisionID: rec.DecisionID,
			PlaybookID: rec.PlaybookID,
			Reviewer:   reviewer,
			At:         now,
		})
	}
	return rec, nil
}

// promote moves a playbook parked in PENDING_REVIEW to ACTIVE. Playbooks
// already ACTIVE (the known-playbook path) are left alone.
func (s *Service) promote(ctx context.Context, playbookID, reviewer string) error {
	if playbookID == "" {
		return nil
	}
	p, err := s.playbooks.Get(ctx, playbookID)
	if err != nil {
		return err
	}
	if p.Status != models.PlaybookPendingReview {
		return nil
	}
	_, err = s.playbooks.Transition(ctx, playbookID, models.PlaybookActive, reviewer, "")
	return err
}

// archiveGenerated demotes a rejected machine-drafted playbook, retaining
// the rejection note. Human-written playbooks keep their state.
func (s *Service) archiveGenerated(ctx context.Context, playbookID, reviewer, note string) error {
	if playbookID == "" {
		return nil
	}
	p, err := s.playbooks.Get(ctx, playbookID)
	if err != nil {
		return err
	}
	if p.Source != models.SourceLLMGenerated || p.Status != models.PlaybookPendingReview {
		return nil
	}
	_, err = s.playbooks.Transition(ctx, playbookID, models.PlaybookArchived, reviewer, note)
	return err
}

func (s *Service) emit(out models.ReviewOutcome) {
	select {
	case s.outcomes <- out:
	default:
		s.logger.Warn("Review outcome dropped, consumer is behind",
			"decision_id", out.DecisionID, "kind", out.Kind)
	}
}

func (s *Service) persist(ctx context.Context, rec models.ReviewRecord) error {
	props := map[string]any{
		"id":              rec.ID,
		"decision_id":     rec.DecisionID,
		"playbook_id":     rec.PlaybookID,
		"state":           string(rec.State),
		"reviewer":        rec.Reviewer,
		"note":            rec.Note,
		"escalation_note": rec.EscalationNote,
		"requested_at":    rec.RequestedAt.Unix(),
	}
	if rec.DecidedAt != nil {
		props["decided_at"] = rec.DecidedAt.Unix()
	} else {
		props["decided_at"] = int64(0)
	}
	return s.graph.UpsertNode(ctx, labelReview, rec.ID, props)
}

func (s *Service) find(ctx context.Context, decisionID string) (models.ReviewRecord, error) {
	rows, err := s.graph.Query(ctx,
		"MATCH (r:Review {decision_id: $decision_id}) RETURN properties(r) AS props",
		map[string]any{"decision_id": decisionID})
	if err != nil {
		return models.ReviewRecord{}, err
	}
	if len(rows) == 0 {
		return models.ReviewRecord{}, faults.Newf(faults.KindValidationFailed, "review.Get",
			"no review for decision %s", decisionID)
	}
	props, _ := rows[0]["props"].(map[string]any)
	return recordFromProps(props), nil
}

func recordFromProps(props map[string]any) models.ReviewRecord {
	rec := models.ReviewRecord{
		ID:             propString(props, "id"),
		DecisionID:     propString(props, "decision_id"),
		PlaybookID:     propString(props, "playbook_id"),
		State:          models.ReviewState(propString(props, "state")),
		Reviewer:       propString(props, "reviewer"),
		Note:           propString(props, "note"),
		EscalationNote: propString(props, "escalation_note"),
		RequestedAt:    time.Unix(propInt64(props, "requested_at"), 0).UTC(),
	}
	if at := propInt64(props, "decided_at"); at > 0 {
		t := time.Unix(at, 0).UTC()
		rec.DecidedAt = &t
	}
	return rec
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propInt64(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
