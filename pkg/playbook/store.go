// Package playbook is the system of record for remediation playbooks: the
// lifecycle state machine, semantic versioning with linked predecessors,
// and the execution statistics accumulator. All state lives in the graph
// store; a read-mostly cache fronts it with invalidations broadcast on a
// change channel.
package playbook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
)

const (
	labelPlaybook  = "Playbook"
	labelExecution = "Execution"
	labelService   = "Service"

	relTargets         = "TARGETS"
	relPreviousVersion = "PREVIOUS_VERSION_OF"
	relExecutedBy      = "EXECUTED_BY"
)

// graphStore is the slice of the graph layer the playbook store needs.
type graphStore interface {
	UpsertNode(ctx context.Context, label, id string, props map[string]any) error
	UpsertRelation(ctx context.Context, rel graph.Relation) error
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	CompareAndSet(ctx context.Context, label, id, guardField string, expected any, props map[string]any) (bool, error)
}

// Store manages playbooks. Safe for concurrent use.
type Store struct {
	graph  graphStore
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]models.Playbook

	changes chan string

	now   func() time.Time
	newID func() string
}

// NewStore creates a playbook store. Panics if logger is nil (programming
// error in the wiring).
func NewStore(g graphStore, logger *slog.Logger) *Store {
	if logger == nil {
		panic("NewStore: nil logger")
	}
	return &Store{
		graph:   g,
		logger:  logger,
		cache:   make(map[string]models.Playbook),
		changes: make(chan string, 64),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SetClock overrides the store clock. Replay pins it.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// SetIDSource overrides id generation. Replay pins it.
func (s *Store) SetIDSource(newID func() string) { s.newID = newID }

// Changes returns the invalidation channel. Every persisted mutation
// broadcasts the playbook id; slow consumers miss events rather than block
// the store.
func (s *Store) Changes() <-chan string { return s.changes }

// Create persists a new playbook. Status defaults to DRAFT and may only be
// DRAFT or PENDING_REVIEW at creation; generated drafts enter at
// PENDING_REVIEW directly.
func (s *Store) Create(ctx context.Context, p models.Playbook) (models.Playbook, error) {
	if p.Title == "" || p.PatternType == "" || p.ServicePattern == "" {
		return models.Playbook{}, faults.New(faults.KindValidationFailed, "playbook.Create",
			"title, pattern type, and service pattern are required")
	}
	if len(p.Steps) == 0 {
		return models.Playbook{}, faults.New(faults.KindValidationFailed, "playbook.Create",
			"a playbook needs at least one step")
	}
	switch p.Status {
	case "":
		p.Status = models.PlaybookDraft
	case models.PlaybookDraft, models.PlaybookPendingReview:
	default:
		return models.Playbook{}, faults.Newf(faults.KindValidationFailed, "playbook.Create",
			"cannot create a playbook in status %s", p.Status)
	}
	if p.Version == "" {
		p.Version = "1.0.0"
	} else if _, _, _, err := parseVersion(p.Version); err != nil {
		return models.Playbook{}, err
	}
	if p.Source == "" {
		p.Source = models.SourceHumanWritten
	}
	if p.ID == "" {
		p.ID = s.newID()
	}
	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.persist(ctx, p); err != nil {
		return models.Playbook{}, err
	}
	if err := s.graph.UpsertRelation(ctx, graph.Relation{
		FromLabel: labelPlaybook, FromID: p.ID,
		Type:    relTargets,
		ToLabel: labelService, ToID: p.ServicePattern,
	}); err != nil {
		return models.Playbook{}, err
	}
	s.put(p)
	s.logger.Info("Playbook created",
		"playbook_id", p.ID, "status", p.Status, "version", p.Version, "source", p.Source)
	return p, nil
}

// Get returns a playbook by id, from cache when possible.
func (s *Store) Get(ctx context.Context, id string) (models.Playbook, error) {
	s.mu.RLock()
	cached, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}
	p, err := s.fetch(ctx, id)
	if err != nil {
		return models.Playbook{}, err
	}
	s.put(p)
	return p, nil
}

// FindActive lists ACTIVE playbooks matching the lookup key, ordered by id.
func (s *Store) FindActive(ctx context.Context, patternType, servicePattern string) ([]models.Playbook, error) {
	rows, err := s.graph.Query(ctx,
		`MATCH (p:Playbook {pattern_type: $pattern_type, service_pattern: $service_pattern, status: $status})
		 RETURN properties(p) AS props ORDER BY p.id`,
		map[string]any{
			"pattern_type":    patternType,
			"service_pattern": servicePattern,
			"status":          string(models.PlaybookActive),
		})
	if err != nil {
		return nil, err
	}
	out := make([]models.Playbook, 0, len(rows))
	for _, row := range rows {
		props, _ := row["props"].(map[string]any)
		p, err := fromProps(props)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// List returns every playbook, ordered by id. Status filters to one
// lifecycle state when non-empty.
func (s *Store) List(ctx context.Context, status models.PlaybookStatus) ([]models.Playbook, error) {
	cypher := `MATCH (p:Playbook) RETURN properties(p) AS props ORDER BY p.id`
	params := map[string]any{}
	if status != "" {
		cypher = `MATCH (p:Playbook {status: $status}) RETURN properties(p) AS props ORDER BY p.id`
		params["status"] = string(status)
	}
	rows, err := s.graph.Query(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]models.Playbook, 0, len(rows))
	for _, row := range rows {
		props, _ := row["props"].(map[string]any)
		p, err := fromProps(props)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Update persists content changes to a DRAFT. Status and statistics are
// not touched; those move through Transition and RecordExecution.
func (s *Store) Update(ctx context.Context, p models.Playbook, actor string) (models.Playbook, error) {
	current, err := s.fetch(ctx, p.ID)
	if err != nil {
		return models.Playbook{}, err
	}
	if current.Status != models.PlaybookDraft {
		return models.Playbook{}, faults.Newf(faults.KindIllegalStateTransition, "playbook.Update",
			"only drafts are editable, %s is %s", p.ID, current.Status)
	}
	p.Status = current.Status
	p.Stats = current.Stats
	p.CreatedAt = current.CreatedAt
	p.CreatedBy = current.CreatedBy
	p.UpdatedAt = s.now().UTC()
	p.UpdatedBy = actor

	if err := s.persist(ctx, p); err != nil {
		return models.Playbook{}, err
	}
	s.invalidate(p.ID)
	return p, nil
}

// Transition moves a playbook through its lifecycle. Same-status calls are
// no-ops; anything the state machine forbids is ILLEGAL_STATE_TRANSITION.
// Approving a version with a predecessor deprecates the predecessor.
func (s *Store) Transition(ctx context.Context, id string, to models.PlaybookStatus, actor, note string) (models.Playbook, error) {
	p, err := s.fetch(ctx, id)
	if err != nil {
		return models.Playbook{}, err
	}
	if p.Status == to {
		return p, nil
	}
	if !CanTransition(p.Status, to) {
		return models.Playbook{}, faults.Newf(faults.KindIllegalStateTransition, "playbook.Transition",
			"cannot move %s from %s to %s", id, p.Status, to)
	}

	now := s.now().UTC()
	from := p.Status
	p.Status = to
	p.UpdatedAt = now
	p.UpdatedBy = actor
	if to == models.PlaybookActive {
		p.ApprovedAt = &now
		p.ApprovedBy = actor
	}
	if to == models.PlaybookArchived && note != "" {
		p.RejectionNote = note
	}

	if err := s.persist(ctx, p); err != nil {
		return models.Playbook{}, err
	}
	s.invalidate(id)
	s.logger.Info("Playbook transitioned",
		"playbook_id", id, "from", from, "to", to, "actor", actor)

	// A freshly approved version displaces its predecessor.
	if to == models.PlaybookActive && p.PreviousVersionID != "" {
		if _, err := s.Transition(ctx, p.PreviousVersionID, models.PlaybookDeprecated, actor, ""); err != nil {
			s.logger.Warn("Predecessor deprecation failed",
				"playbook_id", id, "previous_version", p.PreviousVersionID, "error", err)
		}
	}
	return p, nil
}

// NewMajorVersion spawns a DRAFT succeeding an ACTIVE playbook, with the
// major version bumped, fresh statistics, and a PREVIOUS_VERSION_OF link.
func (s *Store) NewMajorVersion(ctx context.Context, id, actor string) (models.Playbook, error) {
	current, err := s.fetch(ctx, id)
	if err != nil {
		return models.Playbook{}, err
	}
	if current.Status != models.PlaybookActive {
		return models.Playbook{}, faults.Newf(faults.KindIllegalStateTransition, "playbook.NewMajorVersion",
			"new versions spawn from ACTIVE playbooks, %s is %s", id, current.Status)
	}
	version, err := NextVersion(current.Version, ChangeMajor)
	if err != nil {
		return models.Playbook{}, err
	}

	now := s.now().UTC()
	draft := current
	draft.ID = s.newID()
	draft.Status = models.PlaybookDraft
	draft.Version = version
	draft.PreviousVersionID = current.ID
	draft.Stats = models.PlaybookStats{}
	draft.CreatedAt = now
	draft.CreatedBy = actor
	draft.UpdatedAt = now
	draft.UpdatedBy = actor
	draft.ApprovedAt = nil
	draft.ApprovedBy = ""
	draft.RejectionNote = ""

	if err := s.persist(ctx, draft); err != nil {
		return models.Playbook{}, err
	}
	if err := s.graph.UpsertRelation(ctx, graph.Relation{
		FromLabel: labelPlaybook, FromID: draft.ID,
		Type:    relPreviousVersion,
		ToLabel: labelPlaybook, ToID: current.ID,
	}); err != nil {
		return models.Playbook{}, err
	}
	s.put(draft)
	s.logger.Info("Playbook version spawned",
		"playbook_id", draft.ID, "previous_version", current.ID, "version", version)
	return draft, nil
}

func (s *Store) persist(ctx context.Context, p models.Playbook) error {
	props, err := nodeProps(p)
	if err != nil {
		return err
	}
	return s.graph.UpsertNode(ctx, labelPlaybook, p.ID, props)
}

func (s *Store) fetch(ctx context.Context, id string) (models.Playbook, error) {
	rows, err := s.graph.Query(ctx,
		"MATCH (p:Playbook {id: $id}) RETURN properties(p) AS props",
		map[string]any{"id": id})
	if err != nil {
		return models.Playbook{}, err
	}
	if len(rows) == 0 {
		return models.Playbook{}, faults.Newf(faults.KindValidationFailed, "playbook.Get",
			"playbook %s not found", id)
	}
	props, _ := rows[0]["props"].(map[string]any)
	return fromProps(props)
}

func (s *Store) put(p models.Playbook) {
	s.mu.Lock()
	s.cache[p.ID] = p
	s.mu.Unlock()
	s.broadcast(p.ID)
}

func (s *Store) invalidate(id string) {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	s.broadcast(id)
}

func (s *Store) broadcast(id string) {
	select {
	case s.changes <- id:
	default:
	}
}
