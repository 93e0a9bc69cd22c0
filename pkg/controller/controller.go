// Package controller runs the steady-state incident loop: collect,
// investigate, decide, recommend, persist, then hand the decision to
// review or the auto-approval gate. One tick is one pass over the
// current clusters; review outcomes are consumed asynchronously so a
// tick never waits on a human.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/metrics"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/replay"
	"github.com/codeready-toolchain/strands/pkg/vector"
)

const (
	labelCluster  = "AlertCluster"
	labelAlert    = "Alert"
	labelDecision = "Decision"

	relMemberOf    = "MEMBER_OF"
	relDecidedFrom = "DECIDED_FROM"
)

type alertCollector interface {
	Collect(ctx context.Context) ([]models.AlertCluster, ingest.CycleStats, error)
}

type investigator interface {
	Investigate(ctx context.Context, cluster models.AlertCluster) ([]models.SpecialistResult, error)
}

type decider interface {
	Decide(cluster models.AlertCluster, results []models.SpecialistResult, degraded bool) models.DecisionCandidate
}

type recommender interface {
	Recommend(ctx context.Context, cluster models.AlertCluster, d models.DecisionCandidate) models.Recommendation
}

type reviewDesk interface {
	Open(ctx context.Context, decisionID, playbookID, escalationNote string) (models.ReviewRecord, error)
	Outcomes() <-chan models.ReviewOutcome
}

type graphWriter interface {
	UpsertNode(ctx context.Context, label, id string, props map[string]any) error
	UpsertRelation(ctx context.Context, rel graph.Relation) error
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type vectorIndex interface {
	Upsert(ctx context.Context, points []vector.Point) error
}

// Config contains the loop settings.
type Config struct {
	// TickInterval is the pause between passes.
	TickInterval time.Duration `yaml:"tick_interval"`

	// TickBudget caps one pass; the investigation deadline is what
	// remains of it. Defaults to the tick interval.
	TickBudget time.Duration `yaml:"tick_budget"`

	// SystemIdentity names the controller in audit entries and
	// auto-approval outcomes. It can never act as a reviewer.
	SystemIdentity string `yaml:"system_identity"`
}

// DefaultConfig returns the built-in loop defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:   30 * time.Second,
		SystemIdentity: "strands-controller",
	}
}

// Deps are the pipeline pieces the controller sequences. Collector,
// Swarm, Decider, Recommender, Reviews, and Graph are required.
// Embedder and Vectors enable resolution indexing, Trail the audit
// stream, Recorder the replay ledger; each may be nil.
type Deps struct {
	Collector   alertCollector
	Swarm       investigator
	Decider     decider
	Recommender recommender
	Reviews     reviewDesk
	Graph       graphWriter
	Embedder    embedder
	Vectors     vectorIndex
	Trail       *audit.Log
	Recorder    *replay.Recorder
	Metrics     *metrics.Set
}

// TickStats summarises one pass of the loop.
type TickStats struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Provider      string        `json:"provider,omitempty"`
	Clusters      int           `json:"clusters"`
	Decisions     int           `json:"decisions"`
	AutoApproved  int           `json:"auto_approved"`
	ReviewsOpened int           `json:"reviews_opened"`
	Errors        int           `json:"errors"`
	Skipped       bool          `json:"skipped,omitempty"`
	SkipReason    string        `json:"skip_reason,omitempty"`
}

// Health is the controller's live status for the health endpoint.
type Health struct {
	Running   bool      `json:"running"`
	Ticks     int       `json:"ticks"`
	LastTick  time.Time `json:"last_tick"`
	LastStats TickStats `json:"last_stats"`
}

// Controller owns the incident loop. Start spawns the tick loop and the
// review-outcome consumer; Stop waits for both.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	mu        sync.RWMutex
	ticks     int
	lastTick  time.Time
	lastStats TickStats

	now func() time.Time
}

// New validates the wiring and returns a stopped controller.
func New(cfg Config, deps Deps, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		panic("controller.New: nil logger")
	}
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.TickBudget <= 0 {
		cfg.TickBudget = cfg.TickInterval
	}
	if cfg.SystemIdentity == "" {
		cfg.SystemIdentity = def.SystemIdentity
	}

	switch {
	case deps.Collector == nil:
		return nil, faults.New(faults.KindValidationFailed, "controller.New", "missing collector")
	case deps.Swarm == nil:
		return nil, faults.New(faults.KindValidationFailed, "controller.New", "missing swarm orchestrator")
	case deps.Decider == nil:
		return nil, faults.New(faults.KindValidationFailed, "controller.New", "missing decision engine")
	case deps.Recommender == nil:
		return nil, faults.New(faults.KindValidationFailed, "controller.New", "missing recommender")
	case deps.Reviews == nil:
		return nil, faults.New(faults.KindValidationFailed, "controller.New", "missing review service")
	case deps.Graph == nil:
		return nil, faults.New(faults.KindValidationFailed, "controller.New", "missing graph store")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewSet()
	}

	return &Controller{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}, nil
}

// SetClock overrides the controller clock.
func (c *Controller) SetClock(now func() time.Time) { c.now = now }

// Start spawns the tick loop and the outcome consumer. Safe to call
// more than once; repeats are ignored.
func (c *Controller) Start(ctx context.Context) {
	if c.started {
		c.logger.Warn("Controller already started, ignoring duplicate Start call")
		return
	}
	c.started = true

	c.logger.Info("Starting controller",
		"tick_interval", c.cfg.TickInterval, "tick_budget", c.cfg.TickBudget,
		"system_identity", c.cfg.SystemIdentity)

	c.wg.Add(2)
	go c.runTicks(ctx)
	go c.consumeOutcomes(ctx)
}

// Stop signals both loops to finish and waits for them.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.logger.Info("Controller stopped")
}

// Health reports the loop status.
func (c *Controller) Health() Health {
	c.mu.RLock()
	defer c.mu.RUnlock()
	running := c.started
	select {
	case <-c.stopCh:
		running = false
	default:
	}
	return Health{
		Running:   running,
		Ticks:     c.ticks,
		LastTick:  c.lastTick,
		LastStats: c.lastStats,
	}
}

func (c *Controller) runTicks(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	// First pass immediately; waiting a full interval on startup would
	// just delay alerts already firing.
	c.Tick(ctx)
	for {
		select {
		case <-c.stopCh:
			c.logger.Info("Tick loop shutting down")
			return
		case <-ctx.Done():
			c.logger.Info("Context cancelled, tick loop shutting down")
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one collect-investigate-decide pass and returns its stats.
// The run loop calls it on the interval; operators can drive single
// passes through it.
func (c *Controller) Tick(ctx context.Context) TickStats {
	started := c.now()
	stats := TickStats{StartedAt: started.UTC()}

	tickCtx, cancel := context.WithDeadline(ctx, started.Add(c.cfg.TickBudget))
	defer cancel()

	clusters, cycle, err := c.deps.Collector.Collect(tickCtx)
	if err != nil {
		c.skipTick(&stats, err)
		c.finishTick(&stats, started)
		return stats
	}
	stats.Provider = cycle.Provider
	stats.Clusters = len(clusters)
	c.deps.Metrics.AlertsIngested.WithLabelValues(cycle.Provider).Add(float64(cycle.Accepted))
	c.deps.Metrics.AlertsRejected.Add(float64(cycle.Rejected))

	// Clusters arrive ordered by id; processing keeps that order so a
	// replay of the same alerts walks the same path.
	for _, cluster := range clusters {
		if tickCtx.Err() != nil {
			stats.Errors++
			c.logger.Warn("Tick budget exhausted, deferring remaining clusters",
				"processed", stats.Decisions, "remaining", stats.Clusters-stats.Decisions)
			break
		}
		c.processCluster(tickCtx, cluster, &stats)
	}

	c.deps.Metrics.TicksTotal.WithLabelValues("completed").Inc()
	c.deps.Metrics.ClustersProcessed.Add(float64(stats.Decisions))
	c.record(audit.Entry{
		EventType: audit.EventTickCompleted,
		Payload: map[string]any{
			"provider":      stats.Provider,
			"clusters":      stats.Clusters,
			"decisions":     stats.Decisions,
			"auto_approved": stats.AutoApproved,
			"errors":        stats.Errors,
		},
	})
	c.finishTick(&stats, started)
	c.logger.Info("Tick complete",
		"provider", stats.Provider, "clusters", stats.Clusters,
		"decisions", stats.Decisions, "auto_approved", stats.AutoApproved,
		"reviews_opened", stats.ReviewsOpened, "errors", stats.Errors,
		"duration", stats.Duration)
	return stats
}

// skipTick books a pass that produced nothing. A tick with no reachable
// provider is skipped, not failed: the next interval retries.
func (c *Controller) skipTick(stats *TickStats, err error) {
	stats.Skipped = true
	stats.SkipReason = string(faults.KindOf(err))
	c.deps.Metrics.TicksTotal.WithLabelValues("skipped").Inc()
	c.record(audit.Entry{
		EventType: audit.EventTickSkipped,
		Payload:   map[string]any{"reason": stats.SkipReason},
	})
	if faults.IsKind(err, faults.KindNoProviderAvailable) {
		c.logger.Warn("Tick skipped, no alert provider available", "error", err)
		return
	}
	c.logger.Error("Tick skipped, collection failed", "error", err)
}

func (c *Controller) finishTick(stats *TickStats, started time.Time) {
	stats.Duration = c.now().Sub(started)
	c.deps.Metrics.TickDuration.Observe(stats.Duration.Seconds())

	c.mu.Lock()
	c.ticks++
	c.lastTick = started.UTC()
	c.lastStats = *stats
	c.mu.Unlock()
}

// processCluster walks one cluster through investigate, decide,
// recommend, persist, and the review hand-off. A persistence failure
// stops the walk for this cluster: a decision nobody can query must not
// reach review.
func (c *Controller) processCluster(ctx context.Context, cluster models.AlertCluster, stats *TickStats) {
	investigated := c.now()
	results, invErr := c.deps.Swarm.Investigate(ctx, cluster)
	degraded := invErr != nil
	if degraded {
		c.logger.Warn("Investigation degraded",
			"cluster_id", cluster.ID, "error", invErr)
	}
	c.deps.Metrics.InvestigationDuration.Observe(c.now().Sub(investigated).Seconds())
	for _, r := range results {
		c.deps.Metrics.SpecialistResults.WithLabelValues(r.SpecialistID, string(r.Status)).Inc()
	}

	d := c.deps.Decider.Decide(cluster, results, degraded)
	stats.Decisions++
	c.deps.Metrics.DecisionsTotal.WithLabelValues(string(d.Type)).Inc()
	c.deps.Metrics.DecisionConfidence.Observe(d.Confidence)

	rec := c.deps.Recommender.Recommend(ctx, cluster, d)
	c.deps.Metrics.RecommendationsTotal.WithLabelValues(string(rec.Source)).Inc()

	auto := c.autoApprovable(d, rec)
	if err := c.persist(ctx, cluster, d, rec, auto); err != nil {
		stats.Errors++
		c.logger.Error("Persisting decision failed",
			"cluster_id", cluster.ID, "decision_id", d.ID, "error", err)
		return
	}

	c.record(audit.Entry{
		EventType:  audit.EventDecisionMade,
		DecisionID: d.ID,
		PlaybookID: rec.Playbook.ID,
		Payload: map[string]any{
			"cluster_id":            cluster.ID,
			"type":                  string(d.Type),
			"risk":                  string(d.Risk),
			"confidence":            d.Confidence,
			"degraded":              d.Degraded,
			"recommendation_source": string(rec.Source),
		},
	})
	if c.deps.Recorder != nil {
		c.deps.Recorder.Record(replayEvent(cluster, results, degraded, d, rec))
	}

	if auto {
		stats.AutoApproved++
		c.logger.Info("Decision auto-approved",
			"decision_id", d.ID, "playbook_id", rec.Playbook.ID,
			"confidence", d.Confidence, "risk", d.Risk)
		c.executeRequest(ctx, models.ReviewOutcome{
			Kind:       models.OutcomeExecuteRequest,
			DecisionID: d.ID,
			PlaybookID: rec.Playbook.ID,
			Reviewer:   c.cfg.SystemIdentity,
			At:         c.now().UTC(),
		})
		return
	}

	review, err := c.deps.Reviews.Open(ctx, d.ID, rec.Playbook.ID, escalationNote(d))
	if err != nil {
		stats.Errors++
		c.logger.Error("Opening review failed",
			"decision_id", d.ID, "error", err)
		return
	}
	stats.ReviewsOpened++
	c.record(audit.Entry{
		EventType:  audit.EventReviewOpened,
		DecisionID: d.ID,
		PlaybookID: rec.Playbook.ID,
		Payload:    map[string]any{"review_id": review.ID, "state": string(review.State)},
	})
}

// autoApprovable is the short-circuit gate: a known-ready playbook, full
// automation, and a policy verdict that allows it. Everything else
// waits for a human.
func (c *Controller) autoApprovable(d models.DecisionCandidate, rec models.Recommendation) bool {
	return rec.Status == models.RecommendationReady &&
		d.Automation == models.AutomationFull &&
		d.Type == models.DecisionAutoApprove
}

func escalationNote(d models.DecisionCandidate) string {
	switch {
	case d.Degraded:
		return "investigation degraded, verify the hypothesis manually"
	case d.Type == models.DecisionEscalate:
		return fmt.Sprintf("confidence %.2f below policy thresholds", d.Confidence)
	default:
		return ""
	}
}
