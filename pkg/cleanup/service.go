// Package cleanup enforces graph retention: stale alert clusters,
// decided incidents, and old execution records are pruned on a fixed
// cadence so the operational graph stays bounded. The audit trail is
// the durable history; nothing pruned here is lost to it.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// deleteBatch bounds one pruning statement. A backlog larger than the
// batch drains across passes instead of holding one long transaction.
const deleteBatch = 500

// graphPruner is the slice of the graph store the service needs.
type graphPruner interface {
	Write(ctx context.Context, cypher string, params map[string]any) (int, error)
}

// Config contains the retention windows. A zero window disables that
// pruning pass.
type Config struct {
	// ClusterRetention is how long alert clusters stay in the graph
	// after their last member alert.
	ClusterRetention time.Duration `yaml:"cluster_retention"`

	// DecisionRetention is how long decisions and their reviews stay.
	DecisionRetention time.Duration `yaml:"decision_retention"`

	// ExecutionRetention is how long execution records stay. Playbook
	// statistics already hold the folded outcome history.
	ExecutionRetention time.Duration `yaml:"execution_retention"`

	// Interval is the pause between pruning passes.
	Interval time.Duration `yaml:"interval"`
}

// DefaultConfig returns the built-in retention defaults.
func DefaultConfig() Config {
	return Config{
		ClusterRetention:   7 * 24 * time.Hour,
		DecisionRetention:  30 * 24 * time.Hour,
		ExecutionRetention: 90 * 24 * time.Hour,
		Interval:           time.Hour,
	}
}

// Service periodically enforces the retention windows. All pruning
// statements are idempotent and safe to run from multiple replicas.
type Service struct {
	cfg    Config
	graph  graphPruner
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// NewService creates a retention service. Panics if logger is nil.
func NewService(cfg Config, g graphPruner, logger *slog.Logger) *Service {
	if logger == nil {
		panic("cleanup.NewService: nil logger")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Service{
		cfg:    cfg,
		graph:  g,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the retention clock.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Start launches the background pruning loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Retention service started",
		"cluster_retention", s.cfg.ClusterRetention,
		"decision_retention", s.cfg.DecisionRetention,
		"execution_retention", s.cfg.ExecutionRetention,
		"interval", s.cfg.Interval)
}

// Stop signals the pruning loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Retention service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

// RunOnce executes a single pruning pass. The loop calls it on every
// tick; operators can call it directly for an immediate sweep.
func (s *Service) RunOnce(ctx context.Context) {
	s.runAll(ctx)
}

func (s *Service) runAll(ctx context.Context) {
	s.pruneClusters(ctx)
	s.pruneDecisions(ctx)
	s.pruneExecutions(ctx)
}

// pruneClusters removes alert clusters whose newest member alert is past
// the window, together with the member alerts themselves.
func (s *Service) pruneClusters(ctx context.Context) {
	if s.cfg.ClusterRetention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.cfg.ClusterRetention).UTC().Unix()
	count, err := s.graph.Write(ctx, `
		MATCH (cl:AlertCluster) WHERE cl.latest_at < $cutoff
		WITH cl, cl.id AS id LIMIT $batch
		OPTIONAL MATCH (a:Alert)-[:MEMBER_OF]->(cl)
		DETACH DELETE a, cl
		RETURN id`,
		map[string]any{"cutoff": cutoff, "batch": deleteBatch})
	if err != nil {
		s.logger.Error("Retention: cluster pruning failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Retention: pruned stale clusters", "count", count)
	}
}

// pruneDecisions removes decisions past the window along with the
// review records that closed them.
func (s *Service) pruneDecisions(ctx context.Context) {
	if s.cfg.DecisionRetention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.cfg.DecisionRetention).UTC().Unix()
	count, err := s.graph.Write(ctx, `
		MATCH (d:Decision) WHERE d.created_at < $cutoff
		WITH d, d.id AS id LIMIT $batch
		OPTIONAL MATCH (r:Review {decision_id: id})
		DETACH DELETE d, r
		RETURN id`,
		map[string]any{"cutoff": cutoff, "batch": deleteBatch})
	if err != nil {
		s.logger.Error("Retention: decision pruning failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Retention: pruned old decisions", "count", count)
	}
}

// pruneExecutions removes execution records past the window. The
// playbook statistics keep the aggregate.
func (s *Service) pruneExecutions(ctx context.Context) {
	if s.cfg.ExecutionRetention <= 0 {
		return
	}
	cutoff := s.now().Add(-s.cfg.ExecutionRetention).UTC().Unix()
	count, err := s.graph.Write(ctx, `
		MATCH (e:PlaybookExecution) WHERE e.completed_at < $cutoff
		WITH e, e.id AS id LIMIT $batch
		DETACH DELETE e
		RETURN id`,
		map[string]any{"cutoff": cutoff, "batch": deleteBatch})
	if err != nil {
		s.logger.Error("Retention: execution pruning failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("Retention: pruned old executions", "count", count)
	}
}
