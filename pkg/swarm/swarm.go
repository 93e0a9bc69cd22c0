// Package swarm runs the specialist investigation: one goroutine per
// registered specialist, joined by a coordinator that enforces the shared
// deadline. Every specialist yields exactly one result per investigation;
// a specialist that misses the deadline is represented by a synthetic
// TIMEOUT result so downstream fusion always sees the full roster.
package swarm

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// Specialist is one investigator in the swarm.
type Specialist interface {
	// ID identifies the specialist; results are ordered by it.
	ID() string

	// Investigate examines the cluster under the shared deadline. The
	// returned result's SpecialistID, Status, and Duration are filled in
	// by the orchestrator.
	Investigate(ctx context.Context, cluster models.AlertCluster) (models.SpecialistResult, error)
}

// Config contains the orchestrator settings.
type Config struct {
	// GlobalDeadline bounds one investigation when the caller's context
	// carries no earlier deadline.
	GlobalDeadline time.Duration `yaml:"global_deadline"`
}

// DefaultConfig returns the built-in orchestrator defaults.
func DefaultConfig() Config {
	return Config{GlobalDeadline: 30 * time.Second}
}

// Orchestrator coordinates the specialists. Safe for concurrent use; each
// Investigate call is independent.
type Orchestrator struct {
	specialists []Specialist
	cfg         Config
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given specialists,
// ordered by id. Panics if two specialists share an id (programming error
// in the wiring).
func NewOrchestrator(cfg Config, logger *slog.Logger, specialists ...Specialist) *Orchestrator {
	if cfg.GlobalDeadline <= 0 {
		cfg.GlobalDeadline = DefaultConfig().GlobalDeadline
	}
	ordered := make([]Specialist, len(specialists))
	copy(ordered, specialists)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID() < ordered[j].ID() })
	for i := 1; i < len(ordered); i++ {
		if ordered[i].ID() == ordered[i-1].ID() {
			panic("NewOrchestrator: duplicate specialist id " + ordered[i].ID())
		}
	}
	return &Orchestrator{specialists: ordered, cfg: cfg, logger: logger}
}

// Specialists returns the registered specialist ids in result order.
func (o *Orchestrator) Specialists() []string {
	ids := make([]string, len(o.specialists))
	for i, s := range o.specialists {
		ids[i] = s.ID()
	}
	return ids
}

type specialistOutcome struct {
	index  int
	result models.SpecialistResult
}

// Investigate fans the cluster out to every specialist and joins their
// results. The returned slice always has exactly one entry per registered
// specialist, ordered by specialist id regardless of completion order.
//
// When zero specialists succeed the results are still returned, together
// with an INVESTIGATION_DEGRADED error the caller is expected to absorb
// into a degraded decision rather than treat as fatal.
func (o *Orchestrator) Investigate(ctx context.Context, cluster models.AlertCluster) ([]models.SpecialistResult, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.GlobalDeadline)
		defer cancel()
	}

	// Buffered to specialist count so workers never block on send; closeCh
	// makes late arrivals drop their result instead of leaking a goroutine.
	resultsCh := make(chan specialistOutcome, len(o.specialists))
	closeCh := make(chan struct{})
	defer close(closeCh)

	var pending atomic.Int32
	pending.Store(int32(len(o.specialists)))

	started := time.Now()
	for i, s := range o.specialists {
		go func(idx int, sp Specialist) {
			res := o.runOne(ctx, sp, cluster)
			select {
			case resultsCh <- specialistOutcome{index: idx, result: res}:
			case <-closeCh:
				o.logger.Debug("Dropped late specialist result",
					"specialist", sp.ID(), "cluster_id", cluster.ID)
			}
		}(i, s)
	}

	results := make([]models.SpecialistResult, len(o.specialists))
	received := make([]bool, len(o.specialists))

collect:
	for pending.Load() > 0 {
		select {
		case out := <-resultsCh:
			results[out.index] = out.result
			received[out.index] = true
			pending.Add(-1)
		case <-ctx.Done():
			break collect
		}
	}

	for i, ok := range received {
		if !ok {
			results[i] = models.SpecialistResult{
				SpecialistID: o.specialists[i].ID(),
				Status:       models.SpecialistTimeout,
				ErrorKind:    string(faults.KindUpstreamUnavailable),
				Duration:     time.Since(started),
			}
		}
	}

	succeeded := 0
	for i := range results {
		if results[i].Succeeded() {
			succeeded++
		}
	}
	o.logger.Info("Investigation complete",
		"cluster_id", cluster.ID, "specialists", len(results),
		"succeeded", succeeded, "elapsed", time.Since(started))

	if succeeded == 0 {
		return results, faults.Newf(faults.KindInvestigationDegraded, "swarm.Investigate",
			"no specialist succeeded for cluster %s", cluster.ID)
	}
	return results, nil
}

// runOne executes a single specialist and maps its outcome onto the result
// status taxonomy. All outcomes come back as a result; no error escapes.
func (o *Orchestrator) runOne(ctx context.Context, sp Specialist, cluster models.AlertCluster) models.SpecialistResult {
	started := time.Now()
	res, err := sp.Investigate(ctx, cluster)
	res.SpecialistID = sp.ID()
	res.Duration = time.Since(started)

	switch {
	case err == nil:
		res.Status = models.SpecialistSuccess
	case ctx.Err() != nil:
		res.Status = models.SpecialistTimeout
		res.ErrorKind = string(faults.KindUpstreamUnavailable)
	default:
		res.Status = models.SpecialistError
		res.ErrorKind = string(faults.KindOf(err))
		o.logger.Warn("Specialist failed",
			"specialist", sp.ID(), "cluster_id", cluster.ID, "error", err)
	}
	return res
}
