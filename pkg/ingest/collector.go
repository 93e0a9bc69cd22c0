package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// ClusterTypeServiceWindow marks clusters formed by the default grouping
// rule: same service, same five-minute window.
const ClusterTypeServiceWindow = "SERVICE_WINDOW"

// clusterWindow is the truncation step for grouping alerts in a cycle.
const clusterWindow = 5 * time.Minute

// CycleStats summarises one collection cycle for logs and metrics.
type CycleStats struct {
	Provider   string `json:"provider"`
	Raw        int    `json:"raw"`
	Accepted   int    `json:"accepted"`
	Rejected   int    `json:"rejected"`
	Duplicates int    `json:"duplicates"`
	Clusters   int    `json:"clusters"`
}

// Collector polls providers in priority order and produces the cycle's
// alert clusters.
type Collector struct {
	registry   *Registry
	normalizer *Normalizer
	logger     *slog.Logger

	// now is replaceable for deterministic replay and tests.
	now func() time.Time
}

// NewCollector creates a collector over the given provider registry.
func NewCollector(registry *Registry, normalizer *Normalizer, logger *slog.Logger) *Collector {
	return &Collector{
		registry:   registry,
		normalizer: normalizer,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the collector's clock. Replay uses this to pin
// ReceivedAt timestamps to the historical record.
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// Collect runs one cycle: probe the providers, normalise, deduplicate,
// cluster. Returns NO_PROVIDER_AVAILABLE if every provider fails; a
// malformed individual alert only increments the rejected count.
func (c *Collector) Collect(ctx context.Context) ([]models.AlertCluster, CycleStats, error) {
	var stats CycleStats
	now := c.now()

	raws, recipe, polled, err := c.poll(ctx)
	if err != nil {
		return nil, stats, err
	}
	stats.Provider = polled.Name()
	stats.Raw = len(raws)

	accepted := make([]models.NormalizedAlert, 0, len(raws))
	for _, raw := range raws {
		a := c.normalizer.Normalize(raw, recipe, polled.Name(), now)
		if a.ValidationStatus == models.ValidationRejected {
			stats.Rejected++
			c.logger.Warn("Rejected malformed alert",
				"provider", polled.Name(), "reason", a.RejectionReason)
			continue
		}
		accepted = append(accepted, a)
	}

	kept, dropped := c.normalizer.Deduplicate(accepted, now)
	stats.Duplicates = dropped
	stats.Accepted = len(kept)

	clusters := clusterAlerts(kept)
	stats.Clusters = len(clusters)
	c.logger.Info("Collection cycle complete",
		"provider", stats.Provider, "raw", stats.Raw, "accepted", stats.Accepted,
		"rejected", stats.Rejected, "duplicates", stats.Duplicates, "clusters", stats.Clusters)
	return clusters, stats, nil
}

// probe is one provider's poll outcome, slotted by registry position so
// selection stays priority-ordered.
type probe struct {
	raws   []RawAlert
	recipe Recipe
	err    error
}

// poll probes every provider concurrently and takes the highest-priority
// success. A slow low-priority provider then costs nothing when a higher
// one answers, and the cycle is bounded by the slowest probe rather than
// the sum of all of them.
func (c *Collector) poll(ctx context.Context) ([]RawAlert, Recipe, Provider, error) {
	providers := c.registry.Providers()
	probes := make([]probe, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			raws, recipe, err := p.ListActive(ctx)
			probes[i] = probe{raws: raws, recipe: recipe, err: err}
			return nil
		})
	}
	// Probes report through the slice; Wait only synchronises.
	_ = g.Wait()

	for i, p := range providers {
		if err := probes[i].err; err != nil {
			c.logger.Warn("Alert provider unavailable",
				"provider", p.Name(), "priority", p.Priority(), "error", err)
			continue
		}
		return probes[i].raws, probes[i].recipe, p, nil
	}
	return nil, Recipe{}, nil, faults.New(faults.KindNoProviderAvailable, "ingest.Collect",
		"all alert providers failed")
}

// clusterAlerts groups alerts by (service, five-minute window). Cluster ids
// are deterministic so replays reproduce them exactly; output is ordered
// by id.
func clusterAlerts(alerts []models.NormalizedAlert) []models.AlertCluster {
	byKey := map[string]*models.AlertCluster{}
	for _, a := range alerts {
		window := a.ReceivedAt.UTC().Truncate(clusterWindow)
		id := fmt.Sprintf("%s-%d", a.Service, window.Unix())
		cl, ok := byKey[id]
		if !ok {
			cl = &models.AlertCluster{
				ID:          id,
				Service:     a.Service,
				ClusterType: ClusterTypeServiceWindow,
				EarliestAt:  a.ReceivedAt,
				LatestAt:    a.ReceivedAt,
			}
			byKey[id] = cl
		}
		if a.ReceivedAt.Before(cl.EarliestAt) {
			cl.EarliestAt = a.ReceivedAt
		}
		if a.ReceivedAt.After(cl.LatestAt) {
			cl.LatestAt = a.ReceivedAt
		}
		cl.Members = append(cl.Members, a)
	}

	out := make([]models.AlertCluster, 0, len(byKey))
	for _, cl := range byKey {
		out = append(out, *cl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
