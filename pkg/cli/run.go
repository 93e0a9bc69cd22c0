package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/strands/pkg/api"
	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/cleanup"
	"github.com/codeready-toolchain/strands/pkg/config"
	"github.com/codeready-toolchain/strands/pkg/controller"
	"github.com/codeready-toolchain/strands/pkg/correlate"
	"github.com/codeready-toolchain/strands/pkg/decision"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/kube"
	"github.com/codeready-toolchain/strands/pkg/llm"
	"github.com/codeready-toolchain/strands/pkg/masking"
	"github.com/codeready-toolchain/strands/pkg/metrics"
	"github.com/codeready-toolchain/strands/pkg/playbook"
	"github.com/codeready-toolchain/strands/pkg/recommend"
	"github.com/codeready-toolchain/strands/pkg/replay"
	"github.com/codeready-toolchain/strands/pkg/resilience"
	"github.com/codeready-toolchain/strands/pkg/review"
	"github.com/codeready-toolchain/strands/pkg/swarm"
	"github.com/codeready-toolchain/strands/pkg/tsdb"
	"github.com/codeready-toolchain/strands/pkg/vector"
	"github.com/codeready-toolchain/strands/pkg/version"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the strands server",
		Long:  "Run starts the full pipeline: alert collection, the specialist swarm, the decision engine, playbook recommendation, graph retention, and the HTTP API, then blocks until SIGTERM or SIGINT.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServer(cmd.Context())
		},
	}
}

// runServer wires the pipeline and blocks until a shutdown signal or a
// server error. The graph store is the only hard upstream: a missing
// metrics backend or cluster API shrinks the specialist roster instead
// of failing startup, and the breakers cover outages after it.
func (a *app) runServer(ctx context.Context) error {
	// 1. Initialize configuration
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := a.newLogger(cfg.System)

	logger.Info("Starting strands",
		"version", version.Full(),
		"http_port", cfg.System.HTTPPort,
		"tick_interval", cfg.System.TickInterval,
		"config_dir", a.configDir)

	// 2. Open the audit trail
	var trail *audit.Log
	if cfg.System.AuditLogPath != "" {
		trail = audit.Open(cfg.System.AuditLogPath, logger)
	} else {
		trail = audit.New(a.stdout, logger)
	}
	defer func() {
		if err := trail.Close(); err != nil {
			logger.Error("Error closing audit trail", "error", err)
		}
	}()

	set := metrics.NewSet()

	// 3. Connect the graph store
	g, err := graph.NewStore(cfg.Graph, resilience.NewExecutor("neo4j", cfg.Resilience("neo4j"), logger), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := g.Close(context.Background()); err != nil {
			logger.Error("Error closing graph store", "error", err)
		}
	}()
	if err := g.Ping(ctx); err != nil {
		return err
	}
	if err := g.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info("Connected to graph store", "uri", cfg.Graph.URI)

	// 4. Optional upstream adapters
	vectors, err := vector.NewStore(cfg.Vector, resilience.NewExecutor("qdrant", cfg.Resilience("qdrant"), logger), logger)
	if err != nil {
		logger.Warn("Vector store unavailable, continuing without similarity search", "error", err)
		vectors = nil
	} else {
		defer func() {
			if err := vectors.Close(); err != nil {
				logger.Error("Error closing vector store", "error", err)
			}
		}()
		if err := vectors.EnsureCollection(ctx); err != nil {
			logger.Warn("Vector collection not ready, the breaker covers recovery", "error", err)
		}
	}

	generator, err := llm.NewClient(cfg.Generator, resilience.NewExecutor("generator", cfg.Resilience("generator"), logger), logger)
	if err != nil {
		return err
	}

	var querier *tsdb.Querier
	if cfg.Metrics.URL != "" {
		querier, err = tsdb.NewQuerier(cfg.Metrics, resilience.NewExecutor("metrics", cfg.Resilience("metrics"), logger), logger)
		if err != nil {
			return err
		}
	}

	cluster, err := kube.NewClient(kube.Config{}, resilience.NewExecutor("kubernetes", cfg.Resilience("kubernetes"), logger), logger)
	if err != nil {
		logger.Warn("Cluster API unavailable, continuing without the log inspector", "error", err)
		cluster = nil
	}

	// 5. Alert providers
	var providers []ingest.Provider
	var webhook *ingest.WebhookProvider
	for _, p := range cfg.EnabledProviders() {
		switch p.Kind {
		case config.ProviderKindWebhook:
			webhook, err = ingest.NewWebhookProvider(ingest.WebhookProviderConfig{
				Enabled:         true,
				Priority:        p.Priority,
				QueueSize:       p.QueueSize,
				SeverityMap:     p.SeverityMap,
				ServicePatterns: p.ServicePatterns,
			}, logger)
			if err != nil {
				return err
			}
			providers = append(providers, webhook)
		case config.ProviderKindPrometheus:
			pp, perr := ingest.NewPrometheusProvider(ingest.PrometheusProviderConfig{
				Enabled:         true,
				Priority:        p.Priority,
				SeverityMap:     p.SeverityMap,
				ServicePatterns: p.ServicePatterns,
			}, querier)
			if perr != nil {
				return perr
			}
			providers = append(providers, pp)
		case config.ProviderKindGrafana:
			gp, gerr := ingest.NewGrafanaProvider(ingest.GrafanaProviderConfig{
				Enabled:         true,
				Endpoint:        p.Endpoint,
				Priority:        p.Priority,
				Token:           p.Token,
				SeverityMap:     p.SeverityMap,
				ServicePatterns: p.ServicePatterns,
			}, resilience.NewExecutor(p.Name, cfg.Resilience(p.Name), logger))
			if gerr != nil {
				return gerr
			}
			providers = append(providers, gp)
		}
	}
	registry, err := ingest.NewRegistry(providers...)
	if err != nil {
		return err
	}
	masker, err := masking.New(cfg.Masking, logger)
	if err != nil {
		return err
	}
	collector := ingest.NewCollector(registry, ingest.NewNormalizer(cfg.Ingest, masker, logger), logger)
	logger.Info("Alert providers registered", "providers", len(providers))

	// 6. Specialist swarm. The roster follows the available adapters.
	engine := correlate.NewEngine(correlate.DefaultConfig(), logger)
	specialists := []swarm.Specialist{
		swarm.NewGraphContext(g, logger),
	}
	if querier != nil {
		specialists = append(specialists,
			swarm.NewMetricsAnalyst(querier, engine, logger),
			swarm.NewCorrelator(querier, g, engine, logger),
		)
	}
	if cluster != nil {
		specialists = append(specialists, swarm.NewLogInspector(cluster, logger))
	}
	if vectors != nil {
		specialists = append(specialists, swarm.NewEmbeddingSimilarity(generator, vectors, logger))
	}
	orchestrator := swarm.NewOrchestrator(cfg.Swarm, logger, specialists...)
	logger.Info("Swarm assembled", "specialists", orchestrator.Specialists())

	// 7. Decision engine with hot-reloaded weights
	decider, err := decision.NewEngine(cfg.Decision, logger)
	if err != nil {
		return err
	}
	defer decider.Close()
	if err := decider.Watch(); err != nil {
		logger.Warn("Weights watcher unavailable, continuing without hot reload", "error", err)
	}

	// 8. Playbooks, recommendation, review
	playbooks := playbook.NewStore(g, logger)
	recommender := recommend.NewRecommender(playbooks, recommend.NewGenerator(generator, logger), logger)
	reviews := review.NewService(g, playbooks, cfg.System.SystemIdentity, logger)

	// 9. Seed playbooks shipped with the deployment
	if seeded, err := playbook.Seed(ctx, playbooks, filepath.Join(a.configDir, "playbooks"), logger); err != nil {
		logger.Warn("Playbook seeding failed, continuing with the existing catalog", "error", err)
	} else if seeded > 0 {
		logger.Info("Seeded playbooks", "count", seeded)
	}

	// 10. Replay recorder
	var recorder *replay.Recorder
	if cfg.System.ReplayDir != "" {
		recorder, err = replay.OpenRecorder(cfg.System.ReplayDir, decider.Snapshot(cfg.System.ReplaySeed), logger)
		if err != nil {
			logger.Warn("Replay recorder unavailable, continuing without a ledger", "error", err)
			recorder = nil
		}
	}

	// 11. Retention service
	retention := cleanup.NewService(cfg.Retention, g, logger)
	retention.Start(ctx)

	// 12. Controller. Optional deps are only set when their adapter
	// exists so a downed upstream stays a nil interface, not a typed nil.
	ctrlDeps := controller.Deps{
		Collector:   collector,
		Swarm:       orchestrator,
		Decider:     decider,
		Recommender: recommender,
		Reviews:     reviews,
		Graph:       g,
		Trail:       trail,
		Recorder:    recorder,
		Metrics:     set,
	}
	if vectors != nil {
		ctrlDeps.Embedder = generator
		ctrlDeps.Vectors = vectors
	}
	ctrl, err := controller.New(controller.Config{
		TickInterval:   cfg.System.TickInterval,
		SystemIdentity: cfg.System.SystemIdentity,
	}, ctrlDeps, logger)
	if err != nil {
		return err
	}
	ctrl.Start(ctx)

	// 13. HTTP API
	upstreams := []api.Snapshotter{g, generator}
	if vectors != nil {
		upstreams = append(upstreams, vectors)
	}
	if querier != nil {
		upstreams = append(upstreams, querier)
	}
	if cluster != nil {
		upstreams = append(upstreams, cluster)
	}
	apiDeps := api.Deps{
		Reviews:    reviews,
		Playbooks:  playbooks,
		Graph:      g,
		Controller: ctrl,
		Upstreams:  upstreams,
		Trail:      trail,
		Metrics:    set,
	}
	if webhook != nil {
		apiDeps.Alerts = webhook
	}
	server, err := api.New(api.Config{Port: cfg.System.HTTPPort}, apiDeps, logger)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info("Strands started",
		"providers", len(providers),
		"specialists", len(orchestrator.Specialists()),
		"policy", decider.Policy().Name)

	// 14. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		logger.Error("Server error triggered shutdown", "error", err)
		runErr = err
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	// 15. Graceful shutdown. The API stops first so no new work lands
	// mid-teardown, then the controller drains its tick.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		ctrl.Stop()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("Controller stopped gracefully")
	case <-time.After(cfg.System.TickInterval + 5*time.Second):
		logger.Warn("Controller shutdown timeout exceeded")
	}

	retention.Stop()

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			logger.Error("Error closing replay recorder", "error", err)
		}
	}

	logger.Info("Shutdown complete")
	return runErr
}
