// Package api exposes the HTTP surface: alert ingestion, read access to
// clusters and decisions, the human review endpoints, playbook lifecycle
// operations, execution reports, health, and metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/controller"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/metrics"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

// Config contains the HTTP server settings.
type Config struct {
	// Port is the listen port.
	Port int

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the built-in server defaults.
func DefaultConfig() Config {
	return Config{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
	}
}

// AlertSink receives webhook alerts for the next collection cycle.
type AlertSink interface {
	Enqueue(raw ingest.RawAlert)
	Depth() int
}

// reviewService is the slice of the review desk the API uses.
type reviewService interface {
	Get(ctx context.Context, decisionID string) (models.ReviewRecord, error)
	Approve(ctx context.Context, decisionID, reviewer, note string) (models.ReviewRecord, error)
	Reject(ctx context.Context, decisionID, reviewer, note string) (models.ReviewRecord, error)
}

// playbookStore is the slice of the playbook store the API uses.
type playbookStore interface {
	List(ctx context.Context, status models.PlaybookStatus) ([]models.Playbook, error)
	Get(ctx context.Context, id string) (models.Playbook, error)
	Transition(ctx context.Context, id string, to models.PlaybookStatus, actor, note string) (models.Playbook, error)
	RecordExecution(ctx context.Context, exec models.PlaybookExecution) error
}

// graphReader serves the cluster and decision read endpoints.
type graphReader interface {
	Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
	Ping(ctx context.Context) error
}

// controllerHealth exposes the tick loop's liveness.
type controllerHealth interface {
	Health() controller.Health
}

// Snapshotter exposes one upstream's breaker state for /health.
type Snapshotter interface {
	Snapshot() resilience.Snapshot
}

// Deps carries the server's collaborators. Alerts, Controller, Upstreams,
// and Trail may be nil; the matching endpoints then degrade gracefully.
type Deps struct {
	Alerts     AlertSink
	Reviews    reviewService
	Playbooks  playbookStore
	Graph      graphReader
	Controller controllerHealth
	Upstreams  []Snapshotter
	Trail      *audit.Log
	Metrics    *metrics.Set
}

// Server is the HTTP API server.
type Server struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	http   *http.Server
}

// New creates the API server. Panics if logger is nil (programming error).
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		panic("api.New: nil logger")
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultConfig().Port
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	if deps.Reviews == nil || deps.Playbooks == nil || deps.Graph == nil {
		return nil, fmt.Errorf("api.New: reviews, playbooks, and graph are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewSet()
	}
	return &Server{cfg: cfg, deps: deps, logger: logger}, nil
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(securityHeaders())
	r.Use(requestLogger(s.logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/alerts", s.createAlert)

		v1.GET("/clusters", s.listClusters)

		v1.GET("/decisions", s.listDecisions)
		v1.GET("/decisions/:id", s.getDecision)
		v1.POST("/decisions/:id/review", s.reviewDecision)

		v1.GET("/playbooks", s.listPlaybooks)
		v1.GET("/playbooks/:id", s.getPlaybook)
		v1.POST("/playbooks/:id/approve", s.approvePlaybook)
		v1.POST("/playbooks/:id/reject", s.rejectPlaybook)
		v1.POST("/playbooks/:id/deprecate", s.deprecatePlaybook)

		v1.POST("/executions", s.reportExecution)
	}

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))

	return r
}

// Start begins serving in the calling goroutine and blocks until the
// listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server listening", "port", s.cfg.Port)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("API server shutting down")
	return s.http.Shutdown(shutdownCtx)
}

// record writes an audit entry. Nil trail means auditing is disabled.
func (s *Server) record(entry audit.Entry) {
	if s.deps.Trail == nil {
		return
	}
	s.deps.Trail.Record(entry)
}
