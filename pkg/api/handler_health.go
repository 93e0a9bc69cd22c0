package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/strands/pkg/version"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusDegraded  = "degraded"
	healthStatusUnhealthy = "unhealthy"
)

// health handles GET /health.
// The graph is the only hard dependency: without it nothing can be
// persisted or reviewed, so a failed ping reports unhealthy. A stopped
// controller or an open breaker on a soft upstream only degrades the
// verdict; the orchestrator must not restart the process because an
// external service is down.
func (s *Server) health(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]HealthCheck)
	status := healthStatusHealthy

	if err := s.deps.Graph.Ping(reqCtx); err != nil {
		status = healthStatusUnhealthy
		checks["graph"] = HealthCheck{Status: healthStatusUnhealthy, Message: err.Error()}
	} else {
		checks["graph"] = HealthCheck{Status: healthStatusHealthy}
	}

	var controllerStatus *ControllerStatus
	if s.deps.Controller != nil {
		h := s.deps.Controller.Health()
		controllerStatus = &ControllerStatus{Running: h.Running, Ticks: h.Ticks}
		if !h.LastTick.IsZero() {
			controllerStatus.LastTick = h.LastTick.Format(time.RFC3339)
		}
		if h.Running {
			checks["controller"] = HealthCheck{Status: healthStatusHealthy}
		} else {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			checks["controller"] = HealthCheck{Status: healthStatusDegraded, Message: "tick loop is not running"}
		}
	}

	for _, up := range s.deps.Upstreams {
		snap := up.Snapshot()
		name := "upstream_" + snap.Upstream
		if snap.State == "OPEN" {
			if status == healthStatusHealthy {
				status = healthStatusDegraded
			}
			checks[name] = HealthCheck{
				Status:  healthStatusDegraded,
				Message: fmt.Sprintf("circuit open after %d failures", snap.Failures),
			}
			continue
		}
		checks[name] = HealthCheck{Status: healthStatusHealthy}
	}

	httpStatus := http.StatusOK
	if status == healthStatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, &HealthResponse{
		Status:     status,
		Version:    version.Full(),
		Controller: controllerStatus,
		Checks:     checks,
	})
}
