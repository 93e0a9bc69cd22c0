package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/ingest"
)

// createAlert handles POST /api/v1/alerts.
// Buffers the alert on the webhook provider; the next collection cycle
// drains it through the same normalisation as every pulled alert.
func (s *Server) createAlert(c *gin.Context) {
	var req AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error: err.Error(), Kind: string(faults.KindValidationFailed)})
		return
	}

	if req.Fingerprint == "" && len(req.Labels) == 0 {
		c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error: "fingerprint or labels are required",
			Kind:  string(faults.KindValidationFailed)})
		return
	}

	if s.deps.Alerts == nil {
		respondError(c, faults.New(faults.KindNoProviderAvailable, "api.createAlert",
			"webhook provider is not enabled"))
		return
	}

	s.deps.Alerts.Enqueue(ingest.RawAlert{
		Fingerprint: req.Fingerprint,
		Labels:      req.Labels,
		Annotations: req.Annotations,
		Severity:    req.Severity,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		Status:      req.Status,
	})

	c.JSON(http.StatusAccepted, &AlertResponse{
		Status:     "queued",
		Message:    "Alert queued for the next collection cycle",
		QueueDepth: s.deps.Alerts.Depth(),
	})
}
