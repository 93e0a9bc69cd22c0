package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// reportExecution handles POST /api/v1/executions.
// Records one playbook run and folds it into the playbook's statistics.
func (s *Server) reportExecution(c *gin.Context) {
	var req ExecutionReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error: err.Error(), Kind: string(faults.KindValidationFailed)})
		return
	}

	if req.PlaybookID == "" {
		c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error: "playbook_id is required",
			Kind:  string(faults.KindValidationFailed)})
		return
	}
	outcome := models.ExecutionOutcome(strings.ToUpper(req.Outcome))
	switch outcome {
	case models.OutcomeSuccess, models.OutcomeFailure, models.OutcomePartial, models.OutcomeRolledBack:
	default:
		c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error: "outcome must be SUCCESS, FAILURE, PARTIAL, or ROLLED_BACK",
			Kind:  string(faults.KindValidationFailed)})
		return
	}

	exec := models.PlaybookExecution{
		ID:             uuid.NewString(),
		PlaybookID:     req.PlaybookID,
		DecisionID:     req.DecisionID,
		StartedAt:      req.StartedAt,
		CompletedAt:    req.CompletedAt,
		Outcome:        outcome,
		DurationS:      req.DurationS,
		StepsAttempted: req.StepsAttempted,
		StepsCompleted: req.StepsCompleted,
		Error:          req.Error,
		Feedback:       req.Feedback,
	}
	if exec.DurationS == 0 && !exec.StartedAt.IsZero() && !exec.CompletedAt.IsZero() {
		exec.DurationS = exec.CompletedAt.Sub(exec.StartedAt).Seconds()
	}

	if err := s.deps.Playbooks.RecordExecution(c.Request.Context(), exec); err != nil {
		respondLookupError(c, err)
		return
	}

	s.deps.Metrics.ExecutionsRecorded.WithLabelValues(string(outcome)).Inc()
	s.record(audit.Entry{
		EventType:  audit.EventExecutionRecorded,
		DecisionID: exec.DecisionID,
		PlaybookID: exec.PlaybookID,
		Payload: map[string]any{
			"execution_id": exec.ID,
			"outcome":      string(outcome),
			"duration_s":   exec.DurationS,
		},
	})
	c.JSON(http.StatusCreated, &ExecutionResponse{
		ExecutionID: exec.ID,
		PlaybookID:  exec.PlaybookID,
		Outcome:     string(outcome),
	})
}
