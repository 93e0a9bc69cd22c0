package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// listDecisions handles GET /api/v1/decisions.
// Supports ?type= to filter by routing type and ?limit=, newest first.
func (s *Server) listDecisions(c *gin.Context) {
	limit := queryLimit(c)

	cypher := `MATCH (d:Decision)
		 RETURN properties(d) AS props
		 ORDER BY d.created_at DESC, d.id
		 LIMIT $limit`
	params := map[string]any{"limit": limit}
	if typ := c.Query("type"); typ != "" {
		cypher = `MATCH (d:Decision {type: $type})
		 RETURN properties(d) AS props
		 ORDER BY d.created_at DESC, d.id
		 LIMIT $limit`
		params["type"] = strings.ToUpper(typ)
	}

	rows, err := s.deps.Graph.Query(c.Request.Context(), cypher, params)
	if err != nil {
		respondError(c, err)
		return
	}

	decisions := make([]DecisionSummary, 0, len(rows))
	for _, row := range rows {
		props, _ := row["props"].(map[string]any)
		decisions = append(decisions, decisionSummary(props))
	}
	c.JSON(http.StatusOK, gin.H{"decisions": decisions, "count": len(decisions)})
}

// getDecision handles GET /api/v1/decisions/:id.
// Joins the review record when one exists; auto-approved decisions have none.
func (s *Server) getDecision(c *gin.Context) {
	id := c.Param("id")

	rows, err := s.deps.Graph.Query(c.Request.Context(),
		"MATCH (d:Decision {id: $id}) RETURN properties(d) AS props",
		map[string]any{"id": id})
	if err != nil {
		respondError(c, err)
		return
	}
	if len(rows) == 0 {
		respondLookupError(c, faults.Newf(faults.KindValidationFailed, "api.getDecision",
			"no decision %s", id))
		return
	}
	props, _ := rows[0]["props"].(map[string]any)

	detail := DecisionDetail{
		DecisionSummary:      decisionSummary(props),
		RecommendationSource: propString(props, "recommendation_source"),
		RecommendationStatus: propString(props, "recommendation_status"),
	}
	if rec, err := s.deps.Reviews.Get(c.Request.Context(), id); err == nil {
		detail.Review = &rec
	}
	c.JSON(http.StatusOK, &detail)
}

// reviewDecision handles POST /api/v1/decisions/:id/review.
// Closes the pending review with the caller's verdict.
func (s *Server) reviewDecision(c *gin.Context) {
	id := c.Param("id")

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error: err.Error(), Kind: string(faults.KindValidationFailed)})
		return
	}
	reviewer := extractReviewer(c)

	var (
		rec models.ReviewRecord
		err error
	)
	switch strings.ToLower(req.Verdict) {
	case "approve", "approved":
		rec, err = s.deps.Reviews.Approve(c.Request.Context(), id, reviewer, req.Note)
	case "reject", "rejected":
		rec, err = s.deps.Reviews.Reject(c.Request.Context(), id, reviewer, req.Note)
	default:
		c.JSON(http.StatusBadRequest, &ErrorResponse{
			Error: "verdict must be approve or reject",
			Kind:  string(faults.KindValidationFailed)})
		return
	}
	if err != nil {
		respondLookupError(c, err)
		return
	}

	s.deps.Metrics.ReviewsClosed.WithLabelValues(string(rec.State)).Inc()
	s.record(audit.Entry{
		EventType:  audit.EventReviewClosed,
		DecisionID: rec.DecisionID,
		PlaybookID: rec.PlaybookID,
		Payload: map[string]any{
			"review_id": rec.ID,
			"state":     string(rec.State),
			"reviewer":  reviewer,
		},
	})
	c.JSON(http.StatusOK, &rec)
}

func decisionSummary(props map[string]any) DecisionSummary {
	return DecisionSummary{
		ID:               propString(props, "id"),
		ClusterID:        propString(props, "cluster_id"),
		Type:             propString(props, "type"),
		Hypothesis:       propString(props, "hypothesis"),
		Confidence:       propFloat(props, "confidence"),
		Risk:             propString(props, "risk"),
		Automation:       propString(props, "automation"),
		Degraded:         propBool(props, "degraded"),
		AutoApproved:     propBool(props, "auto_approved"),
		PlaybookID:       propString(props, "playbook_id"),
		PlaybookVersion:  propString(props, "playbook_version"),
		ModelVersion:     propString(props, "model_version"),
		WeightsVersion:   propString(props, "weights_version"),
		CreatedAt:        propInt64(props, "created_at"),
		ExecuteRequested: propBool(props, "execute_requested"),
		ApprovedBy:       propString(props, "approved_by"),
	}
}
