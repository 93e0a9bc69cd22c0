package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// listPlaybooks handles GET /api/v1/playbooks.
// Supports ?status= to filter by lifecycle state.
func (s *Server) listPlaybooks(c *gin.Context) {
	status := models.PlaybookStatus(strings.ToUpper(c.Query("status")))

	playbooks, err := s.deps.Playbooks.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playbooks": playbooks, "count": len(playbooks)})
}

// getPlaybook handles GET /api/v1/playbooks/:id.
func (s *Server) getPlaybook(c *gin.Context) {
	p, err := s.deps.Playbooks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, &p)
}

// approvePlaybook handles POST /api/v1/playbooks/:id/approve.
func (s *Server) approvePlaybook(c *gin.Context) {
	s.transitionPlaybook(c, models.PlaybookActive)
}

// rejectPlaybook handles POST /api/v1/playbooks/:id/reject.
func (s *Server) rejectPlaybook(c *gin.Context) {
	s.transitionPlaybook(c, models.PlaybookArchived)
}

// deprecatePlaybook handles POST /api/v1/playbooks/:id/deprecate.
func (s *Server) deprecatePlaybook(c *gin.Context) {
	s.transitionPlaybook(c, models.PlaybookDeprecated)
}

// transitionPlaybook drives one lifecycle edge with the caller as actor.
// The state machine in the store decides whether the edge is legal.
func (s *Server) transitionPlaybook(c *gin.Context, to models.PlaybookStatus) {
	var req TransitionRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, &ErrorResponse{
				Error: err.Error(), Kind: string(faults.KindValidationFailed)})
			return
		}
	}

	p, err := s.deps.Playbooks.Transition(c.Request.Context(),
		c.Param("id"), to, extractReviewer(c), req.Note)
	if err != nil {
		respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, &p)
}
