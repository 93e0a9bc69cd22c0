package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/strands/pkg/faults"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind faults.Kind
		want int
	}{
		{faults.KindValidationFailed, http.StatusBadRequest},
		{faults.KindInvalidReviewer, http.StatusUnprocessableEntity},
		{faults.KindReviewAlreadyClosed, http.StatusConflict},
		{faults.KindIllegalStateTransition, http.StatusConflict},
		{faults.KindOptimisticConflict, http.StatusConflict},
		{faults.KindUpstreamUnavailable, http.StatusServiceUnavailable},
		{faults.KindCircuitOpen, http.StatusServiceUnavailable},
		{faults.KindNoProviderAvailable, http.StatusServiceUnavailable},
		{faults.Kind(""), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, httpStatus(tt.kind))
		})
	}
}

func TestRespondError(t *testing.T) {
	t.Run("fault carries its kind", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)

		respondError(c, faults.New(faults.KindCircuitOpen, "graph.Query", "breaker open"))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, string(faults.KindCircuitOpen), resp.Kind)
		assert.Contains(t, resp.Error, "breaker open")
	})

	t.Run("unknown error is masked", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)

		respondError(c, errors.New("pq: password authentication failed"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "internal server error", resp.Error)
		assert.NotContains(t, resp.Error, "password")
	})
}

func TestRespondLookupError(t *testing.T) {
	t.Run("validation failure becomes not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)

		respondLookupError(c, faults.New(faults.KindValidationFailed, "playbook.Get", "playbook x not found"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("other kinds keep their status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)

		respondLookupError(c, faults.New(faults.KindUpstreamUnavailable, "graph.Query", "neo4j down"))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
