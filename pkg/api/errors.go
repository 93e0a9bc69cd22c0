package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/strands/pkg/faults"
)

// ErrorResponse is the JSON error envelope for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// httpStatus maps a fault kind to an HTTP status code.
func httpStatus(kind faults.Kind) int {
	switch kind {
	case faults.KindValidationFailed:
		return http.StatusBadRequest
	case faults.KindInvalidReviewer:
		return http.StatusUnprocessableEntity
	case faults.KindReviewAlreadyClosed,
		faults.KindIllegalStateTransition,
		faults.KindOptimisticConflict:
		return http.StatusConflict
	case faults.KindUpstreamUnavailable,
		faults.KindCircuitOpen,
		faults.KindNoProviderAvailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope for a service-layer failure.
func respondError(c *gin.Context, err error) {
	kind := faults.KindOf(err)
	status := httpStatus(kind)
	if status == http.StatusInternalServerError {
		slog.Error("Unexpected service error", "error", err)
		c.JSON(status, &ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, &ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

// respondLookupError is respondError for by-id fetches, where a
// validation failure from the store means the id did not match anything.
func respondLookupError(c *gin.Context, err error) {
	if faults.IsKind(err, faults.KindValidationFailed) {
		c.JSON(http.StatusNotFound, &ErrorResponse{
			Error: "resource not found",
			Kind:  string(faults.KindValidationFailed),
		})
		return
	}
	respondError(c, err)
}
