package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
)

func TestListClusters(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.graph.rows = []map[string]any{
			{"props": map[string]any{
				"id":           "checkout-1770717600",
				"service":      "checkout",
				"cluster_type": "SERVICE_WINDOW",
				"member_count": int64(3),
				"earliest_at":  int64(1770717600),
				"latest_at":    int64(1770717660),
			}},
			{"props": map[string]any{
				"id":                "payments-1770717300",
				"service":           "payments",
				"cluster_type":      "SERVICE_WINDOW",
				"member_count":      int64(1),
				"earliest_at":       int64(1770717300),
				"latest_at":         int64(1770717300),
				"correlation_basis": "shared gateway",
			}},
		}
	})

	rec := h.do(t, http.MethodGet, "/api/v1/clusters", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Clusters []ClusterSummary `json:"clusters"`
		Count    int              `json:"count"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "checkout-1770717600", resp.Clusters[0].ID)
	assert.Equal(t, int64(3), resp.Clusters[0].MemberCount)
	assert.Equal(t, "shared gateway", resp.Clusters[1].CorrelationBasis)

	assert.Contains(t, h.graph.gotCypher, "AlertCluster")
	assert.Equal(t, int64(defaultListLimit), h.graph.gotParams["limit"])
}

func TestListClustersServiceFilter(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodGet, "/api/v1/clusters?service=checkout&limit=10", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "checkout", h.graph.gotParams["service"])
	assert.Equal(t, int64(10), h.graph.gotParams["limit"])
}

func TestListClustersLimitClamped(t *testing.T) {
	h := newHarness(t, nil)

	h.do(t, http.MethodGet, "/api/v1/clusters?limit=99999", nil, nil)
	assert.Equal(t, int64(defaultListLimit), h.graph.gotParams["limit"])

	h.do(t, http.MethodGet, "/api/v1/clusters?limit=-3", nil, nil)
	assert.Equal(t, int64(defaultListLimit), h.graph.gotParams["limit"])
}

func TestListClustersGraphDown(t *testing.T) {
	h := newHarness(t, func(h *harness) {
		h.graph.err = faults.New(faults.KindUpstreamUnavailable, "graph.Query", "neo4j down")
	})

	rec := h.do(t, http.MethodGet, "/api/v1/clusters", nil, nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
