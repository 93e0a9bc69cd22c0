package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultListLimit = 50

// listClusters handles GET /api/v1/clusters.
// Supports ?service= to filter and ?limit= to cap the result, newest first.
func (s *Server) listClusters(c *gin.Context) {
	limit := queryLimit(c)

	cypher := `MATCH (cl:AlertCluster)
		 RETURN properties(cl) AS props
		 ORDER BY cl.latest_at DESC, cl.id
		 LIMIT $limit`
	params := map[string]any{"limit": limit}
	if service := c.Query("service"); service != "" {
		cypher = `MATCH (cl:AlertCluster {service: $service})
		 RETURN properties(cl) AS props
		 ORDER BY cl.latest_at DESC, cl.id
		 LIMIT $limit`
		params["service"] = service
	}

	rows, err := s.deps.Graph.Query(c.Request.Context(), cypher, params)
	if err != nil {
		respondError(c, err)
		return
	}

	clusters := make([]ClusterSummary, 0, len(rows))
	for _, row := range rows {
		props, _ := row["props"].(map[string]any)
		clusters = append(clusters, ClusterSummary{
			ID:               propString(props, "id"),
			Service:          propString(props, "service"),
			ClusterType:      propString(props, "cluster_type"),
			MemberCount:      propInt64(props, "member_count"),
			EarliestAt:       propInt64(props, "earliest_at"),
			LatestAt:         propInt64(props, "latest_at"),
			CorrelationBasis: propString(props, "correlation_basis"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters, "count": len(clusters)})
}

// queryLimit reads ?limit=, clamped to a sane window.
func queryLimit(c *gin.Context) int64 {
	limit := int64(defaultListLimit)
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	return limit
}
