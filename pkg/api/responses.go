package api

import (
	"github.com/codeready-toolchain/strands/pkg/models"
)

// AlertResponse is returned by POST /api/v1/alerts.
type AlertResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	QueueDepth int    `json:"queue_depth"`
}

// ClusterSummary is one row of GET /api/v1/clusters.
type ClusterSummary struct {
	ID               string `json:"id"`
	Service          string `json:"service"`
	ClusterType      string `json:"cluster_type"`
	MemberCount      int64  `json:"member_count"`
	EarliestAt       int64  `json:"earliest_at"`
	LatestAt         int64  `json:"latest_at"`
	CorrelationBasis string `json:"correlation_basis,omitempty"`
}

// DecisionSummary is one row of GET /api/v1/decisions.
type DecisionSummary struct {
	ID               string  `json:"id"`
	ClusterID        string  `json:"cluster_id"`
	Type             string  `json:"type"`
	Hypothesis       string  `json:"hypothesis"`
	Confidence       float64 `json:"confidence"`
	Risk             string  `json:"risk"`
	Automation       string  `json:"automation"`
	Degraded         bool    `json:"degraded"`
	AutoApproved     bool    `json:"auto_approved"`
	PlaybookID       string  `json:"playbook_id,omitempty"`
	PlaybookVersion  string  `json:"playbook_version,omitempty"`
	ModelVersion     string  `json:"model_version"`
	WeightsVersion   string  `json:"weights_version"`
	CreatedAt        int64   `json:"created_at"`
	ExecuteRequested bool    `json:"execute_requested,omitempty"`
	ApprovedBy       string  `json:"approved_by,omitempty"`
}

// DecisionDetail is returned by GET /api/v1/decisions/:id. Review is nil
// for auto-approved decisions that never opened one.
type DecisionDetail struct {
	DecisionSummary
	RecommendationSource string               `json:"recommendation_source,omitempty"`
	RecommendationStatus string               `json:"recommendation_status,omitempty"`
	Review               *models.ReviewRecord `json:"review,omitempty"`
}

// ExecutionResponse is returned by POST /api/v1/executions.
type ExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	PlaybookID  string `json:"playbook_id"`
	Outcome     string `json:"outcome"`
}

// HealthCheck is one component's health verdict.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string                 `json:"status"`
	Version    string                 `json:"version"`
	Controller *ControllerStatus      `json:"controller,omitempty"`
	Checks     map[string]HealthCheck `json:"checks"`
}

// ControllerStatus mirrors the tick loop's health for operators.
type ControllerStatus struct {
	Running  bool   `json:"running"`
	Ticks    int    `json:"ticks"`
	LastTick string `json:"last_tick,omitempty"`
}
