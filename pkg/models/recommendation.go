package models

import "time"

// RecommendationSource records where the recommended playbook came from.
type RecommendationSource string

const (
	// RecommendationKnown is an ACTIVE playbook matched by pattern key.
	RecommendationKnown RecommendationSource = "KNOWN"
	// RecommendationGenerated is a freshly drafted playbook awaiting review.
	RecommendationGenerated RecommendationSource = "GENERATED"
	// RecommendationFallback is a synthetic playbook built from specialist
	// suggestions when generation fails. Never persisted.
	RecommendationFallback RecommendationSource = "FALLBACK"
)

// RecommendationStatus is the execution readiness of a recommendation.
type RecommendationStatus string

const (
	RecommendationReady            RecommendationStatus = "READY"
	RecommendationRequiresApproval RecommendationStatus = "REQUIRES_APPROVAL"
)

// Recommendation pairs a decision with the playbook proposed for it.
type Recommendation struct {
	DecisionID  string               `json:"decision_id"`
	ClusterID   string               `json:"cluster_id"`
	PatternType string               `json:"pattern_type"`
	Service     string               `json:"service"`
	Playbook    Playbook             `json:"playbook"`
	Source      RecommendationSource `json:"source"`
	Status      RecommendationStatus `json:"status"`
	Score       float64              `json:"score,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}
