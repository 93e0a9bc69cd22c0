package models

import "time"

// RiskLevel grades the blast radius of a proposed remediation.
// Values are ordered: MINIMAL < LOW < MEDIUM < HIGH < CRITICAL.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "MINIMAL"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank returns the ordering position of the risk level (MINIMAL=0 … CRITICAL=4).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskMinimal:
		return 0
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return -1
	}
}

// AutomationLevel bounds how much of a remediation may run unattended.
// Values are ordered: MANUAL < ASSISTED < FULL.
type AutomationLevel string

const (
	AutomationManual   AutomationLevel = "MANUAL"
	AutomationAssisted AutomationLevel = "ASSISTED"
	AutomationFull     AutomationLevel = "FULL"
)

// Rank returns the ordering position of the automation level (MANUAL=0 … FULL=2).
func (a AutomationLevel) Rank() int {
	switch a {
	case AutomationManual:
		return 0
	case AutomationAssisted:
		return 1
	case AutomationFull:
		return 2
	default:
		return -1
	}
}

// DecisionType is the routing outcome of the threshold policy check.
type DecisionType string

const (
	DecisionAutoApprove      DecisionType = "AUTO_APPROVE"
	DecisionRequiresApproval DecisionType = "REQUIRES_APPROVAL"
	DecisionEscalate         DecisionType = "ESCALATE"
)

// DecisionCandidate is the consolidated recommendation from one
// investigation. All timestamps are stored UTC so JSON round-trips
// yield equal values.
type DecisionCandidate struct {
	ID               string          `json:"id"`
	ClusterID        string          `json:"cluster_id"`
	Hypothesis       string          `json:"hypothesis"`
	Confidence       float64         `json:"confidence"`
	Risk             RiskLevel       `json:"risk"`
	Automation       AutomationLevel `json:"automation"`
	Type             DecisionType    `json:"type"`
	Conflict         bool            `json:"conflict,omitempty"`
	Degraded         bool            `json:"degraded,omitempty"`
	SuggestedActions []string        `json:"suggested_actions,omitempty"`
	Evidence         []EvidenceItem  `json:"evidence,omitempty"`
	ModelVersion     string          `json:"model_version"`
	WeightsVersion   string          `json:"weights_version"`
	AuditID          string          `json:"audit_id"`
	CreatedAt        time.Time       `json:"created_at"`
}
