package models

import (
	"time"
)

// Severity is the canonical alert severity. Values are ordered:
// info < warning < high < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering position of the severity (info=0 … critical=3).
// Unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}

// Valid reports whether the severity is one of the canonical values.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// AlertStatus is the firing state reported by the provider.
type AlertStatus string

const (
	AlertFiring   AlertStatus = "firing"
	AlertResolved AlertStatus = "resolved"
)

// Alert is a single external notification, immutable after validation.
type Alert struct {
	ReceivedAt  time.Time         `json:"received_at"`
	Provider    string            `json:"provider"`
	Fingerprint string            `json:"fingerprint"`
	Service     string            `json:"service"`
	Severity    Severity          `json:"severity"`
	Description string            `json:"description"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Status      AlertStatus       `json:"status"`
}

// ValidationStatus records the outcome of alert normalisation.
type ValidationStatus string

const (
	ValidationValid    ValidationStatus = "VALID"
	ValidationRejected ValidationStatus = "REJECTED"
)

// NormalizedAlert is an Alert with provider-specific fields harmonised.
type NormalizedAlert struct {
	Alert

	ValidationStatus ValidationStatus `json:"validation_status"`
	RejectionReason  string           `json:"rejection_reason,omitempty"`
}

// AlertCluster is an ordered set of normalised alerts judged to describe
// one incident. Members keep arrival order and are unique by fingerprint.
type AlertCluster struct {
	ID          string            `json:"id"`
	Service     string            `json:"service"`
	ClusterType string            `json:"cluster_type"`
	EarliestAt  time.Time         `json:"earliest_at"`
	LatestAt    time.Time         `json:"latest_at"`
	Members     []NormalizedAlert `json:"members"`

	// CorrelationBasis records the rule that joined members across
	// services. Empty when all members share the canonical service.
	CorrelationBasis string `json:"correlation_basis,omitempty"`
}

// MaxSeverity returns the highest severity among cluster members.
func (c *AlertCluster) MaxSeverity() Severity {
	max := SeverityInfo
	for _, m := range c.Members {
		if m.Severity.Rank() > max.Rank() {
			max = m.Severity
		}
	}
	return max
}
