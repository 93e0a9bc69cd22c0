package models

import "time"

// SpecialistStatus is the completion status of one specialist run.
type SpecialistStatus string

const (
	SpecialistSuccess SpecialistStatus = "SUCCESS"
	SpecialistTimeout SpecialistStatus = "TIMEOUT"
	SpecialistError   SpecialistStatus = "ERROR"
)

// SpecialistResult is the immutable output of one specialist in the swarm.
// Exactly one result exists per specialist per investigation.
type SpecialistResult struct {
	SpecialistID     string           `json:"specialist_id"`
	Hypothesis       string           `json:"hypothesis"`
	Confidence       float64          `json:"confidence"`
	Evidence         []EvidenceItem   `json:"evidence,omitempty"`
	SuggestedActions []string         `json:"suggested_actions,omitempty"`
	Status           SpecialistStatus `json:"status"`
	ErrorKind        string           `json:"error_kind,omitempty"`
	Duration         time.Duration    `json:"duration"`
}

// Succeeded reports whether the specialist produced a usable hypothesis.
func (r *SpecialistResult) Succeeded() bool {
	return r.Status == SpecialistSuccess
}
