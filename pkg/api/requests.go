package api

import "time"

// AlertRequest is the HTTP request body for POST /api/v1/alerts.
type AlertRequest struct {
	Fingerprint string            `json:"fingerprint,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Severity    string            `json:"severity,omitempty"`
	Description string            `json:"description,omitempty"`
	StartsAt    time.Time         `json:"starts_at,omitempty"`
	Status      string            `json:"status,omitempty"`
}

// ReviewRequest is the HTTP request body for POST /api/v1/decisions/:id/review.
type ReviewRequest struct {
	Verdict string `json:"verdict"`
	Note    string `json:"note,omitempty"`
}

// ExecutionReportRequest is the HTTP request body for POST /api/v1/executions.
type ExecutionReportRequest struct {
	PlaybookID     string    `json:"playbook_id"`
	DecisionID     string    `json:"decision_id,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
	Outcome        string    `json:"outcome"`
	DurationS      float64   `json:"duration_s,omitempty"`
	StepsAttempted int       `json:"steps_attempted,omitempty"`
	StepsCompleted int       `json:"steps_completed,omitempty"`
	Error          string    `json:"error,omitempty"`
	Feedback       string    `json:"feedback,omitempty"`
}

// TransitionRequest is the optional body for the playbook lifecycle
// endpoints, carrying a note for the audit record.
type TransitionRequest struct {
	Note string `json:"note,omitempty"`
}
