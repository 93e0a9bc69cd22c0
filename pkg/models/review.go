package models

import "time"

// ReviewState is the state of a human review record.
type ReviewState string

const (
	ReviewPending  ReviewState = "PENDING"
	ReviewApproved ReviewState = "APPROVED"
	ReviewRejected ReviewState = "REJECTED"
)

// Closed reports whether no further verdicts may be applied, other than
// an idempotent repeat of the one that closed the review.
func (s ReviewState) Closed() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// ReviewRecord tracks the human gate attached to a decision that
// requires approval before its playbook is released for execution.
type ReviewRecord struct {
	ID             string      `json:"id"`
	DecisionID     string      `json:"decision_id"`
	PlaybookID     string      `json:"playbook_id,omitempty"`
	State          ReviewState `json:"state"`
	Reviewer       string      `json:"reviewer,omitempty"`
	Note           string      `json:"note,omitempty"`
	RequestedAt    time.Time   `json:"requested_at"`
	DecidedAt      *time.Time  `json:"decided_at,omitempty"`
	EscalationNote string      `json:"escalation_note,omitempty"`
}

// ReviewOutcomeKind names the downstream effect of a closed review.
type ReviewOutcomeKind string

// OutcomeExecuteRequest asks the controller to run the approved playbook.
const OutcomeExecuteRequest ReviewOutcomeKind = "EXECUTE_REQUEST"

// ReviewOutcome is emitted to the controller when a review closes with a
// verdict that has downstream work attached.
type ReviewOutcome struct {
	Kind       ReviewOutcomeKind `json:"kind"`
	DecisionID string            `json:"decision_id"`
	PlaybookID string            `json:"playbook_id,omitempty"`
	Reviewer   string            `json:"reviewer"`
	At         time.Time         `json:"at"`
}
