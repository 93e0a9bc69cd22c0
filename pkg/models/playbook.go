package models

import "time"

// PlaybookStatus is the lifecycle state of a playbook version.
type PlaybookStatus string

const (
	PlaybookDraft         PlaybookStatus = "DRAFT"
	PlaybookPendingReview PlaybookStatus = "PENDING_REVIEW"
	PlaybookActive        PlaybookStatus = "ACTIVE"
	PlaybookDeprecated    PlaybookStatus = "DEPRECATED"
	PlaybookArchived      PlaybookStatus = "ARCHIVED"
)

// PlaybookSource records how a playbook came to exist.
type PlaybookSource string

const (
	SourceHumanWritten PlaybookSource = "HUMAN_WRITTEN"
	SourceLLMGenerated PlaybookSource = "LLM_GENERATED"
	SourceHybrid       PlaybookSource = "HYBRID"
)

// PlaybookStep is one ordered remediation step.
type PlaybookStep struct {
	Index           int      `json:"index"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Commands        []string `json:"commands,omitempty"`
	ExpectedOutput  string   `json:"expected_output,omitempty"`
	RollbackCommand string   `json:"rollback_command,omitempty"`
}

// PlaybookStats holds the incremental execution statistics. The mean and
// the Welford m2 accumulator are updated together with the counters in a
// single transaction per execution record.
type PlaybookStats struct {
	TotalExecutions int        `json:"total_executions"`
	SuccessCount    int        `json:"success_count"`
	FailureCount    int        `json:"failure_count"`
	MeanDuration    float64    `json:"mean_duration_s"`
	M2Duration      float64    `json:"m2_duration"`
	LastExecutedAt  *time.Time `json:"last_executed_at,omitempty"`
}

// Variance derives the sample variance from the Welford accumulator.
func (s *PlaybookStats) Variance() float64 {
	if s.TotalExecutions < 2 {
		return 0
	}
	return s.M2Duration / float64(s.TotalExecutions-1)
}

// SuccessRate is success_count / max(1, total_executions).
func (s *PlaybookStats) SuccessRate() float64 {
	n := s.TotalExecutions
	if n < 1 {
		n = 1
	}
	return float64(s.SuccessCount) / float64(n)
}

// Playbook is a versioned remediation recipe. Each version is an
// independent record linked to its predecessor.
type Playbook struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description,omitempty"`
	PatternType       string          `json:"pattern_type"`
	ServicePattern    string          `json:"service_pattern"`
	Steps             []PlaybookStep  `json:"steps"`
	EstimatedDuration time.Duration   `json:"estimated_duration,omitempty"`
	Automation        AutomationLevel `json:"automation"`
	Risk              RiskLevel       `json:"risk"`
	Prerequisites     []string        `json:"prerequisites,omitempty"`
	SuccessCriteria   []string        `json:"success_criteria,omitempty"`
	RollbackProcedure string          `json:"rollback_procedure,omitempty"`
	Source            PlaybookSource  `json:"source"`
	Status            PlaybookStatus  `json:"status"`
	Version           string          `json:"version"`
	PreviousVersionID string          `json:"previous_version_id,omitempty"`
	Stats             PlaybookStats   `json:"stats"`
	CreatedAt         time.Time       `json:"created_at"`
	CreatedBy         string          `json:"created_by,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
	UpdatedBy         string          `json:"updated_by,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy        string          `json:"approved_by,omitempty"`
	RejectionNote     string          `json:"rejection_note,omitempty"`
}

// ExecutionOutcome is the terminal result of running a playbook.
type ExecutionOutcome string

const (
	OutcomeSuccess    ExecutionOutcome = "SUCCESS"
	OutcomeFailure    ExecutionOutcome = "FAILURE"
	OutcomePartial    ExecutionOutcome = "PARTIAL"
	OutcomeRolledBack ExecutionOutcome = "ROLLED_BACK"
)

// PlaybookExecution is an immutable record of one playbook run.
type PlaybookExecution struct {
	ID             string           `json:"id"`
	PlaybookID     string           `json:"playbook_id"`
	DecisionID     string           `json:"decision_id"`
	StartedAt      time.Time        `json:"started_at"`
	CompletedAt    time.Time        `json:"completed_at"`
	Outcome        ExecutionOutcome `json:"outcome"`
	DurationS      float64          `json:"duration_s"`
	StepsAttempted int              `json:"steps_attempted"`
	StepsCompleted int              `json:"steps_completed"`
	Error          string           `json:"error,omitempty"`
	Feedback       string           `json:"feedback,omitempty"`
}
