package models

import "time"

// ReplayMode selects what a replay run is allowed to touch and which
// report sections it produces.
type ReplayMode string

const (
	// ReplayValidation re-runs historical events against the current
	// engine and reports decision alignment.
	ReplayValidation ReplayMode = "VALIDATION"
	// ReplayTraining replays outcomes into playbook statistics without
	// emitting decisions.
	ReplayTraining ReplayMode = "TRAINING"
	// ReplaySimulation runs the full pipeline against in-memory stores
	// so weight or policy changes can be previewed safely.
	ReplaySimulation ReplayMode = "SIMULATION"
	// ReplayAudit recomputes past decisions and verifies they reproduce
	// byte for byte.
	ReplayAudit ReplayMode = "AUDIT"
)

// Valid reports whether the mode is one of the four known modes.
func (m ReplayMode) Valid() bool {
	switch m {
	case ReplayValidation, ReplayTraining, ReplaySimulation, ReplayAudit:
		return true
	}
	return false
}

// ConfigSnapshot freezes the decision configuration a set of events was
// recorded under: model version, weight matrix, policy, and the seed for
// any pseudo-random draw. Replaying the same events under the same
// snapshot must reproduce the decisions byte for byte.
type ConfigSnapshot struct {
	ModelVersion      string             `json:"model_version"`
	WeightsVersion    string             `json:"weights_version,omitempty"`
	Weights           map[string]float64 `json:"weights,omitempty"`
	PolicyName        string             `json:"policy_name"`
	DefaultAutomation AutomationLevel    `json:"default_automation,omitempty"`
	Seed              int64              `json:"seed"`

	// PlaybookVersions records the active playbook version per key at
	// the time the events were taken.
	PlaybookVersions map[string]string `json:"playbook_versions,omitempty"`

	TakenAt time.Time `json:"taken_at,omitempty"`
}

// ReplayEvent is one line of a recorded incident history: the alert
// that arrived, the investigation roster, the decision the engine
// produced at the time, and the execution outcome if a playbook was
// run. The roster is what makes the event replayable without touching
// the live upstreams.
type ReplayEvent struct {
	Timestamp       time.Time          `json:"timestamp"`
	Alert           Alert              `json:"alert"`
	Cluster         *AlertCluster      `json:"cluster,omitempty"`
	Investigation   []SpecialistResult `json:"investigation,omitempty"`
	Degraded        bool               `json:"degraded,omitempty"`
	Decision        *DecisionCandidate `json:"decision,omitempty"`
	PlaybookID      string             `json:"playbook_id,omitempty"`
	PlaybookVersion string             `json:"playbook_version,omitempty"`
	Outcome         ExecutionOutcome   `json:"outcome,omitempty"`
	DurationS       float64            `json:"duration_s,omitempty"`
	ExecutionID     string             `json:"execution_id,omitempty"`
}
