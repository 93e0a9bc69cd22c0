package config

import (
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/llm"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/tsdb"
	"github.com/codeready-toolchain/strands/pkg/vector"
)

// StrandsYAMLConfig represents the complete strands.yaml file structure.
// Durations are written as strings ("30s", "5m") and parsed during
// resolution; unset sections fall back to built-in defaults.
type StrandsYAMLConfig struct {
	System     *SystemYAMLConfig               `yaml:"system"`
	Providers  map[string]ProviderYAMLConfig   `yaml:"providers"`
	Ingest     *IngestYAMLConfig               `yaml:"ingest"`
	Masking    *MaskingYAMLConfig              `yaml:"masking"`
	Graph      *graph.Config                   `yaml:"graph"`
	Vector     *vector.Config                  `yaml:"vector"`
	Metrics    *tsdb.Config                    `yaml:"metrics"`
	Generator  *llm.Config                     `yaml:"generator"`
	Decision   *DecisionYAMLConfig             `yaml:"decision"`
	Swarm      *SwarmYAMLConfig                `yaml:"swarm"`
	Retention  *RetentionYAMLConfig            `yaml:"retention"`
	Resilience map[string]ResilienceYAMLConfig `yaml:"resilience"`
}

// SystemYAMLConfig groups system-wide settings from YAML.
type SystemYAMLConfig struct {
	HTTPPort       int    `yaml:"http_port,omitempty"`
	LogLevel       string `yaml:"log_level,omitempty"`
	TickInterval   string `yaml:"tick_interval,omitempty"` // Parsed to time.Duration
	SystemIdentity string `yaml:"system_identity,omitempty"`
	AuditLogPath   string `yaml:"audit_log_path,omitempty"`
	ReplayDir      string `yaml:"replay_dir,omitempty"`
	ReplaySeed     int64  `yaml:"replay_seed,omitempty"`
}

// ProviderYAMLConfig declares one alert provider under its map key name.
type ProviderYAMLConfig struct {
	Kind            ProviderKind               `yaml:"kind"`
	Enabled         *bool                      `yaml:"enabled,omitempty"` // Defaults to true if omitted
	Endpoint        string                     `yaml:"endpoint,omitempty"`
	Token           string                     `yaml:"token,omitempty"`
	Priority        int                        `yaml:"priority,omitempty"`
	QueueSize       int                        `yaml:"queue_size,omitempty"`
	SeverityMap     map[string]models.Severity `yaml:"severity_map,omitempty"`
	ServicePatterns []string                   `yaml:"service_patterns,omitempty"`
}

// IngestYAMLConfig holds alert normalisation settings from YAML.
type IngestYAMLConfig struct {
	DedupWindow string `yaml:"dedup_window,omitempty"` // Parsed to time.Duration
}

// MaskingYAMLConfig selects the secret masking rules applied to alert
// payloads before fingerprinting. A missing section keeps the built-in
// kubernetes rules.
type MaskingYAMLConfig struct {
	Enabled        *bool                     `yaml:"enabled,omitempty"` // Defaults to true if omitted
	PatternGroups  []string                  `yaml:"pattern_groups,omitempty"`
	Patterns       []string                  `yaml:"patterns,omitempty"`
	CustomPatterns []CustomPatternYAMLConfig `yaml:"custom_patterns,omitempty"`
}

// CustomPatternYAMLConfig is one operator-supplied masking regex.
type CustomPatternYAMLConfig struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement,omitempty"`
}

// DecisionYAMLConfig holds decision engine settings from YAML.
type DecisionYAMLConfig struct {
	PolicyName            string  `yaml:"policy_name,omitempty"`
	DefaultAutomation     string  `yaml:"default_automation,omitempty"`
	ModelVersion          string  `yaml:"model_version,omitempty"`
	WeightsFile           string  `yaml:"weights_file,omitempty"`
	DominanceThreshold    float64 `yaml:"dominance_threshold,omitempty"`
	ConflictPenalty       float64 `yaml:"conflict_penalty,omitempty"`
	DegradedConfidenceCap float64 `yaml:"degraded_confidence_cap,omitempty"`
	Budget                string  `yaml:"budget,omitempty"` // Parsed to time.Duration
}

// SwarmYAMLConfig holds investigation orchestration settings from YAML.
type SwarmYAMLConfig struct {
	GlobalDeadline string `yaml:"global_deadline,omitempty"` // Parsed to time.Duration
}

// RetentionYAMLConfig holds graph retention windows from YAML. Empty
// windows keep the built-in defaults; "0" disables a pruning pass.
type RetentionYAMLConfig struct {
	ClusterRetention   string `yaml:"cluster_retention,omitempty"`   // Parsed to time.Duration
	DecisionRetention  string `yaml:"decision_retention,omitempty"`  // Parsed to time.Duration
	ExecutionRetention string `yaml:"execution_retention,omitempty"` // Parsed to time.Duration
	Interval           string `yaml:"interval,omitempty"`            // Parsed to time.Duration
}

// ResilienceYAMLConfig overrides retry and breaker settings for one
// upstream. Only the commonly tuned knobs are exposed; everything else
// keeps the built-in defaults.
type ResilienceYAMLConfig struct {
	MaxAttempts      int    `yaml:"max_attempts,omitempty"`
	CallTimeout      string `yaml:"call_timeout,omitempty"` // Parsed to time.Duration
	FailureThreshold uint32 `yaml:"failure_threshold,omitempty"`
	RecoveryTimeout  string `yaml:"recovery_timeout,omitempty"` // Parsed to time.Duration
}
