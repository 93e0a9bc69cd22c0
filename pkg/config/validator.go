package config

import (
	"fmt"
	"os"

	"github.com/codeready-toolchain/strands/pkg/decision"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/masking"
)

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: system → providers → upstreams → pipeline.
	// This surfaces wiring problems before tuning problems.

	if err := v.validateSystem(); err != nil {
		return fmt.Errorf("system validation failed: %w", err)
	}

	if err := v.validateProviders(); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}

	if err := v.validateUpstreams(); err != nil {
		return fmt.Errorf("upstream validation failed: %w", err)
	}

	if err := v.validateDecision(); err != nil {
		return fmt.Errorf("decision validation failed: %w", err)
	}

	if err := v.validateSwarm(); err != nil {
		return fmt.Errorf("swarm validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	if err := v.validateMasking(); err != nil {
		return fmt.Errorf("masking validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateSystem() error {
	sys := v.cfg.System

	if sys.HTTPPort < 1 || sys.HTTPPort > 65535 {
		return NewValidationError("system", "system", "http_port", fmt.Errorf("%w: %d", ErrInvalidValue, sys.HTTPPort))
	}

	if !sys.LogLevel.IsValid() {
		return NewValidationError("system", "system", "log_level", fmt.Errorf("%w: %s", ErrInvalidValue, sys.LogLevel))
	}

	if sys.TickInterval <= 0 {
		return NewValidationError("system", "system", "tick_interval", fmt.Errorf("must be positive"))
	}

	if sys.SystemIdentity == "" {
		return NewValidationError("system", "system", "system_identity", ErrMissingRequiredField)
	}

	return nil
}

func (v *ConfigValidator) validateProviders() error {
	enabled := 0
	for _, p := range v.cfg.Providers {
		if !p.Kind.IsValid() {
			return NewValidationError("provider", p.Name, "kind", fmt.Errorf("%w: %s", ErrInvalidValue, p.Kind))
		}

		// Grafana is the only pull provider without a built-in endpoint.
		if p.Kind == ProviderKindGrafana && p.Enabled && p.Endpoint == "" {
			return NewValidationError("provider", p.Name, "endpoint", ErrMissingRequiredField)
		}

		for label, severity := range p.SeverityMap {
			if !severity.Valid() {
				return NewValidationError("provider", p.Name, "severity_map",
					fmt.Errorf("%w: label %q maps to unknown severity %q", ErrInvalidValue, label, severity))
			}
		}

		// Compile here so a bad pattern fails startup, not the first tick.
		if _, err := ingest.CompilePatterns(p.ServicePatterns); err != nil {
			return NewValidationError("provider", p.Name, "service_patterns", err)
		}

		if p.Enabled {
			enabled++
		}
	}

	if enabled == 0 {
		return NewValidationError("provider", "providers", "", fmt.Errorf("at least one enabled provider required"))
	}

	return nil
}

func (v *ConfigValidator) validateUpstreams() error {
	if v.cfg.Graph.URI == "" {
		return NewValidationError("graph", "graph", "uri", ErrMissingRequiredField)
	}

	if v.cfg.Vector.Port < 1 || v.cfg.Vector.Port > 65535 {
		return NewValidationError("vector", "vector", "port", fmt.Errorf("%w: %d", ErrInvalidValue, v.cfg.Vector.Port))
	}
	if v.cfg.Vector.Dimension == 0 {
		return NewValidationError("vector", "vector", "dimension", fmt.Errorf("must be positive"))
	}

	if v.usesKind(ProviderKindPrometheus) && v.cfg.Metrics.URL == "" {
		return NewValidationError("metrics", "metrics", "url",
			fmt.Errorf("%w: required by the prometheus provider", ErrMissingRequiredField))
	}

	return nil
}

func (v *ConfigValidator) validateDecision() error {
	d := v.cfg.Decision

	if d.PolicyName != "" {
		if _, err := decision.PolicyByName(d.PolicyName); err != nil {
			return NewValidationError("decision", "decision", "policy_name", err)
		}
	}

	if d.DefaultAutomation != "" && d.DefaultAutomation.Rank() < 0 {
		return NewValidationError("decision", "decision", "default_automation",
			fmt.Errorf("%w: %s", ErrInvalidValue, d.DefaultAutomation))
	}

	if err := checkUnit("dominance_threshold", d.DominanceThreshold); err != nil {
		return err
	}
	if err := checkUnit("conflict_penalty", d.ConflictPenalty); err != nil {
		return err
	}
	if err := checkUnit("degraded_confidence_cap", d.DegradedConfidenceCap); err != nil {
		return err
	}

	// A missing weights file is a configuration mistake, not something
	// to discover when the first decision fuses.
	if d.WeightsFile != "" {
		if _, err := os.Stat(d.WeightsFile); err != nil {
			return NewValidationError("decision", "decision", "weights_file", err)
		}
	}

	return nil
}

func (v *ConfigValidator) validateSwarm() error {
	if v.cfg.Swarm.GlobalDeadline <= 0 {
		return NewValidationError("swarm", "swarm", "global_deadline", fmt.Errorf("must be positive"))
	}
	return nil
}

func (v *ConfigValidator) validateMasking() error {
	// Resolving the rule set finds unknown groups, unknown pattern
	// names, and custom regexes that do not compile.
	if err := masking.ValidateConfig(v.cfg.Masking); err != nil {
		return NewValidationError("masking", "masking", "", err)
	}
	return nil
}

func (v *ConfigValidator) validateRetention() error {
	r := v.cfg.Retention

	// Zero disables a pass; negative windows are always a mistake.
	if r.ClusterRetention < 0 {
		return NewValidationError("retention", "retention", "cluster_retention", fmt.Errorf("must not be negative"))
	}
	if r.DecisionRetention < 0 {
		return NewValidationError("retention", "retention", "decision_retention", fmt.Errorf("must not be negative"))
	}
	if r.ExecutionRetention < 0 {
		return NewValidationError("retention", "retention", "execution_retention", fmt.Errorf("must not be negative"))
	}
	if r.Interval <= 0 {
		return NewValidationError("retention", "retention", "interval", fmt.Errorf("must be positive"))
	}
	return nil
}

// checkUnit rejects tuning values outside [0,1].
func checkUnit(field string, value float64) error {
	if value < 0 || value > 1 {
		return NewValidationError("decision", "decision", field, fmt.Errorf("%w: %v not in [0,1]", ErrInvalidValue, value))
	}
	return nil
}

// usesKind reports whether any enabled provider is of the given kind.
func (v *ConfigValidator) usesKind(kind ProviderKind) bool {
	for _, p := range v.cfg.Providers {
		if p.Enabled && p.Kind == kind {
			return true
		}
	}
	return false
}
