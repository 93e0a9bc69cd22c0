package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/strands/pkg/cleanup"
	"github.com/codeready-toolchain/strands/pkg/decision"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/llm"
	"github.com/codeready-toolchain/strands/pkg/masking"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/resilience"
	"github.com/codeready-toolchain/strands/pkg/swarm"
	"github.com/codeready-toolchain/strands/pkg/vector"
)

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load strands.yaml from configDir
//  2. Expand environment variables ({{.VAR}} template syntax)
//  3. Parse YAML into structs
//  4. Merge user-defined sections over built-in defaults
//  5. Apply environment overrides (env wins over YAML)
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	// 1. Load and resolve configuration files
	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Apply environment overrides
	applyEnv(cfg)

	// 3. Validate all configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"providers", stats.Providers,
		"enabled_providers", stats.EnabledProviders,
		"policy", cfg.Decision.PolicyName,
		"tick_interval", cfg.System.TickInterval)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{
		configDir: configDir,
	}

	raw, err := loader.loadStrandsYAML()
	if err != nil {
		return nil, NewLoadError("strands.yaml", err)
	}

	cfg := &Config{
		configDir:  configDir,
		System:     resolveSystem(raw.System),
		Providers:  resolveProviders(raw.Providers),
		Ingest:     resolveIngest(raw.Ingest),
		Masking:    resolveMasking(raw.Masking),
		Graph:      resolveGraph(raw.Graph),
		Decision:   resolveDecision(raw.Decision),
		Swarm:      resolveSwarm(raw.Swarm),
		Retention:  resolveRetention(raw.Retention),
		resilience: resolveResilience(raw.Resilience),
	}

	// Upstream sections merge over their package defaults so a partial
	// section keeps the unset fields.
	cfg.Vector = vector.DefaultConfig()
	if raw.Vector != nil {
		if err := mergo.Merge(&cfg.Vector, *raw.Vector, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge vector config: %w", err)
		}
	}
	cfg.Generator = llm.DefaultConfig()
	if raw.Generator != nil {
		if err := mergo.Merge(&cfg.Generator, *raw.Generator, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge generator config: %w", err)
		}
	}
	if raw.Metrics != nil {
		cfg.Metrics = *raw.Metrics
	}

	return cfg, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes through original data on parse/execution errors,
	// letting the YAML parser produce the clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadStrandsYAML() (*StrandsYAMLConfig, error) {
	var config StrandsYAMLConfig

	// Initialize maps to avoid nil maps
	config.Providers = make(map[string]ProviderYAMLConfig)
	config.Resilience = make(map[string]ResilienceYAMLConfig)

	if err := l.loadYAML("strands.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// resolveSystem resolves system settings from YAML, applying defaults.
func resolveSystem(sys *SystemYAMLConfig) SystemConfig {
	cfg := DefaultSystemConfig()

	if sys == nil {
		return cfg
	}

	if sys.HTTPPort != 0 {
		cfg.HTTPPort = sys.HTTPPort
	}
	if sys.LogLevel != "" {
		cfg.LogLevel = LogLevel(sys.LogLevel)
	}
	if sys.TickInterval != "" {
		cfg.TickInterval = parseDuration("system.tick_interval", sys.TickInterval, cfg.TickInterval)
	}
	if sys.SystemIdentity != "" {
		cfg.SystemIdentity = sys.SystemIdentity
	}
	if sys.AuditLogPath != "" {
		cfg.AuditLogPath = sys.AuditLogPath
	}
	if sys.ReplayDir != "" {
		cfg.ReplayDir = sys.ReplayDir
	}
	cfg.ReplaySeed = sys.ReplaySeed

	return cfg
}

// resolveProviders resolves provider declarations from YAML, applying
// per-kind defaults. The result is ordered by name so wiring is
// deterministic run to run.
func resolveProviders(providers map[string]ProviderYAMLConfig) []ProviderConfig {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ProviderConfig, 0, len(names))
	for _, name := range names {
		p := providers[name]
		resolved := ProviderConfig{
			Name:            name,
			Kind:            p.Kind,
			Enabled:         p.Enabled == nil || *p.Enabled,
			Endpoint:        p.Endpoint,
			Token:           p.Token,
			Priority:        p.Priority,
			QueueSize:       p.QueueSize,
			SeverityMap:     p.SeverityMap,
			ServicePatterns: p.ServicePatterns,
		}
		if resolved.SeverityMap == nil {
			resolved.SeverityMap = defaultSeverityMap()
		}
		if resolved.Kind == ProviderKindWebhook && resolved.QueueSize == 0 {
			resolved.QueueSize = DefaultWebhookQueueSize
		}
		out = append(out, resolved)
	}
	return out
}

// resolveIngest resolves normalisation settings from YAML, applying defaults.
func resolveIngest(in *IngestYAMLConfig) ingest.NormalizerConfig {
	cfg := ingest.DefaultNormalizerConfig()

	if in == nil {
		return cfg
	}

	if in.DedupWindow != "" {
		cfg.DedupWindow = parseDuration("ingest.dedup_window", in.DedupWindow, cfg.DedupWindow)
	}

	return cfg
}

// resolveMasking resolves masking rules from YAML, applying defaults.
// Declaring pattern_groups replaces the default group set rather than
// extending it.
func resolveMasking(m *MaskingYAMLConfig) masking.Config {
	cfg := masking.DefaultConfig()

	if m == nil {
		return cfg
	}

	cfg.Enabled = m.Enabled == nil || *m.Enabled
	if len(m.PatternGroups) > 0 {
		cfg.PatternGroups = m.PatternGroups
	}
	cfg.Patterns = m.Patterns
	for _, cp := range m.CustomPatterns {
		cfg.CustomPatterns = append(cfg.CustomPatterns, masking.CustomPattern{
			Name:        cp.Name,
			Pattern:     cp.Pattern,
			Replacement: cp.Replacement,
		})
	}

	return cfg
}

// resolveGraph resolves graph store settings from YAML.
func resolveGraph(g *graph.Config) graph.Config {
	if g == nil {
		return graph.Config{}
	}
	return *g
}

// resolveDecision resolves decision engine settings from YAML. Zero
// values stay zero here; the engine fills its own defaults so replay can
// reconstruct them from a snapshot the same way.
func resolveDecision(d *DecisionYAMLConfig) decision.Config {
	if d == nil {
		return decision.Config{}
	}

	cfg := decision.Config{
		PolicyName:            d.PolicyName,
		DefaultAutomation:     models.AutomationLevel(d.DefaultAutomation),
		ModelVersion:          d.ModelVersion,
		WeightsFile:           d.WeightsFile,
		DominanceThreshold:    d.DominanceThreshold,
		ConflictPenalty:       d.ConflictPenalty,
		DegradedConfidenceCap: d.DegradedConfidenceCap,
	}
	if d.Budget != "" {
		cfg.Budget = parseDuration("decision.budget", d.Budget, 0)
	}
	return cfg
}

// resolveSwarm resolves orchestrator settings from YAML, applying defaults.
func resolveSwarm(s *SwarmYAMLConfig) swarm.Config {
	cfg := swarm.DefaultConfig()

	if s == nil {
		return cfg
	}

	if s.GlobalDeadline != "" {
		cfg.GlobalDeadline = parseDuration("swarm.global_deadline", s.GlobalDeadline, cfg.GlobalDeadline)
	}

	return cfg
}

// resolveRetention resolves graph retention windows from YAML, applying
// defaults. An explicit "0" disables that pruning pass.
func resolveRetention(r *RetentionYAMLConfig) cleanup.Config {
	cfg := cleanup.DefaultConfig()

	if r == nil {
		return cfg
	}

	if r.ClusterRetention != "" {
		cfg.ClusterRetention = parseDuration("retention.cluster_retention", r.ClusterRetention, cfg.ClusterRetention)
	}
	if r.DecisionRetention != "" {
		cfg.DecisionRetention = parseDuration("retention.decision_retention", r.DecisionRetention, cfg.DecisionRetention)
	}
	if r.ExecutionRetention != "" {
		cfg.ExecutionRetention = parseDuration("retention.execution_retention", r.ExecutionRetention, cfg.ExecutionRetention)
	}
	if r.Interval != "" {
		cfg.Interval = parseDuration("retention.interval", r.Interval, cfg.Interval)
	}

	return cfg
}

// resolveResilience resolves per-upstream retry and breaker overrides
// onto the built-in defaults.
func resolveResilience(overrides map[string]ResilienceYAMLConfig) map[string]resilience.Config {
	out := make(map[string]resilience.Config, len(overrides))
	for upstream, o := range overrides {
		cfg := resilience.DefaultConfig()
		if o.MaxAttempts != 0 {
			cfg.MaxAttempts = o.MaxAttempts
		}
		if o.CallTimeout != "" {
			cfg.CallTimeout = parseDuration("resilience."+upstream+".call_timeout", o.CallTimeout, cfg.CallTimeout)
		}
		if o.FailureThreshold != 0 {
			cfg.FailureThreshold = o.FailureThreshold
		}
		if o.RecoveryTimeout != "" {
			cfg.RecoveryTimeout = parseDuration("resilience."+upstream+".recovery_timeout", o.RecoveryTimeout, cfg.RecoveryTimeout)
		}
		out[upstream] = cfg
	}
	return out
}

// parseDuration parses a YAML duration string, warning and keeping the
// fallback when the value does not parse.
func parseDuration(field, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration in config, using default",
			"field", field,
			"value", value,
			"default", fallback,
			"error", err)
		return fallback
	}
	return d
}

// DefaultWebhookQueueSize bounds the webhook provider buffer when the
// declaration does not size it.
const DefaultWebhookQueueSize = 1024

// defaultSeverityMap covers the label spellings the common monitoring
// stacks emit.
func defaultSeverityMap() map[string]models.Severity {
	return map[string]models.Severity{
		"info":     models.SeverityInfo,
		"warning":  models.SeverityWarning,
		"minor":    models.SeverityWarning,
		"high":     models.SeverityHigh,
		"major":    models.SeverityHigh,
		"critical": models.SeverityCritical,
	}
}
