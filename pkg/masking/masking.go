// Package masking scrubs secrets from alert payloads before they enter
// the pipeline, so credentials leaked into monitoring labels or
// annotations never reach the graph, the audit trail, or a generator
// prompt. Masking is fail-open: data that cannot be processed passes
// through unchanged rather than stalling ingestion.
package masking

import (
	"log/slog"

	"github.com/codeready-toolchain/strands/pkg/faults"
)

// maskedValue replaces the value of a sensitively named label.
const maskedValue = "__MASKED_SECRET__"

// Masker is a structural masker that understands a data shape beyond
// what a regex can express, such as Kubernetes Secret manifests.
type Masker interface {
	// Name is the identifier pattern groups reference.
	Name() string

	// AppliesTo is a cheap pre-check; Mask runs only when it returns true.
	AppliesTo(data string) bool

	// Mask scrubs the data. Implementations return the input unchanged
	// when it does not parse.
	Mask(data string) string
}

// Config selects which rules run. The zero value disables masking.
type Config struct {
	Enabled        bool            `yaml:"enabled"`
	PatternGroups  []string        `yaml:"pattern_groups"`
	Patterns       []string        `yaml:"patterns"`
	CustomPatterns []CustomPattern `yaml:"custom_patterns"`
}

// CustomPattern is an operator-supplied regex rule.
type CustomPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// DefaultConfig enables the kubernetes group: the structural Secret
// masker plus the credential patterns that rarely false-positive on
// alert text.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		PatternGroups: []string{"kubernetes"},
	}
}

// Service applies the resolved rule set. A nil *Service passes data
// through unchanged, so callers wire masking unconditionally and the
// disabled case costs nothing.
type Service struct {
	maskers  []Masker
	patterns []*Pattern
	logger   *slog.Logger
}

// New resolves the configured groups, named patterns, and custom
// patterns into an ordered rule set. Unknown names and uncompilable
// custom regexes are configuration errors.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	maskers, patterns, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Masking rules resolved",
		"enabled", cfg.Enabled,
		"maskers", len(maskers),
		"patterns", len(patterns))
	return &Service{maskers: maskers, patterns: patterns, logger: logger}, nil
}

// ValidateConfig reports whether the configuration resolves: every
// referenced group and pattern exists and every custom regex compiles.
func ValidateConfig(cfg Config) error {
	_, _, err := resolve(cfg)
	return err
}

// MaskText runs the structural maskers, then the regex sweep.
func (s *Service) MaskText(text string) string {
	if s == nil || text == "" {
		return text
	}
	masked := text
	for _, m := range s.maskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// MaskLabels masks the values of a label set, returning a new map. A
// value is blanked outright when its key names a credential; otherwise
// it gets the same sweep as free text. Keys stay untouched since they
// are the lookup surface.
func (s *Service) MaskLabels(labels map[string]string) map[string]string {
	if s == nil || len(labels) == 0 {
		return labels
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		if v != "" && sensitiveKeyPattern.MatchString(k) {
			out[k] = maskedValue
			continue
		}
		out[k] = s.MaskText(v)
	}
	return out
}

// Resolution failures are configuration mistakes, not runtime faults.
func newResolveError(format string, args ...any) error {
	return faults.Newf(faults.KindValidationFailed, "masking.resolve", format, args...)
}
