// Package ingest turns provider-native alerts into normalised, deduplicated
// alert clusters. Providers are polled in priority order; the first one that
// answers wins the cycle. Normalisation maps severities, extracts the
// owning service, fingerprints for deduplication, and groups the survivors
// into clusters by service and five-minute window.
package ingest

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// RawAlert is a provider-native alert before normalisation.
type RawAlert struct {
	Fingerprint string
	Labels      map[string]string
	Annotations map[string]string
	Severity    string
	Description string
	StartsAt    time.Time
	Status      string
}

// Recipe tells the normaliser how to read one provider's alerts.
type Recipe struct {
	// SeverityMap translates provider severities to canonical ones.
	// Lookup is case-insensitive. An empty map falls back to parsing
	// the value as a canonical severity directly.
	SeverityMap map[string]models.Severity

	// ServicePatterns are tried in order against the alert description
	// when no service label is present. The first submatch (or the full
	// match) names the service.
	ServicePatterns []*regexp.Regexp
}

// Provider is one source of alerts.
type Provider interface {
	// Name identifies the provider in logs and stats.
	Name() string

	// Priority orders providers; higher is tried first.
	Priority() int

	// ListActive returns the provider's current alerts and the recipe
	// to normalise them. An empty list with a nil error is a valid
	// answer and still wins the cycle.
	ListActive(ctx context.Context) ([]RawAlert, Recipe, error)
}

// Registry holds the configured providers in polling order.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry from the given providers, ordered by
// priority descending, name ascending.
func NewRegistry(providers ...Provider) (*Registry, error) {
	seen := map[string]bool{}
	for _, p := range providers {
		if p == nil {
			return nil, faults.New(faults.KindValidationFailed, "ingest.NewRegistry", "nil provider")
		}
		if seen[p.Name()] {
			return nil, faults.Newf(faults.KindValidationFailed, "ingest.NewRegistry",
				"duplicate provider %q", p.Name())
		}
		seen[p.Name()] = true
	}
	ordered := make([]Provider, len(providers))
	copy(ordered, providers)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority() != ordered[j].Priority() {
			return ordered[i].Priority() > ordered[j].Priority()
		}
		return ordered[i].Name() < ordered[j].Name()
	})
	return &Registry{providers: ordered}, nil
}

// Providers returns the providers in polling order.
func (r *Registry) Providers() []Provider {
	return r.providers
}

// CompilePatterns compiles service-extraction patterns, rejecting
// invalid expressions at configuration time.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, faults.Wrap(faults.KindValidationFailed, "ingest.CompilePatterns",
				"invalid service pattern "+p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
