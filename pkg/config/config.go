package config

import (
	"github.com/codeready-toolchain/strands/pkg/cleanup"
	"github.com/codeready-toolchain/strands/pkg/decision"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/llm"
	"github.com/codeready-toolchain/strands/pkg/masking"
	"github.com/codeready-toolchain/strands/pkg/resilience"
	"github.com/codeready-toolchain/strands/pkg/swarm"
	"github.com/codeready-toolchain/strands/pkg/tsdb"
	"github.com/codeready-toolchain/strands/pkg/vector"
)

// Config is the umbrella configuration object holding the resolved
// settings for every subsystem. This is the primary object returned by
// Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// System-wide settings (ports, logging, tick cadence, identities)
	System SystemConfig

	// Alert providers, ordered by name for deterministic wiring
	Providers []ProviderConfig

	// Alert normalisation settings
	Ingest ingest.NormalizerConfig

	// Secret masking rules applied to alert payloads at ingest
	Masking masking.Config

	// Upstream connection settings
	Graph     graph.Config
	Vector    vector.Config
	Metrics   tsdb.Config
	Generator llm.Config

	// Pipeline settings
	Decision  decision.Config
	Swarm     swarm.Config
	Retention cleanup.Config

	// Per-upstream resilience overrides, keyed by upstream name
	resilience map[string]resilience.Config
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Providers        int
	EnabledProviders int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{Providers: len(c.Providers)}
	for _, p := range c.Providers {
		if p.Enabled {
			s.EnabledProviders++
		}
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Provider retrieves an alert provider declaration by name.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, nil
		}
	}
	return ProviderConfig{}, ErrProviderNotFound
}

// EnabledProviders returns the providers that are switched on, in name order.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Resilience returns the retry and breaker policy for the named upstream.
// Upstreams without an override get the built-in defaults.
func (c *Config) Resilience(upstream string) resilience.Config {
	if cfg, ok := c.resilience[upstream]; ok {
		return cfg
	}
	return resilience.DefaultConfig()
}
