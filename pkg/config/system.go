package config

import (
	"log/slog"
	"time"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// SystemConfig holds resolved system-wide settings.
type SystemConfig struct {
	// HTTPPort is the API listen port (default: 8080).
	HTTPPort int

	// LogLevel controls slog verbosity (default: "info").
	LogLevel LogLevel

	// TickInterval is the controller cycle period (default: 30s).
	TickInterval time.Duration

	// SystemIdentity is the reviewer identity recorded on automated
	// approvals (default: "strands-controller").
	SystemIdentity string

	// AuditLogPath is the JSONL audit trail destination. Empty writes
	// the trail to stdout.
	AuditLogPath string

	// ReplayDir is where replay ledgers are recorded (default: "replay").
	ReplayDir string

	// ReplaySeed pins deterministic randomness for replay sessions.
	ReplaySeed int64
}

// SlogLevel translates the configured log level for handler setup.
// Unknown values fall back to info.
func (s SystemConfig) SlogLevel() slog.Level {
	switch s.LogLevel {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultSystemConfig returns the built-in system defaults.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		HTTPPort:       8080,
		LogLevel:       LogLevelInfo,
		TickInterval:   30 * time.Second,
		SystemIdentity: "strands-controller",
		ReplayDir:      "replay",
	}
}

// ProviderConfig holds one resolved alert provider declaration.
type ProviderConfig struct {
	Name            string
	Kind            ProviderKind
	Enabled         bool
	Endpoint        string
	Token           string
	Priority        int
	QueueSize       int
	SeverityMap     map[string]models.Severity
	ServicePatterns []string
}
