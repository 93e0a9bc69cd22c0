package config

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// applyEnv applies environment overrides onto the resolved configuration.
// The environment wins over strands.yaml so a deployment can retune one
// setting without editing the file.
//
// Recognised variables:
//
//	GRAPH_URL, GRAPH_USER, GRAPH_PASSWORD
//	VECTOR_URL (host:port)
//	METRICS_URL, GENERATOR_URL
//	LOG_LEVEL, HTTP_PORT, AUDIT_LOG_PATH
//	TICK_INTERVAL_S, GLOBAL_DEADLINE_S (integer seconds)
//	POLICY_NAME, MODEL_VERSION, WEIGHTS_FILE, DEFAULT_AUTOMATION
//	REPLAY_SEED, MASKING_ENABLED
//	PROVIDER_<NAME>_URL, _TOKEN, _PRIORITY, _ENABLED (per provider)
func applyEnv(cfg *Config) {
	envString("GRAPH_URL", &cfg.Graph.URI)
	envString("GRAPH_USER", &cfg.Graph.Username)
	envString("GRAPH_PASSWORD", &cfg.Graph.Password)
	envHostPort("VECTOR_URL", &cfg.Vector.Host, &cfg.Vector.Port)
	envString("METRICS_URL", &cfg.Metrics.URL)
	envString("GENERATOR_URL", &cfg.Generator.BaseURL)

	var level string
	if envString("LOG_LEVEL", &level) {
		cfg.System.LogLevel = LogLevel(strings.ToLower(level))
	}
	envInt("HTTP_PORT", &cfg.System.HTTPPort)
	envString("AUDIT_LOG_PATH", &cfg.System.AuditLogPath)
	envSeconds("TICK_INTERVAL_S", &cfg.System.TickInterval)
	envInt64("REPLAY_SEED", &cfg.System.ReplaySeed)

	envSeconds("GLOBAL_DEADLINE_S", &cfg.Swarm.GlobalDeadline)
	envBool("MASKING_ENABLED", &cfg.Masking.Enabled)

	envString("POLICY_NAME", &cfg.Decision.PolicyName)
	envString("MODEL_VERSION", &cfg.Decision.ModelVersion)
	envString("WEIGHTS_FILE", &cfg.Decision.WeightsFile)
	var automation string
	if envString("DEFAULT_AUTOMATION", &automation) {
		cfg.Decision.DefaultAutomation = models.AutomationLevel(strings.ToUpper(automation))
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		prefix := "PROVIDER_" + envKey(p.Name) + "_"
		envString(prefix+"URL", &p.Endpoint)
		envString(prefix+"TOKEN", &p.Token)
		envInt(prefix+"PRIORITY", &p.Priority)
		envBool(prefix+"ENABLED", &p.Enabled)
	}
}

// envKey converts a provider name into its environment variable segment:
// uppercased, with every non-alphanumeric run collapsed to underscores.
func envKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func envString(key string, dst *string) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false
	}
	*dst = v
	return true
}

func envInt(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, ignoring", "key", key, "value", v)
		return
	}
	*dst = n
}

func envInt64(key string, dst *int64) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("Invalid integer in environment, ignoring", "key", key, "value", v)
		return
	}
	*dst = n
}

func envBool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Invalid boolean in environment, ignoring", "key", key, "value", v)
		return
	}
	*dst = b
}

func envSeconds(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("Invalid seconds value in environment, ignoring", "key", key, "value", v)
		return
	}
	*dst = time.Duration(n) * time.Second
}

func envHostPort(key string, host *string, port *int) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	// Accept either host:port or a bare host.
	h, p, err := net.SplitHostPort(v)
	if err != nil {
		*host = v
		return
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		slog.Warn("Invalid port in environment, ignoring", "key", key, "value", v)
		return
	}
	*host = h
	*port = n
}
