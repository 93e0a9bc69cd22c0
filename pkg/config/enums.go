package config

// ProviderKind selects the alert provider implementation.
type ProviderKind string

const (
	// ProviderKindPrometheus polls the metrics backend's alerts endpoint.
	ProviderKindPrometheus ProviderKind = "prometheus"
	// ProviderKindGrafana polls a Grafana alertmanager-compatible endpoint.
	ProviderKindGrafana ProviderKind = "grafana"
	// ProviderKindWebhook buffers alerts pushed through the HTTP API.
	ProviderKindWebhook ProviderKind = "webhook"
)

// IsValid checks if the provider kind is valid.
func (k ProviderKind) IsValid() bool {
	switch k {
	case ProviderKindPrometheus, ProviderKindGrafana, ProviderKindWebhook:
		return true
	default:
		return false
	}
}

// LogLevel names a slog level in configuration.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid checks if the log level is valid.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}
