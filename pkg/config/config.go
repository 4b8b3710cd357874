package config

import "time"

// Config is the root configuration structure for Oppilot.
// It contains all configuration sections for providers, pools, the task
// classifier, dispatch behavior, persisted state, the HTTP server, the
// supervisor daemon, and telemetry.
type Config struct {
	// Providers contains configuration for all LLM provider integrations.
	// Keys are provider names (e.g., "openai", "anthropic", "google").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Pools defines the ordered failover pools (primary, secondary,
	// emergency) as lists of "provider/model" references.
	Pools PoolsConfig `yaml:"pools"`

	// Classifier contains additional keyword tables merged into the
	// built-in task classifier.
	Classifier ClassifierConfig `yaml:"classifier"`

	// Dispatch contains tuning for the failover cascade.
	Dispatch DispatchConfig `yaml:"dispatch"`

	// Override contains settings for the manual model override.
	Override OverrideConfig `yaml:"override"`

	// State contains paths for persisted engine state.
	State StateConfig `yaml:"state"`

	// Server contains HTTP server configuration for the completions
	// endpoint and status/metrics handlers.
	Server ServerConfig `yaml:"server"`

	// Supervisor contains schedules for the background daemon.
	Supervisor SupervisorConfig `yaml:"supervisor"`

	// Telemetry contains observability configuration (logging, metrics).
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig contains configuration for a single LLM provider.
type ProviderConfig struct {
	// BaseURL is the base URL for the provider's API endpoint.
	// Example: "https://api.openai.com/v1"
	BaseURL string `yaml:"base_url"`

	// Type selects the wire protocol used to talk to the provider.
	// Options: "openai" (OpenAI-compatible chat completions), "anthropic"
	// (messages API), "google" (generateContent API).
	// Default: "openai"
	Type string `yaml:"type"`

	// APIKeys lists credentials inline. Most deployments leave this empty
	// and rely on the <PROVIDER>_API_KEYS environment variable or the
	// JSON credential file instead.
	APIKeys []string `yaml:"api_keys"`

	// CostTier marks the provider as "free" or "paid". Used only for
	// status reporting; pool membership decides failover order.
	// Default: "paid"
	CostTier string `yaml:"cost_tier"`

	// Language tags a provider specialized for a language (e.g., "zh").
	Language string `yaml:"language"`

	// Timeout is the maximum duration for full completion requests.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// Models lists the models this provider exposes to the pools.
	Models []ModelConfig `yaml:"models"`
}

// ModelConfig describes a single model offered by a provider.
type ModelConfig struct {
	// ID is the provider-side model identifier (e.g., "gpt-4o").
	ID string `yaml:"id"`

	// Capabilities lists the task categories this model is suited for
	// (e.g., "coding", "research", "fast"). Pool candidates are filtered
	// by these tags.
	Capabilities []string `yaml:"capabilities"`
}

// PoolsConfig defines the three failover pools. Entries are
// "provider/model" references in priority order.
type PoolsConfig struct {
	// Primary is tried first, filtered by task category.
	Primary []string `yaml:"primary"`

	// Secondary is tried after Primary, also filtered by category.
	Secondary []string `yaml:"secondary"`

	// Emergency is the universal backstop, appended regardless of
	// category match. Typically an aggregator provider.
	Emergency []string `yaml:"emergency"`
}

// ClassifierConfig extends the built-in keyword tables.
type ClassifierConfig struct {
	// Keywords maps a category name to extra weighted keywords merged
	// into the built-in table for that category.
	Keywords map[string][]KeywordConfig `yaml:"keywords"`
}

// KeywordConfig is a single weighted classifier keyword.
type KeywordConfig struct {
	// Phrase is matched case-insensitively as a substring.
	Phrase string `yaml:"phrase"`

	// Weight is added to the category score on match.
	// Default: 1
	Weight int `yaml:"weight"`
}

// DispatchConfig tunes the failover cascade.
type DispatchConfig struct {
	// PreflightTimeout bounds the liveness probe sent before committing
	// to a full provider call.
	// Default: 1.5s
	PreflightTimeout time.Duration `yaml:"preflight_timeout"`

	// RateLimitCooldown is how long a credential is excluded after a
	// rate-limit response.
	// Default: 10m
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`

	// FailureCooldown is how long a credential is excluded after
	// FailureThreshold consecutive failures.
	// Default: 2m
	FailureCooldown time.Duration `yaml:"failure_cooldown"`

	// FailureThreshold is the consecutive-failure count that triggers
	// FailureCooldown.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`
}

// OverrideConfig contains settings for the pinned-model override.
type OverrideConfig struct {
	// DefaultTTL is how long an override stays active when no TTL is
	// given to `oppilot override set`.
	// Default: 24h
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// StateConfig contains paths for persisted engine state.
type StateConfig struct {
	// Dir is the base directory for state files.
	// Default: "~/.config/oppilot" expanded at load time.
	Dir string `yaml:"dir"`

	// CredentialFile is an optional JSON file mapping provider names to
	// key lists, merged with environment credentials.
	CredentialFile string `yaml:"credential_file"`

	// JournalPath is the SQLite dispatch journal location.
	// Default: <dir>/journal.db
	JournalPath string `yaml:"journal_path"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8787"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	// Default: 120s (provider calls can be slow)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SupervisorConfig contains schedules for the background daemon.
type SupervisorConfig struct {
	// WarmSchedule is a cron expression for periodic credential warm
	// probes that keep the health cache fresh.
	// Default: "@every 5m". Empty disables warming.
	WarmSchedule string `yaml:"warm_schedule"`

	// PruneSchedule is a cron expression for journal retention pruning.
	// Default: "0 3 * * *" (daily at 3 AM). Empty disables pruning.
	PruneSchedule string `yaml:"prune_schedule"`

	// RetentionDays is how long journal entries are kept.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "text"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics handler.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the Prometheus metric namespace.
	// Default: "oppilot"
	Namespace string `yaml:"namespace"`
}
