package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, loads provider credentials from the environment
// and the optional credential file, validates the configuration, and returns
// any errors. Use LoadConfigWithEnvOverrides to additionally honor
// OPPILOT_SECTION_FIELD environment variables.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := loadCredentials(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention OPPILOT_SECTION_FIELD (e.g., OPPILOT_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Load provider credentials (env vars, then credential file)
// 4. Apply environment variable overrides
// 5. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// loadCredentials merges provider API keys from <PROVIDER>_API_KEYS
// environment variables and the optional JSON credential file into the
// configuration. Keys listed inline in YAML are kept; environment and file
// keys are appended in that order, with duplicates removed.
func loadCredentials(cfg *Config) error {
	fileKeys, err := readCredentialFile(cfg.State.CredentialFile)
	if err != nil {
		return err
	}

	for name, provider := range cfg.Providers {
		keys := provider.APIKeys
		keys = append(keys, ParseKeyList(os.Getenv(credentialEnvVar(name)))...)
		keys = append(keys, fileKeys[name]...)
		provider.APIKeys = dedupeKeys(keys)
		cfg.Providers[name] = provider
	}

	return nil
}

// credentialEnvVar returns the environment variable name holding API keys
// for the given provider, e.g. "openai" -> "OPENAI_API_KEYS".
func credentialEnvVar(provider string) string {
	name := strings.ToUpper(provider)
	name = strings.ReplaceAll(name, "-", "_")
	return name + "_API_KEYS"
}

// ParseKeyList splits a credential list on whitespace and commas.
// Both "k1 k2" and "k1,k2" are accepted; empty entries are dropped.
func ParseKeyList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			keys = append(keys, f)
		}
	}
	return keys
}

// readCredentialFile reads a JSON file mapping provider names to key lists.
// A missing file is not an error; an unreadable or malformed one is.
func readCredentialFile(path string) (map[string][]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential file %q: %w", path, err)
	}

	var keys map[string][]string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse credential file %q: %w", path, err)
	}

	return keys, nil
}

func dedupeKeys(keys []string) []string {
	if len(keys) == 0 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format OPPILOT_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// State overrides
	if val := os.Getenv("OPPILOT_STATE_DIR"); val != "" {
		cfg.State.Dir = val
	}
	if val := os.Getenv("OPPILOT_STATE_CREDENTIAL_FILE"); val != "" {
		cfg.State.CredentialFile = val
	}
	if val := os.Getenv("OPPILOT_STATE_JOURNAL_PATH"); val != "" {
		cfg.State.JournalPath = val
	}

	// Dispatch overrides
	if val := os.Getenv("OPPILOT_DISPATCH_PREFLIGHT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Dispatch.PreflightTimeout = d
		}
	}
	if val := os.Getenv("OPPILOT_DISPATCH_RATE_LIMIT_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Dispatch.RateLimitCooldown = d
		}
	}
	if val := os.Getenv("OPPILOT_DISPATCH_FAILURE_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Dispatch.FailureCooldown = d
		}
	}
	if val := os.Getenv("OPPILOT_DISPATCH_FAILURE_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Dispatch.FailureThreshold = i
		}
	}

	// Override overrides
	if val := os.Getenv("OPPILOT_OVERRIDE_DEFAULT_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Override.DefaultTTL = d
		}
	}

	// Server overrides
	if val := os.Getenv("OPPILOT_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("OPPILOT_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("OPPILOT_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Supervisor overrides
	if val := os.Getenv("OPPILOT_SUPERVISOR_WARM_SCHEDULE"); val != "" {
		cfg.Supervisor.WarmSchedule = val
	}
	if val := os.Getenv("OPPILOT_SUPERVISOR_PRUNE_SCHEDULE"); val != "" {
		cfg.Supervisor.PruneSchedule = val
	}
	if val := os.Getenv("OPPILOT_SUPERVISOR_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Supervisor.RetentionDays = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("OPPILOT_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("OPPILOT_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("OPPILOT_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("OPPILOT_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}

	// Provider overrides apply to every configured provider
	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}
}

// applyProviderEnvOverrides applies environment variable overrides for a
// specific provider. Provider environment variables follow the format
// OPPILOT_PROVIDERS_<NAME>_<FIELD> where NAME is the uppercase provider name.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	provider := cfg.Providers[providerName]
	prefix := fmt.Sprintf("OPPILOT_PROVIDERS_%s_", strings.ReplaceAll(strings.ToUpper(providerName), "-", "_"))

	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
	}
	if val := os.Getenv(prefix + "TYPE"); val != "" {
		provider.Type = val
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.Timeout = d
		}
	}

	cfg.Providers[providerName] = provider
}
