package config

import (
	"os"
	"path/filepath"
	"time"
)

// Default values applied by ApplyDefaults.
const (
	DefaultProviderType     = "openai"
	DefaultCostTier         = "paid"
	DefaultProviderTimeout  = 60 * time.Second
	DefaultPreflightTimeout = 1500 * time.Millisecond

	DefaultRateLimitCooldown = 10 * time.Minute
	DefaultFailureCooldown   = 2 * time.Minute
	DefaultFailureThreshold  = 5

	DefaultOverrideTTL = 24 * time.Hour

	DefaultListenAddress   = "127.0.0.1:8787"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultWarmSchedule  = "@every 5m"
	DefaultPruneSchedule = "0 3 * * *"
	DefaultRetentionDays = 30

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultMetricsPath = "/metrics"
	DefaultNamespace   = "oppilot"
)

// DefaultConfig returns a configuration with all default values set and no
// providers configured.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in default values for any unset fields.
func ApplyDefaults(c *Config) {
	for name, p := range c.Providers {
		if p.Type == "" {
			p.Type = DefaultProviderType
		}
		if p.CostTier == "" {
			p.CostTier = DefaultCostTier
		}
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		c.Providers[name] = p
	}

	for category, kws := range c.Classifier.Keywords {
		for i, kw := range kws {
			if kw.Weight == 0 {
				kws[i].Weight = 1
			}
		}
		c.Classifier.Keywords[category] = kws
	}

	if c.Dispatch.PreflightTimeout == 0 {
		c.Dispatch.PreflightTimeout = DefaultPreflightTimeout
	}
	if c.Dispatch.RateLimitCooldown == 0 {
		c.Dispatch.RateLimitCooldown = DefaultRateLimitCooldown
	}
	if c.Dispatch.FailureCooldown == 0 {
		c.Dispatch.FailureCooldown = DefaultFailureCooldown
	}
	if c.Dispatch.FailureThreshold == 0 {
		c.Dispatch.FailureThreshold = DefaultFailureThreshold
	}

	if c.Override.DefaultTTL == 0 {
		c.Override.DefaultTTL = DefaultOverrideTTL
	}

	if c.State.Dir == "" {
		c.State.Dir = defaultStateDir()
	}
	if c.State.JournalPath == "" {
		c.State.JournalPath = filepath.Join(c.State.Dir, "journal.db")
	}

	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Supervisor.WarmSchedule == "" {
		c.Supervisor.WarmSchedule = DefaultWarmSchedule
	}
	if c.Supervisor.PruneSchedule == "" {
		c.Supervisor.PruneSchedule = DefaultPruneSchedule
	}
	if c.Supervisor.RetentionDays == 0 {
		c.Supervisor.RetentionDays = DefaultRetentionDays
	}

	if c.Telemetry.Logging.Level == "" {
		c.Telemetry.Logging.Level = DefaultLogLevel
	}
	if c.Telemetry.Logging.Format == "" {
		c.Telemetry.Logging.Format = DefaultLogFormat
	}
	if c.Telemetry.Metrics.Path == "" {
		c.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if c.Telemetry.Metrics.Namespace == "" {
		c.Telemetry.Metrics.Namespace = DefaultNamespace
	}
}

// HealthPath returns the health cache state file path.
func (c *Config) HealthPath() string {
	return filepath.Join(c.State.Dir, "health.json")
}

// OverridePath returns the override state file path.
func (c *Config) OverridePath() string {
	return filepath.Join(c.State.Dir, "override.json")
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "oppilot")
	}
	return ".oppilot"
}
