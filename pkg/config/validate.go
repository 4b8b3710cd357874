package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "pools.primary[0]").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// A configuration with no provider credentials anywhere fails validation:
// without at least one key the engine cannot dispatch anything, so this is
// fatal at startup rather than retryable at dispatch time.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validatePools(cfg)...)
	errs = append(errs, validateDispatch(&cfg.Dispatch)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if !hasAnyCredential(cfg) {
		errs = append(errs, FieldError{
			Field:   "providers",
			Message: "no provider credentials configured (set <PROVIDER>_API_KEYS or a credential file)",
		})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateProviders validates the provider map.
func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	for name, p := range providers {
		field := fmt.Sprintf("providers.%s", name)

		if p.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   field + ".base_url",
				Message: "base URL is required",
			})
		} else if u, err := url.Parse(p.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   field + ".base_url",
				Message: fmt.Sprintf("invalid base URL %q", p.BaseURL),
			})
		}

		switch p.Type {
		case "openai", "anthropic", "google":
		default:
			errs = append(errs, FieldError{
				Field:   field + ".type",
				Message: fmt.Sprintf("unknown provider type %q (expected openai, anthropic, or google)", p.Type),
			})
		}

		if p.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   field + ".timeout",
				Message: "timeout must be positive",
			})
		}

		if len(p.Models) == 0 {
			errs = append(errs, FieldError{
				Field:   field + ".models",
				Message: "at least one model is required",
			})
		}
		for i, m := range p.Models {
			if m.ID == "" {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("%s.models[%d].id", field, i),
					Message: "model id is required",
				})
			}
		}
	}

	return errs
}

// validatePools checks that pool entries are well-formed "provider/model"
// references pointing at configured providers and models.
func validatePools(cfg *Config) []FieldError {
	var errs []FieldError

	pools := []struct {
		name    string
		entries []string
	}{
		{"primary", cfg.Pools.Primary},
		{"secondary", cfg.Pools.Secondary},
		{"emergency", cfg.Pools.Emergency},
	}

	for _, pool := range pools {
		for i, ref := range pool.entries {
			field := fmt.Sprintf("pools.%s[%d]", pool.name, i)

			provider, model, ok := strings.Cut(ref, "/")
			if !ok || provider == "" || model == "" {
				errs = append(errs, FieldError{
					Field:   field,
					Message: fmt.Sprintf("invalid model reference %q (expected provider/model)", ref),
				})
				continue
			}

			p, exists := cfg.Providers[provider]
			if !exists {
				errs = append(errs, FieldError{
					Field:   field,
					Message: fmt.Sprintf("unknown provider %q", provider),
				})
				continue
			}

			found := false
			for _, m := range p.Models {
				if m.ID == model {
					found = true
					break
				}
			}
			if !found {
				errs = append(errs, FieldError{
					Field:   field,
					Message: fmt.Sprintf("provider %q does not offer model %q", provider, model),
				})
			}
		}
	}

	if len(cfg.Pools.Primary)+len(cfg.Pools.Secondary)+len(cfg.Pools.Emergency) == 0 {
		errs = append(errs, FieldError{
			Field:   "pools",
			Message: "at least one pool entry is required",
		})
	}

	return errs
}

// validateDispatch validates dispatch tuning.
func validateDispatch(cfg *DispatchConfig) []FieldError {
	var errs []FieldError

	if cfg.PreflightTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.preflight_timeout",
			Message: "preflight timeout must be positive",
		})
	}
	if cfg.RateLimitCooldown < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.rate_limit_cooldown",
			Message: "rate limit cooldown must be positive",
		})
	}
	if cfg.FailureCooldown < 0 {
		errs = append(errs, FieldError{
			Field:   "dispatch.failure_cooldown",
			Message: "failure cooldown must be positive",
		})
	}
	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{
			Field:   "dispatch.failure_threshold",
			Message: "failure threshold must be at least 1",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q (expected debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q (expected json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	return errs
}

func hasAnyCredential(cfg *Config) bool {
	for _, p := range cfg.Providers {
		if len(p.APIKeys) > 0 {
			return true
		}
	}
	return false
}
