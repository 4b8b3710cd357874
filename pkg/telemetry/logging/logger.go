// Package logging provides structured logging setup with API key redaction.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"

	"github.com/oppilot/oppilot/pkg/config"
)

// redactedPlaceholder replaces matched secrets in log output.
const redactedPlaceholder = "[REDACTED]"

// keyPatterns match API key shapes that must never reach log output.
var keyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{10,}=*`),
	regexp.MustCompile(`(?i)(api[_-]?key|x-api-key)["':\s=]+[A-Za-z0-9._-]{10,}`),
}

// New builds a slog.Logger from the telemetry logging configuration.
// String attribute values pass through an API key redactor before being
// written, so a credential accidentally placed in a log field never
// reaches the output.
func New(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactAttr,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q (expected json or text)", cfg.Format)
	}

	return slog.New(handler), nil
}

// Setup builds the logger and installs it as the process default.
func Setup(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	logger, err := New(cfg, w)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", level)
	}
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		a.Value = slog.StringValue(Redact(a.Value.String()))
	}
	return a
}

// Redact replaces API key shapes in s with a placeholder.
func Redact(s string) string {
	for _, p := range keyPatterns {
		s = p.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}
