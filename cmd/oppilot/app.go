package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/classify"
	"github.com/oppilot/oppilot/pkg/cli"
	"github.com/oppilot/oppilot/pkg/config"
	"github.com/oppilot/oppilot/pkg/credentials"
	"github.com/oppilot/oppilot/pkg/dispatch"
	"github.com/oppilot/oppilot/pkg/health"
	"github.com/oppilot/oppilot/pkg/journal"
	"github.com/oppilot/oppilot/pkg/override"
	"github.com/oppilot/oppilot/pkg/providers"
	"github.com/oppilot/oppilot/pkg/state"
	"github.com/oppilot/oppilot/pkg/telemetry/logging"
	"github.com/oppilot/oppilot/pkg/telemetry/metrics"
)

// app is the assembled engine and its collaborators, shared by the CLI
// commands.
type app struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	pool      *credentials.Pool
	health    *health.Cache
	overrides *override.Store
	invokers  map[string]providers.Invoker
	engine    *dispatch.Engine
	journal   *journal.Journal
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// buildApp loads configuration and wires the dispatch engine. The journal
// is opened only when asked for; one-shot commands that never dispatch
// skip the SQLite handle.
func buildApp(path string, withJournal bool) (*app, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}

	cat, err := catalog.New(cfg)
	if err != nil {
		return nil, cli.NewConfigError("pools", err.Error())
	}

	classifier := classify.NewWithKeywords(classifierKeywords(cfg.Classifier))

	keys := make(map[string][]string, len(cfg.Providers))
	for name, p := range cfg.Providers {
		if len(p.APIKeys) > 0 {
			keys[name] = p.APIKeys
		}
	}
	pool := credentials.NewPool(keys)

	cache := health.NewCache(state.NewFileStore(cfg.HealthPath()), health.Options{
		RateLimitCooldown: cfg.Dispatch.RateLimitCooldown,
		FailureCooldown:   cfg.Dispatch.FailureCooldown,
		FailureThreshold:  cfg.Dispatch.FailureThreshold,
		Logger:            logger,
	})

	overrides := override.NewStore(state.NewFileStore(cfg.OverridePath()), override.Options{
		DefaultTTL: cfg.Override.DefaultTTL,
		Logger:     logger,
	})

	invokers, err := providers.NewInvokers(cat)
	if err != nil {
		return nil, cli.NewConfigError("providers", err.Error())
	}

	a := &app{
		cfg:       cfg,
		catalog:   cat,
		pool:      pool,
		health:    cache,
		overrides: overrides,
		invokers:  invokers,
		logger:    logger,
	}

	opts := dispatch.Options{
		PreflightTimeout: cfg.Dispatch.PreflightTimeout,
		Logger:           logger,
	}

	if withJournal {
		if err := os.MkdirAll(filepath.Dir(cfg.State.JournalPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
		jour, err := journal.Open(journal.Config{Path: cfg.State.JournalPath, Logger: logger})
		if err != nil {
			// The journal is observability, not correctness. Dispatch
			// proceeds without it.
			logger.Warn("dispatch journal unavailable", "path", cfg.State.JournalPath, "error", err)
		} else {
			a.journal = jour
			opts.Journal = jour
		}
	}

	if cfg.Telemetry.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Telemetry.Metrics)
		opts.Metrics = a.metrics
	}

	a.engine = dispatch.NewEngine(cat, classifier, pool, cache, overrides, invokers, opts)
	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("failed to close journal", "error", err)
		}
	}
}

// classifierKeywords maps configured extra keywords onto classifier input.
func classifierKeywords(cfg config.ClassifierConfig) map[classify.Category][]classify.Keyword {
	if len(cfg.Keywords) == 0 {
		return nil
	}
	out := make(map[classify.Category][]classify.Keyword, len(cfg.Keywords))
	for name, list := range cfg.Keywords {
		cat := classify.Category(name)
		for _, kw := range list {
			weight := kw.Weight
			if weight <= 0 {
				weight = 1
			}
			out[cat] = append(out[cat], classify.Keyword{Phrase: kw.Phrase, Weight: weight})
		}
	}
	return out
}
