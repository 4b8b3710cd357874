package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/config"
	"github.com/oppilot/oppilot/pkg/credentials"
	"github.com/oppilot/oppilot/pkg/health"
	"github.com/oppilot/oppilot/pkg/providers"
)

// Pruner deletes journal rows older than a cutoff. *journal.Journal
// satisfies it.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// Deps are the supervisor's collaborators.
type Deps struct {
	Catalog  *catalog.Catalog
	Pool     *credentials.Pool
	Health   *health.Cache
	Invokers map[string]providers.Invoker

	// Journal may be nil; pruning is then disabled regardless of schedule.
	Journal Pruner

	// ProbeTimeout bounds each warm probe. Default: the pre-flight timeout.
	ProbeTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Supervisor schedules warm probes and journal pruning.
type Supervisor struct {
	cfg    config.SupervisorConfig
	deps   Deps
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a supervisor. Jobs run only after Start.
func New(cfg config.SupervisorConfig, deps Deps) *Supervisor {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ProbeTimeout <= 0 {
		deps.ProbeTimeout = config.DefaultPreflightTimeout
	}
	return &Supervisor{
		cfg:    cfg,
		deps:   deps,
		cron:   cron.New(),
		logger: deps.Logger.With("component", "supervisor"),
	}
}

// Start registers the configured jobs and starts the scheduler. The
// scheduler stops when ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("supervisor is already running")
	}

	if s.cfg.WarmSchedule != "" {
		if _, err := cron.ParseStandard(s.cfg.WarmSchedule); err != nil {
			return fmt.Errorf("invalid warm schedule %q: %w", s.cfg.WarmSchedule, err)
		}
		if _, err := s.cron.AddFunc(s.cfg.WarmSchedule, func() { s.WarmOnce(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule warm probes: %w", err)
		}
	}

	if s.cfg.PruneSchedule != "" && s.deps.Journal != nil {
		if _, err := cron.ParseStandard(s.cfg.PruneSchedule); err != nil {
			return fmt.Errorf("invalid prune schedule %q: %w", s.cfg.PruneSchedule, err)
		}
		if _, err := s.cron.AddFunc(s.cfg.PruneSchedule, func() { s.PruneOnce(ctx) }); err != nil {
			return fmt.Errorf("failed to schedule pruning: %w", err)
		}
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("supervisor started",
		"warm_schedule", s.cfg.WarmSchedule,
		"prune_schedule", s.cfg.PruneSchedule,
		"retention_days", s.cfg.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("supervisor stopped")
}

// IsRunning reports whether the scheduler is active.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// WarmOnce runs one warm probe cycle: for every configured provider, a
// pre-flight against its least-recently-used available credential, with
// the outcome recorded in the health cache. Providers whose credentials
// are all cooling down are left alone until the cooldowns lapse.
func (s *Supervisor) WarmOnce(ctx context.Context) {
	for _, provider := range s.deps.Catalog.Providers() {
		if ctx.Err() != nil {
			return
		}
		s.probeProvider(ctx, provider.Name)
	}
}

func (s *Supervisor) probeProvider(ctx context.Context, name string) {
	invoker, ok := s.deps.Invokers[name]
	if !ok {
		return
	}

	cred, err := s.deps.Pool.NextCredential(name, s.deps.Health)
	if err != nil {
		s.logger.Debug("warm probe skipped", "provider", name, "error", err)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.deps.ProbeTimeout)
	defer cancel()

	start := time.Now()
	if err := invoker.Preflight(probeCtx, cred.Secret); err != nil {
		kind := providers.Classify(err)
		s.deps.Health.Record(name, cred.ID, health.Failure(kind))
		s.logger.Warn("warm probe failed",
			"provider", name,
			"credential", cred.ID,
			"error_kind", kind,
			"error", err,
		)
		return
	}

	latency := time.Since(start)
	s.deps.Health.Record(name, cred.ID, health.Success(latency))
	s.logger.Debug("warm probe succeeded",
		"provider", name,
		"credential", cred.ID,
		"latency", latency,
	)
}

// PruneOnce deletes journal rows older than the retention window.
func (s *Supervisor) PruneOnce(ctx context.Context) {
	if s.deps.Journal == nil || s.cfg.RetentionDays <= 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.deps.Journal.Prune(ctx, cutoff)
	if err != nil {
		s.logger.Error("journal pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("journal pruned", "deleted", deleted, "cutoff", cutoff)
	}
}
