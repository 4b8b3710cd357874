package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/config"
	"github.com/oppilot/oppilot/pkg/credentials"
	"github.com/oppilot/oppilot/pkg/health"
	"github.com/oppilot/oppilot/pkg/providers"
	"github.com/oppilot/oppilot/pkg/state"
)

type probeInvoker struct {
	mu        sync.Mutex
	name      string
	err       error
	preflight int
	keys      []string
}

func (p *probeInvoker) Invoke(context.Context, string, *providers.InvokeRequest) (*providers.InvokeResponse, error) {
	return nil, errors.New("not used")
}

func (p *probeInvoker) Preflight(_ context.Context, apiKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preflight++
	p.keys = append(p.keys, apiKey)
	return p.err
}

func (p *probeInvoker) Name() string { return p.name }

func (p *probeInvoker) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preflight
}

type countingPruner struct {
	mu      sync.Mutex
	calls   int
	cutoff  time.Time
	deleted int64
	err     error
}

func (p *countingPruner) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.cutoff = olderThan
	return p.deleted, p.err
}

func testDeps(t *testing.T, invokers map[string]providers.Invoker) Deps {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Providers = map[string]config.ProviderConfig{
		"alpha": {
			BaseURL: "https://alpha.example.com",
			Type:    "openai",
			APIKeys: []string{"key-alpha"},
			Models:  []config.ModelConfig{{ID: "m1", Capabilities: []string{"coding"}}},
		},
		"beta": {
			BaseURL: "https://beta.example.com",
			Type:    "anthropic",
			APIKeys: []string{"key-beta"},
			Models:  []config.ModelConfig{{ID: "m2", Capabilities: []string{"coding"}}},
		},
	}
	cfg.Pools = config.PoolsConfig{Primary: []string{"alpha/m1"}, Emergency: []string{"beta/m2"}}

	cat, err := catalog.New(cfg)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}

	pool := credentials.NewPool(map[string][]string{
		"alpha": {"key-alpha"},
		"beta":  {"key-beta"},
	})

	cache := health.NewCache(state.NewFileStore(filepath.Join(t.TempDir(), "health.json")), health.Options{})

	return Deps{
		Catalog:  cat,
		Pool:     pool,
		Health:   cache,
		Invokers: invokers,
	}
}

func TestWarmOnce_RecordsOutcomes(t *testing.T) {
	alpha := &probeInvoker{name: "alpha"}
	beta := &probeInvoker{name: "beta", err: errors.New("connection refused")}
	deps := testDeps(t, map[string]providers.Invoker{"alpha": alpha, "beta": beta})

	sup := New(config.SupervisorConfig{}, deps)
	sup.WarmOnce(context.Background())

	if alpha.calls() != 1 || beta.calls() != 1 {
		t.Fatalf("probe counts = %d, %d; want 1, 1", alpha.calls(), beta.calls())
	}
	if len(alpha.keys) != 1 || alpha.keys[0] != "key-alpha" {
		t.Errorf("alpha probed with %v", alpha.keys)
	}

	alphaRec, ok := deps.Health.Get("alpha", credentials.CredentialID("key-alpha"))
	if !ok || alphaRec.SuccessCount != 1 {
		t.Errorf("alpha record = %+v, ok = %v", alphaRec, ok)
	}

	betaRec, ok := deps.Health.Get("beta", credentials.CredentialID("key-beta"))
	if !ok || betaRec.FailureCount != 1 {
		t.Errorf("beta record = %+v, ok = %v", betaRec, ok)
	}
}

func TestWarmOnce_SkipsCoolingProvider(t *testing.T) {
	alpha := &probeInvoker{name: "alpha"}
	beta := &probeInvoker{name: "beta"}
	deps := testDeps(t, map[string]providers.Invoker{"alpha": alpha, "beta": beta})

	// A rate-limited credential must not be probed while cooling down.
	deps.Health.Record("beta", credentials.CredentialID("key-beta"), health.RateLimited())

	sup := New(config.SupervisorConfig{}, deps)
	sup.WarmOnce(context.Background())

	if alpha.calls() != 1 {
		t.Errorf("alpha probes = %d, want 1", alpha.calls())
	}
	if beta.calls() != 0 {
		t.Errorf("beta probes = %d, want 0 while cooling down", beta.calls())
	}
}

func TestWarmOnce_MissingInvoker(t *testing.T) {
	alpha := &probeInvoker{name: "alpha"}
	deps := testDeps(t, map[string]providers.Invoker{"alpha": alpha})

	sup := New(config.SupervisorConfig{}, deps)
	sup.WarmOnce(context.Background())

	if alpha.calls() != 1 {
		t.Errorf("alpha probes = %d, want 1", alpha.calls())
	}
}

func TestPruneOnce(t *testing.T) {
	deps := testDeps(t, nil)
	pruner := &countingPruner{deleted: 4}
	deps.Journal = pruner

	sup := New(config.SupervisorConfig{RetentionDays: 30}, deps)
	sup.PruneOnce(context.Background())

	if pruner.calls != 1 {
		t.Fatalf("prune calls = %d, want 1", pruner.calls)
	}
	wantCutoff := time.Now().AddDate(0, 0, -30)
	if diff := pruner.cutoff.Sub(wantCutoff); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want about %v", pruner.cutoff, wantCutoff)
	}
}

func TestPruneOnce_DisabledWithoutRetention(t *testing.T) {
	deps := testDeps(t, nil)
	pruner := &countingPruner{}
	deps.Journal = pruner

	sup := New(config.SupervisorConfig{}, deps)
	sup.PruneOnce(context.Background())

	if pruner.calls != 0 {
		t.Errorf("prune calls = %d, want 0 with zero retention", pruner.calls)
	}
}

func TestStart_InvalidSchedule(t *testing.T) {
	deps := testDeps(t, nil)
	sup := New(config.SupervisorConfig{WarmSchedule: "not a schedule"}, deps)

	if err := sup.Start(context.Background()); err == nil {
		t.Fatal("Start() expected error for invalid cron expression")
	}
}

func TestStartStop(t *testing.T) {
	deps := testDeps(t, map[string]providers.Invoker{})
	sup := New(config.SupervisorConfig{WarmSchedule: "@every 1h"}, deps)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !sup.IsRunning() {
		t.Fatal("supervisor not running after Start")
	}
	if err := sup.Start(ctx); err == nil {
		t.Error("second Start() expected error")
	}

	sup.Stop()
	if sup.IsRunning() {
		t.Error("supervisor still running after Stop")
	}
}
