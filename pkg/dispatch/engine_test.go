package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/classify"
	"github.com/oppilot/oppilot/pkg/config"
	"github.com/oppilot/oppilot/pkg/credentials"
	"github.com/oppilot/oppilot/pkg/health"
	"github.com/oppilot/oppilot/pkg/override"
	"github.com/oppilot/oppilot/pkg/providers"
	"github.com/oppilot/oppilot/pkg/state"
)

// stubInvoker scripts provider behavior per test.
type stubInvoker struct {
	name         string
	preflightErr error
	invokeErr    error
	latency      time.Duration
	calls        int
}

func (s *stubInvoker) Invoke(_ context.Context, _ string, req *providers.InvokeRequest) (*providers.InvokeResponse, error) {
	s.calls++
	if s.invokeErr != nil {
		return nil, s.invokeErr
	}
	latency := s.latency
	if latency == 0 {
		latency = 100 * time.Millisecond
	}
	return &providers.InvokeResponse{
		Content: "ok from " + s.name,
		Model:   req.Model,
		Latency: latency,
	}, nil
}

func (s *stubInvoker) Preflight(context.Context, string) error { return s.preflightErr }
func (s *stubInvoker) Name() string                            { return s.name }

type testHarness struct {
	engine    *Engine
	cache     *health.Cache
	overrides *override.Store
	invokers  map[string]*stubInvoker
	now       *time.Time
}

// newHarness builds an engine over four single-model providers:
// Primary=[a,b], Secondary=[c], Emergency=[d]. a, b, and c serve coding;
// d is the backstop.
func newHarness(t *testing.T) *testHarness {
	t.Helper()

	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			"a": {BaseURL: "https://a.example", Type: "openai", Models: []config.ModelConfig{{ID: "m", Capabilities: []string{"coding"}}}},
			"b": {BaseURL: "https://b.example", Type: "openai", Models: []config.ModelConfig{{ID: "m", Capabilities: []string{"coding"}}}},
			"c": {BaseURL: "https://c.example", Type: "openai", Models: []config.ModelConfig{{ID: "m", Capabilities: []string{"coding", "fast"}}}},
			"d": {BaseURL: "https://d.example", Type: "openai", Models: []config.ModelConfig{{ID: "m", Capabilities: []string{"default"}}}},
		},
		Pools: config.PoolsConfig{
			Primary:   []string{"a/m", "b/m"},
			Secondary: []string{"c/m"},
			Emergency: []string{"d/m"},
		},
	}

	cat, err := catalog.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	h := &testHarness{now: &now}
	clock := func() time.Time { return *h.now }

	dir := t.TempDir()
	h.cache = health.NewCache(state.NewFileStore(filepath.Join(dir, "health.json")), health.Options{Now: clock})
	h.overrides = override.NewStore(state.NewFileStore(filepath.Join(dir, "override.json")), override.Options{Now: clock})

	pool := credentials.NewPool(map[string][]string{
		"a": {"key-a"},
		"b": {"key-b"},
		"c": {"key-c"},
		"d": {"key-d"},
	})

	h.invokers = map[string]*stubInvoker{
		"a": {name: "a"},
		"b": {name: "b"},
		"c": {name: "c"},
		"d": {name: "d"},
	}
	invokers := make(map[string]providers.Invoker, len(h.invokers))
	for name, inv := range h.invokers {
		invokers[name] = inv
	}

	h.engine = NewEngine(cat, classify.New(), pool, h.cache, h.overrides, invokers, Options{
		Now: clock,
	})
	return h
}

func attemptSummary(attempts []Attempt) []string {
	out := make([]string, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, a.Model.Provider+":"+string(a.Status))
	}
	return out
}

func TestDispatch_CascadingFailover(t *testing.T) {
	h := newHarness(t)
	serverErr := &providers.ProviderError{Provider: "x", StatusCode: 500, Message: "boom"}
	h.invokers["a"].invokeErr = serverErr
	h.invokers["b"].invokeErr = serverErr
	h.invokers["c"].invokeErr = serverErr

	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if d.Model.Provider != "d" {
		t.Errorf("Model = %v, want emergency provider d", d.Model)
	}
	want := []string{"a:failed", "b:failed", "c:failed", "d:success"}
	got := attemptSummary(d.Attempts)
	if len(got) != len(want) {
		t.Fatalf("attempts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("attempts[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if d.Response == nil || d.Response.Content != "ok from d" {
		t.Errorf("Response = %+v", d.Response)
	}
	if d.Reason != ReasonAutoClassified || d.Category != classify.CategoryCoding {
		t.Errorf("Reason/Category = %v/%v", d.Reason, d.Category)
	}
}

func TestDispatch_OverridePrecedence(t *testing.T) {
	h := newHarness(t)
	pinned := catalog.Ref{Provider: "c", Model: "m"}
	if err := h.engine.SetOverride(pinned, 0); err != nil {
		t.Fatal(err)
	}

	// Free text that would classify to coding must not matter.
	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "quick simple task"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if d.Model != pinned {
		t.Errorf("Model = %v, want pinned %v", d.Model, pinned)
	}
	if d.Reason != ReasonOverride {
		t.Errorf("Reason = %v, want override", d.Reason)
	}
	if h.invokers["a"].calls != 0 {
		t.Error("primary provider was called despite an active override")
	}
}

func TestDispatch_ManualProfileClearsOverride(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.SetOverride(catalog.Ref{Provider: "a", Model: "m"}, 0); err != nil {
		t.Fatal(err)
	}

	d, err := h.engine.Dispatch(context.Background(), &Request{
		Task:     "anything",
		Category: classify.CategoryFast,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if d.Reason != ReasonManualProfile {
		t.Errorf("Reason = %v, want manual-profile", d.Reason)
	}
	// Fast is served by c (secondary) with d as backstop; a must not be
	// selected.
	if d.Model.Provider != "c" {
		t.Errorf("Model = %v, want c/m", d.Model)
	}
	if _, ok := h.engine.OverrideStatus(); ok {
		t.Error("override still active after manual-profile dispatch")
	}
}

func TestDispatch_FallbackReason(t *testing.T) {
	h := newHarness(t)

	d, err := h.engine.Dispatch(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if d.Reason != ReasonFallback {
		t.Errorf("Reason = %v, want fallback", d.Reason)
	}
	if d.Category != classify.CategoryDefault {
		t.Errorf("Category = %v, want default", d.Category)
	}
	// Default skips capability filtering; the first primary provider wins.
	if d.Model.Provider != "a" {
		t.Errorf("Model = %v, want a/m", d.Model)
	}
}

func TestDispatch_AllExhausted(t *testing.T) {
	h := newHarness(t)
	serverErr := &providers.ProviderError{Provider: "x", StatusCode: 500, Message: "boom"}
	for _, inv := range h.invokers {
		inv.invokeErr = serverErr
	}

	_, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Dispatch() error = %v, want ErrExhausted", err)
	}

	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("error type = %T", err)
	}
	if len(ex.Attempts) != 4 {
		t.Errorf("attempts = %v, want 4 entries", attemptSummary(ex.Attempts))
	}
}

func TestDispatch_RateLimitCoolsCredential(t *testing.T) {
	h := newHarness(t)
	h.invokers["a"].invokeErr = &providers.RateLimitError{Provider: "a"}

	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if d.Model.Provider != "b" {
		t.Errorf("Model = %v, want b/m", d.Model)
	}
	if got := attemptSummary(d.Attempts)[0]; got != "a:rate-limited" {
		t.Errorf("first attempt = %q, want a:rate-limited", got)
	}

	// a's only credential is now cooling down; the next dispatch skips a
	// without counting a failed attempt.
	h.invokers["a"].invokeErr = nil
	d2, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatal(err)
	}
	if got := attemptSummary(d2.Attempts)[0]; got != "a:skipped" {
		t.Errorf("first attempt = %q, want a:skipped", got)
	}

	// After the 10 minute cooldown, a serves again.
	*h.now = h.now.Add(11 * time.Minute)
	d3, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatal(err)
	}
	if d3.Model.Provider != "a" {
		t.Errorf("Model = %v after cooldown, want a/m", d3.Model)
	}
}

func TestDispatch_PreflightFailureFailsFast(t *testing.T) {
	h := newHarness(t)
	h.invokers["a"].preflightErr = &providers.TimeoutError{Provider: "a"}

	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	first := d.Attempts[0]
	if first.Status != AttemptFailed || first.ErrorKind != health.ErrorTimeout {
		t.Errorf("first attempt = %+v, want failed/timeout", first)
	}
	if h.invokers["a"].calls != 0 {
		t.Error("full invoke happened despite preflight failure")
	}
	if d.Model.Provider != "b" {
		t.Errorf("Model = %v, want b/m", d.Model)
	}
}

func TestDispatch_DeadlineAbortsBetweenAttempts(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Dispatch(ctx, &Request{Task: "write me a sorting algorithm"})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("Dispatch() error = %v, want ExhaustedError", err)
	}
	if len(ex.Attempts) != 1 || ex.Attempts[0].Status != AttemptDeadlineExceeded {
		t.Errorf("attempts = %v, want single deadline-exceeded entry", attemptSummary(ex.Attempts))
	}
}

func TestDispatch_LatencyOrdersCandidates(t *testing.T) {
	h := newHarness(t)

	// Teach the cache that a is slow and b is fast.
	h.cache.Record("a", credentials.CredentialID("key-a"), health.Success(2000*time.Millisecond))
	h.cache.Record("b", credentials.CredentialID("key-b"), health.Success(100*time.Millisecond))

	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Model.Provider != "b" {
		t.Errorf("Model = %v, want known-fast b/m first", d.Model)
	}
}

func TestDispatch_OverrideKeepsFailoverSafetyNet(t *testing.T) {
	h := newHarness(t)
	pinned := catalog.Ref{Provider: "a", Model: "m"}
	if err := h.engine.SetOverride(pinned, 0); err != nil {
		t.Fatal(err)
	}
	h.invokers["a"].invokeErr = &providers.ProviderError{Provider: "a", StatusCode: 502}

	// The pinned model fails once; the pools behind it still serve.
	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "x"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want fallback success", err)
	}
	if d.Model.Provider != "b" {
		t.Errorf("Model = %v, want next healthy provider b/m", d.Model)
	}
	if d.Reason != ReasonOverride {
		t.Errorf("Reason = %v, want override", d.Reason)
	}
	want := []string{"a:failed", "b:success"}
	if got := attemptSummary(d.Attempts); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("attempts = %v, want %v", got, want)
	}

	// One pinned failure dents the budget but keeps the pin.
	status, ok := h.engine.OverrideStatus()
	if !ok {
		t.Fatal("override cleared after a single pinned failure")
	}
	if status.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", status.ConsecutiveFailures)
	}
}

func TestDispatch_OverrideFailureBudget(t *testing.T) {
	h := newHarness(t)
	pinned := catalog.Ref{Provider: "a", Model: "m"}
	if err := h.engine.SetOverride(pinned, 0); err != nil {
		t.Fatal(err)
	}
	h.invokers["a"].invokeErr = &providers.ProviderError{Provider: "a", StatusCode: 500}

	// Three dispatches with a failing pin burn the override's failure
	// budget even though the fallback pools keep serving. Fallback
	// successes do not reset the budget; only the pinned model's do.
	for i := 0; i < 3; i++ {
		d, err := h.engine.Dispatch(context.Background(), &Request{Task: "x"})
		if err != nil {
			t.Fatalf("dispatch %d error = %v", i+1, err)
		}
		if d.Model == pinned {
			t.Fatalf("dispatch %d served by the failing pin", i+1)
		}
	}
	if _, ok := h.engine.OverrideStatus(); ok {
		t.Fatal("override still active after 3 pinned failures")
	}

	// With the pin gone, dispatch resolves by classification again.
	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Reason == ReasonOverride {
		t.Error("cleared override still steering dispatch")
	}
}

func TestDispatch_OverrideExpiry(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.SetOverride(catalog.Ref{Provider: "a", Model: "m"}, 24*time.Hour); err != nil {
		t.Fatal(err)
	}

	*h.now = h.now.Add(25 * time.Hour)

	d, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Reason != ReasonAutoClassified {
		t.Errorf("Reason = %v, want auto-classified after expiry", d.Reason)
	}
	if _, ok := h.engine.OverrideStatus(); ok {
		t.Error("expired override still reported")
	}
}

func TestSetOverride_UnknownModel(t *testing.T) {
	h := newHarness(t)
	err := h.engine.SetOverride(catalog.Ref{Provider: "nope", Model: "m"}, 0)
	if !errors.Is(err, catalog.ErrUnknownModel) {
		t.Errorf("SetOverride() error = %v, want ErrUnknownModel", err)
	}
}

type captureJournal struct {
	records []JournalRecord
}

func (j *captureJournal) RecordDispatch(_ context.Context, rec JournalRecord) {
	j.records = append(j.records, rec)
}

func TestDispatch_Journals(t *testing.T) {
	h := newHarness(t)
	jour := &captureJournal{}
	h.engine.journal = jour

	if _, err := h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"}); err != nil {
		t.Fatal(err)
	}
	h.invokers["a"].invokeErr = &providers.ProviderError{StatusCode: 500}
	h.invokers["b"].invokeErr = &providers.ProviderError{StatusCode: 500}
	h.invokers["c"].invokeErr = &providers.ProviderError{StatusCode: 500}
	h.invokers["d"].invokeErr = &providers.ProviderError{StatusCode: 500}
	h.engine.Dispatch(context.Background(), &Request{Task: "write me a sorting algorithm"})

	if len(jour.records) != 2 {
		t.Fatalf("journal records = %d, want 2", len(jour.records))
	}
	if !jour.records[0].Success || jour.records[1].Success {
		t.Errorf("journal success flags = %v/%v, want true/false",
			jour.records[0].Success, jour.records[1].Success)
	}
	if jour.records[0].ID == "" || jour.records[0].ID == jour.records[1].ID {
		t.Error("journal records should carry distinct dispatch IDs")
	}
}
