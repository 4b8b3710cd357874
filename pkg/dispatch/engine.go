package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/classify"
	"github.com/oppilot/oppilot/pkg/credentials"
	"github.com/oppilot/oppilot/pkg/health"
	"github.com/oppilot/oppilot/pkg/override"
	"github.com/oppilot/oppilot/pkg/providers"
)

// DefaultPreflightTimeout bounds the per-candidate liveness probe.
const DefaultPreflightTimeout = 1500 * time.Millisecond

// Options configures engine behavior. Zero values select defaults.
type Options struct {
	// PreflightTimeout bounds the liveness probe before each full call.
	// Default: 1.5s
	PreflightTimeout time.Duration

	// Logger receives dispatch logging. Default: slog.Default().
	Logger *slog.Logger

	// Journal receives every dispatch outcome. Optional.
	Journal Journal

	// Metrics receives dispatch observations. Optional.
	Metrics Metrics

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time
}

// Engine is the dispatch and failover engine. It owns no goroutines; each
// Dispatch call runs synchronously on the caller's goroutine.
type Engine struct {
	catalog     *catalog.Catalog
	classifier  *classify.Classifier
	pool        *credentials.Pool
	healthCache *health.Cache
	overrides   *override.Store
	invokers    map[string]providers.Invoker

	preflightTimeout time.Duration
	logger           *slog.Logger
	journal          Journal
	metrics          Metrics
	now              func() time.Time
}

// NewEngine assembles an engine from its collaborators.
func NewEngine(
	cat *catalog.Catalog,
	classifier *classify.Classifier,
	pool *credentials.Pool,
	healthCache *health.Cache,
	overrides *override.Store,
	invokers map[string]providers.Invoker,
	opts Options,
) *Engine {
	if opts.PreflightTimeout == 0 {
		opts.PreflightTimeout = DefaultPreflightTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		catalog:          cat,
		classifier:       classifier,
		pool:             pool,
		healthCache:      healthCache,
		overrides:        overrides,
		invokers:         invokers,
		preflightTimeout: opts.PreflightTimeout,
		logger:           opts.Logger,
		journal:          opts.Journal,
		metrics:          opts.Metrics,
		now:              opts.Now,
	}
}

// Dispatch resolves a model for the request and drives the failover
// cascade until one provider succeeds. The only error returned is
// ExhaustedError; per-attempt failures are absorbed into the attempt log.
func (e *Engine) Dispatch(ctx context.Context, req *Request) (*Decision, error) {
	id := uuid.NewString()
	started := e.now()
	res := e.resolve(req)

	var candidates []catalog.Ref
	if res.reason == ReasonOverride {
		// A pinned model leads the cascade but does not replace it; the
		// pools stay behind it as the safety net. Only the pinned model's
		// outcomes feed the override failure budget, and three failures
		// in a row clear the pin.
		candidates = []catalog.Ref{res.pinned}
		for _, ref := range e.candidates(classify.CategoryDefault) {
			if ref != res.pinned {
				candidates = append(candidates, ref)
			}
		}
	} else {
		candidates = e.candidates(res.category)
	}

	e.logger.Debug("dispatch resolved",
		"dispatch_id", id,
		"reason", res.reason,
		"category", res.category,
		"candidates", len(candidates),
	)

	messages := req.Messages
	if len(messages) == 0 {
		messages = []providers.Message{{Role: "user", Content: req.Task}}
	}

	var attempts []Attempt
	for _, ref := range candidates {
		if ctx.Err() != nil {
			attempts = append(attempts, Attempt{
				Model:  ref,
				Status: AttemptDeadlineExceeded,
				Detail: ctx.Err().Error(),
			})
			break
		}

		attempt := e.tryCandidate(ctx, ref, res, messages, req)
		attempts = append(attempts, attempt)
		if e.metrics != nil {
			e.metrics.ObserveAttempt(ref.Provider, attempt.Status, attempt.Latency)
		}

		if attempt.Status != AttemptSuccess {
			continue
		}

		decision := &Decision{
			ID:       id,
			Model:    ref,
			Reason:   res.reason,
			Category: res.category,
			Attempts: attempts,
			Response: attempt.response,
		}

		e.logger.Info("dispatch succeeded",
			"dispatch_id", id,
			"model", ref.String(),
			"reason", res.reason,
			"attempts", len(attempts),
			"latency_ms", attempt.Latency.Milliseconds(),
		)
		e.record(ctx, JournalRecord{
			ID:        id,
			Time:      started,
			Task:      req.Task,
			Category:  res.category,
			Reason:    res.reason,
			Model:     ref,
			Success:   true,
			Attempts:  attempts,
			LatencyMs: float64(attempt.Latency) / float64(time.Millisecond),
		})
		if e.metrics != nil {
			e.metrics.ObserveDispatch(res.reason, true)
		}
		return decision, nil
	}

	e.logger.Warn("dispatch exhausted",
		"dispatch_id", id,
		"reason", res.reason,
		"category", res.category,
		"attempts", len(attempts),
	)
	e.record(ctx, JournalRecord{
		ID:       id,
		Time:     started,
		Task:     req.Task,
		Category: res.category,
		Reason:   res.reason,
		Success:  false,
		Attempts: attempts,
	})
	if e.metrics != nil {
		e.metrics.ObserveDispatch(res.reason, false)
	}

	return nil, &ExhaustedError{ID: id, Attempts: attempts}
}

// tryCandidate runs one candidate through credential selection, preflight,
// and the full invocation, reporting the outcome to the health cache and
// the override failure budget.
func (e *Engine) tryCandidate(ctx context.Context, ref catalog.Ref, res resolution, messages []providers.Message, req *Request) Attempt {
	inv, ok := e.invokers[ref.Provider]
	if !ok {
		return Attempt{
			Model:  ref,
			Status: AttemptSkipped,
			Detail: fmt.Sprintf("no invoker for provider %q", ref.Provider),
		}
	}

	cred, err := e.pool.NextCredential(ref.Provider, e.healthCache)
	if err != nil {
		// All credentials cooling down or none configured. Not a failed
		// attempt; the candidate was never tried.
		return Attempt{
			Model:  ref,
			Status: AttemptSkipped,
			Detail: err.Error(),
		}
	}

	pfCtx, cancel := context.WithTimeout(ctx, e.preflightTimeout)
	pfErr := inv.Preflight(pfCtx, cred.Secret)
	cancel()
	if pfErr != nil {
		// Fail fast; never wait out a slow or dead candidate.
		e.healthCache.Record(ref.Provider, cred.ID, health.Failure(health.ErrorTimeout))
		if res.reason == ReasonOverride && ref == res.pinned {
			e.overrides.RecordOutcome(false)
		}
		return Attempt{
			Model:        ref,
			CredentialID: cred.ID,
			Status:       AttemptFailed,
			ErrorKind:    health.ErrorTimeout,
			Detail:       "preflight: " + pfErr.Error(),
		}
	}

	resp, err := inv.Invoke(ctx, cred.Secret, &providers.InvokeRequest{
		Model:       ref.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})

	switch {
	case err == nil:
		e.healthCache.Record(ref.Provider, cred.ID, health.Success(resp.Latency))
		if res.reason == ReasonOverride && ref == res.pinned {
			e.overrides.RecordOutcome(true)
		}
		return Attempt{
			Model:        ref,
			CredentialID: cred.ID,
			Status:       AttemptSuccess,
			Latency:      resp.Latency,
			response:     resp,
		}

	case providers.IsRateLimited(err):
		e.healthCache.Record(ref.Provider, cred.ID, health.RateLimited())
		return Attempt{
			Model:        ref,
			CredentialID: cred.ID,
			Status:       AttemptRateLimited,
			Detail:       err.Error(),
		}

	default:
		kind := providers.Classify(err)
		e.healthCache.Record(ref.Provider, cred.ID, health.Failure(kind))
		if res.reason == ReasonOverride && ref == res.pinned {
			e.overrides.RecordOutcome(false)
		}
		return Attempt{
			Model:        ref,
			CredentialID: cred.ID,
			Status:       AttemptFailed,
			ErrorKind:    kind,
			Detail:       err.Error(),
		}
	}
}

// candidates builds the ordered candidate sequence for a category.
// Primary and secondary entries are filtered by capability; emergency
// entries always join as the universal backstop. Within each tier,
// configuration order is kept and candidates are stably reordered by
// ascending cached latency, so a known-fast provider is preferred over a
// known-slow sibling. The default category skips capability filtering
// since it means "no preference".
func (e *Engine) candidates(category classify.Category) []catalog.Ref {
	snap := e.healthCache.Snapshot()

	var out []catalog.Ref
	for _, tier := range catalog.Tiers {
		var refs []catalog.Ref
		for _, ref := range e.catalog.Pool(tier) {
			if tier != catalog.TierEmergency && category != classify.CategoryDefault {
				m, err := e.catalog.Model(ref)
				if err != nil || !m.Supports(string(category)) {
					continue
				}
			}
			refs = append(refs, ref)
		}

		sort.SliceStable(refs, func(i, j int) bool {
			return e.cachedLatency(snap, refs[i]) < e.cachedLatency(snap, refs[j])
		})
		out = append(out, refs...)
	}
	return out
}

// cachedLatency returns the best known latency for a model's provider.
// Unknown providers report zero, which matches cold-state semantics: no
// prior knowledge means no penalty.
func (e *Engine) cachedLatency(snap map[string]health.Record, ref catalog.Ref) float64 {
	best := 0.0
	found := false
	for _, cred := range e.pool.Credentials(ref.Provider) {
		r, ok := snap[health.Key(ref.Provider, cred.ID)]
		if !ok || r.AvgLatencyMs == 0 {
			continue
		}
		if !found || r.AvgLatencyMs < best {
			best = r.AvgLatencyMs
			found = true
		}
	}
	return best
}

func (e *Engine) record(ctx context.Context, rec JournalRecord) {
	if e.journal != nil {
		e.journal.RecordDispatch(ctx, rec)
	}
}

// SetOverride pins a model for subsequent dispatches. The reference must
// resolve in the catalog. A zero ttl selects the store's default.
func (e *Engine) SetOverride(ref catalog.Ref, ttl time.Duration) error {
	if _, err := e.catalog.Model(ref); err != nil {
		return err
	}
	e.overrides.Set(ref, ttl)
	e.logger.Info("override set", "model", ref.String(), "ttl", ttl)
	return nil
}

// ClearOverride removes any pinned model. Idempotent.
func (e *Engine) ClearOverride() {
	e.overrides.Clear()
	e.logger.Info("override cleared")
}

// OverrideStatus returns the active override, if any.
func (e *Engine) OverrideStatus() (override.Status, bool) {
	return e.overrides.Get()
}

// HealthSnapshot returns the current health records for status reporting.
func (e *Engine) HealthSnapshot() map[string]health.Record {
	return e.healthCache.Snapshot()
}

// Catalog returns the engine's model catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Classify exposes the engine's classifier for status and dry-run tooling.
func (e *Engine) Classify(text string) classify.Category {
	return e.classifier.Classify(text)
}
