package health

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oppilot/oppilot/pkg/state"
)

// ErrorKind classifies a failed attempt.
type ErrorKind string

// Failure classifications recorded in the attempt trail.
const (
	ErrorTimeout ErrorKind = "timeout"
	ErrorNetwork ErrorKind = "network"
	ErrorAuth    ErrorKind = "auth"
	ErrorServer  ErrorKind = "server"
	ErrorOther   ErrorKind = "other"
)

// latencyWeight is the EWMA weight given to the newest sample.
const latencyWeight = 0.3

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeRateLimited
	outcomeFailure
)

// Outcome is the result of one invocation attempt, reported to the cache
// via Record. Construct with Success, RateLimited, or Failure.
type Outcome struct {
	kind    outcomeKind
	latency time.Duration
	errKind ErrorKind
}

// Success reports a successful attempt with its observed latency.
func Success(latency time.Duration) Outcome {
	return Outcome{kind: outcomeSuccess, latency: latency}
}

// RateLimited reports a rate-limit response (HTTP 429 equivalent).
func RateLimited() Outcome {
	return Outcome{kind: outcomeRateLimited}
}

// Failure reports a non-rate-limit failure of the given kind.
func Failure(kind ErrorKind) Outcome {
	return Outcome{kind: outcomeFailure, errKind: kind}
}

// Record is the persisted health state for one (provider, credential) pair.
type Record struct {
	// SuccessCount is the total number of successful attempts.
	SuccessCount int `json:"success_count"`

	// FailureCount is the total number of failed attempts.
	FailureCount int `json:"failure_count"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// AvgLatencyMs is the exponentially weighted latency average.
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// CooldownUntil excludes the credential from selection while in the
	// future. Zero means not cooling down.
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`

	// LastUsed is when the credential was last attempted. Drives
	// least-recently-used credential selection.
	LastUsed time.Time `json:"last_used,omitempty"`
}

// Options configures cache behavior. Zero values select the defaults
// documented on each field.
type Options struct {
	// RateLimitCooldown is applied on a RateLimited outcome.
	// Default: 10m
	RateLimitCooldown time.Duration

	// FailureCooldown is applied after FailureThreshold consecutive
	// failures.
	// Default: 2m
	FailureCooldown time.Duration

	// FailureThreshold is the consecutive-failure count that triggers
	// FailureCooldown.
	// Default: 5
	FailureThreshold int

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time

	// Logger receives persistence warnings. Default: slog.Default().
	Logger *slog.Logger
}

// Cache tracks per-credential health and latency, persisting every mutation.
// Safe for concurrent use within one process; cross-process safety relies on
// the store's atomic replace semantics.
type Cache struct {
	mu      sync.Mutex
	records map[string]Record
	store   *state.FileStore

	rateLimitCooldown time.Duration
	failureCooldown   time.Duration
	failureThreshold  int
	now               func() time.Time
	logger            *slog.Logger
}

// NewCache creates a cache backed by the given store and loads any persisted
// records. A missing or corrupt state file starts cold with no records.
func NewCache(store *state.FileStore, opts Options) *Cache {
	if opts.RateLimitCooldown == 0 {
		opts.RateLimitCooldown = 10 * time.Minute
	}
	if opts.FailureCooldown == 0 {
		opts.FailureCooldown = 2 * time.Minute
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Cache{
		records:           make(map[string]Record),
		store:             store,
		rateLimitCooldown: opts.RateLimitCooldown,
		failureCooldown:   opts.FailureCooldown,
		failureThreshold:  opts.FailureThreshold,
		now:               opts.Now,
		logger:            opts.Logger,
	}

	var persisted map[string]Record
	switch err := store.Load(&persisted); {
	case err == nil:
		c.records = persisted
		if c.records == nil {
			c.records = make(map[string]Record)
		}
	case errors.Is(err, state.ErrNotExist):
		// Cold start.
	case errors.Is(err, state.ErrCorrupt):
		c.logger.Warn("health state corrupt, starting cold",
			"path", store.Path(),
			"error", err)
	default:
		c.logger.Warn("health state unreadable, starting cold",
			"path", store.Path(),
			"error", err)
	}

	return c
}

// Key returns the cache key for a (provider, credential) pair. The
// credential identifier is expected to be non-secret (an index or digest).
func Key(provider, credentialID string) string {
	return provider + "/" + credentialID
}

// Record applies an attempt outcome to the credential's health record and
// persists the updated record set. On RateLimited the cooldown is set
// unconditionally, overwriting any shorter one. Failures past the
// consecutive-failure threshold set the failure cooldown. Success resets
// the consecutive counter and folds the latency sample into the average.
func (c *Cache) Record(provider, credentialID string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	r := c.records[Key(provider, credentialID)]
	r.LastUsed = now

	switch outcome.kind {
	case outcomeSuccess:
		r.SuccessCount++
		r.ConsecutiveFailures = 0
		sample := float64(outcome.latency) / float64(time.Millisecond)
		if r.AvgLatencyMs == 0 {
			r.AvgLatencyMs = sample
		} else {
			r.AvgLatencyMs = latencyWeight*sample + (1-latencyWeight)*r.AvgLatencyMs
		}

	case outcomeRateLimited:
		r.FailureCount++
		r.ConsecutiveFailures++
		r.CooldownUntil = now.Add(c.rateLimitCooldown)

	case outcomeFailure:
		r.FailureCount++
		r.ConsecutiveFailures++
		if r.ConsecutiveFailures >= c.failureThreshold {
			r.CooldownUntil = now.Add(c.failureCooldown)
		}
	}

	c.records[Key(provider, credentialID)] = r
	c.persistLocked()
}

// IsAvailable reports whether the credential is outside any cooldown
// window. Unknown credentials are available.
func (c *Cache) IsAvailable(provider, credentialID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[Key(provider, credentialID)]
	if !ok {
		return true
	}
	return r.CooldownUntil.IsZero() || !r.CooldownUntil.After(c.now())
}

// Get returns the record for a credential and whether one exists.
func (c *Cache) Get(provider, credentialID string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[Key(provider, credentialID)]
	return r, ok
}

// Snapshot returns a copy of all records, keyed by "provider/credential".
// Used for candidate ordering and status reporting.
func (c *Cache) Snapshot() map[string]Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]Record, len(c.records))
	for k, v := range c.records {
		out[k] = v
	}
	return out
}

// persistLocked writes the record set through to the store. Persistence
// failures degrade to in-memory state; dispatch must not fail because the
// state file is unwritable.
func (c *Cache) persistLocked() {
	if err := c.store.Save(c.records); err != nil {
		c.logger.Warn("failed to persist health state",
			"path", c.store.Path(),
			"error", err)
	}
}
