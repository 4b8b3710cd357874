package override

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/state"
)

// FailureLimit is the consecutive-failure count at which an active override
// is cleared.
const FailureLimit = 3

// DefaultTTL is used when Set is called without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// Status describes an active override.
type Status struct {
	// Model is the pinned model.
	Model catalog.Ref

	// SpecifiedAt is when the override was set.
	SpecifiedAt time.Time

	// TTL is the override's lifetime from SpecifiedAt.
	TTL time.Duration

	// ConsecutiveFailures counts dispatch failures since the last success.
	ConsecutiveFailures int
}

// ExpiresAt returns when the override lapses.
func (s Status) ExpiresAt() time.Time {
	return s.SpecifiedAt.Add(s.TTL)
}

// persisted is the state file schema.
type persisted struct {
	SpecifiedModel      string    `json:"specified_model"`
	SpecifiedAt         time.Time `json:"specified_at,omitempty"`
	SpecifiedTTLSeconds int64     `json:"specified_ttl_seconds,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures,omitempty"`
}

// Options configures store behavior.
type Options struct {
	// DefaultTTL applies when Set receives a zero TTL. Default: 24h.
	DefaultTTL time.Duration

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time

	// Logger receives persistence warnings. Default: slog.Default().
	Logger *slog.Logger
}

// Store holds the singleton override state, persisted on every mutation.
// Safe for concurrent use within one process.
type Store struct {
	mu    sync.Mutex
	cur   persisted
	store *state.FileStore

	defaultTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewStore creates a store backed by the given file store and loads any
// persisted override. Missing or corrupt state starts with no override.
func NewStore(fs *state.FileStore, opts Options) *Store {
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		store:      fs,
		defaultTTL: opts.DefaultTTL,
		now:        opts.Now,
		logger:     opts.Logger,
	}

	var cur persisted
	switch err := fs.Load(&cur); {
	case err == nil:
		s.cur = cur
	case errors.Is(err, state.ErrNotExist):
		// No override set.
	case errors.Is(err, state.ErrCorrupt):
		s.logger.Warn("override state corrupt, starting empty",
			"path", fs.Path(),
			"error", err)
	default:
		s.logger.Warn("override state unreadable, starting empty",
			"path", fs.Path(),
			"error", err)
	}

	return s
}

// Set pins the given model. A zero ttl selects the default. Resets the
// consecutive-failure counter.
func (s *Store) Set(model catalog.Ref, ttl time.Duration) {
	if ttl == 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cur = persisted{
		SpecifiedModel:      model.String(),
		SpecifiedAt:         s.now(),
		SpecifiedTTLSeconds: int64(ttl / time.Second),
	}
	s.persistLocked()
}

// Get returns the active override, if any. An expired or failure-exhausted
// override is cleared with an observable write before reporting absence, so
// subsequent readers (including other processes) see the cleared state.
func (s *Store) Get() (Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur.SpecifiedModel == "" {
		return Status{}, false
	}

	if !s.activeLocked() {
		s.cur = persisted{}
		s.persistLocked()
		return Status{}, false
	}

	ref, err := catalog.ParseRef(s.cur.SpecifiedModel)
	if err != nil {
		s.logger.Warn("override holds invalid model reference, clearing",
			"model", s.cur.SpecifiedModel)
		s.cur = persisted{}
		s.persistLocked()
		return Status{}, false
	}

	return Status{
		Model:               ref,
		SpecifiedAt:         s.cur.SpecifiedAt,
		TTL:                 time.Duration(s.cur.SpecifiedTTLSeconds) * time.Second,
		ConsecutiveFailures: s.cur.ConsecutiveFailures,
	}, true
}

// RecordOutcome reports a dispatch outcome for the pinned model. A success
// resets the failure counter; a failure increments it, and the override is
// cleared immediately once FailureLimit is reached. No-op when no override
// is active.
func (s *Store) RecordOutcome(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur.SpecifiedModel == "" || !s.activeLocked() {
		return
	}

	if success {
		if s.cur.ConsecutiveFailures == 0 {
			return
		}
		s.cur.ConsecutiveFailures = 0
	} else {
		s.cur.ConsecutiveFailures++
		if s.cur.ConsecutiveFailures >= FailureLimit {
			s.logger.Info("override cleared after consecutive failures",
				"model", s.cur.SpecifiedModel,
				"failures", s.cur.ConsecutiveFailures)
			s.cur = persisted{}
		}
	}
	s.persistLocked()
}

// Clear removes any override. Idempotent; always succeeds.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur.SpecifiedModel == "" {
		return
	}
	s.cur = persisted{}
	s.persistLocked()
}

// activeLocked checks the override invariant: a model is pinned, its TTL
// has not elapsed, and it is under the failure limit.
func (s *Store) activeLocked() bool {
	if s.cur.SpecifiedModel == "" {
		return false
	}
	if s.cur.ConsecutiveFailures >= FailureLimit {
		return false
	}
	ttl := time.Duration(s.cur.SpecifiedTTLSeconds) * time.Second
	return s.now().Sub(s.cur.SpecifiedAt) < ttl
}

func (s *Store) persistLocked() {
	if err := s.store.Save(s.cur); err != nil {
		s.logger.Warn("failed to persist override state",
			"path", s.store.Path(),
			"error", err)
	}
}
