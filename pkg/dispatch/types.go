package dispatch

import (
	"context"
	"time"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/classify"
	"github.com/oppilot/oppilot/pkg/health"
	"github.com/oppilot/oppilot/pkg/providers"
)

// Reason explains how the dispatched model was chosen.
type Reason string

// Resolution reasons, in precedence order.
const (
	// ReasonManualProfile means the caller passed an explicit category.
	ReasonManualProfile Reason = "manual-profile"

	// ReasonOverride means an active pinned override selected the model.
	ReasonOverride Reason = "override"

	// ReasonAutoClassified means the task text was classified.
	ReasonAutoClassified Reason = "auto-classified"

	// ReasonFallback means nothing was given and the default category
	// applied.
	ReasonFallback Reason = "fallback"
)

// AttemptStatus is the outcome of one candidate attempt.
type AttemptStatus string

// Attempt outcomes recorded in the dispatch log.
const (
	AttemptSuccess          AttemptStatus = "success"
	AttemptRateLimited      AttemptStatus = "rate-limited"
	AttemptFailed           AttemptStatus = "failed"
	AttemptSkipped          AttemptStatus = "skipped"
	AttemptDeadlineExceeded AttemptStatus = "deadline-exceeded"
)

// Attempt is one entry in the dispatch attempt log.
type Attempt struct {
	// Model is the candidate that was tried or skipped.
	Model catalog.Ref `json:"model"`

	// CredentialID identifies the credential used, empty when none was
	// selectable.
	CredentialID string `json:"credential_id,omitempty"`

	// Status is the attempt outcome.
	Status AttemptStatus `json:"status"`

	// ErrorKind classifies a failed attempt.
	ErrorKind health.ErrorKind `json:"error_kind,omitempty"`

	// Latency is the observed call duration for successful attempts.
	Latency time.Duration `json:"latency,omitempty"`

	// Detail carries a short diagnostic message for non-success outcomes.
	Detail string `json:"detail,omitempty"`

	// response carries the provider completion for the successful attempt.
	response *providers.InvokeResponse
}

// Request is one dispatch invocation.
type Request struct {
	// Task is the free-text task description used for classification and,
	// when Messages is empty, as the single user message.
	Task string

	// Category is an explicit manual profile. Non-empty values bypass
	// classification and cancel any active override.
	Category classify.Category

	// Messages optionally carries a full conversation to send to the
	// provider. When empty, Task is wrapped as one user message.
	Messages []providers.Message

	// MaxTokens bounds the completion length. Zero lets the provider
	// choose.
	MaxTokens int

	// Temperature controls sampling randomness. Zero means provider
	// default.
	Temperature float64
}

// Decision is the outcome of one successful Dispatch call.
type Decision struct {
	// ID uniquely identifies this dispatch for journaling.
	ID string `json:"id"`

	// Model is the model that served the request.
	Model catalog.Ref `json:"model"`

	// Reason explains how the model was chosen.
	Reason Reason `json:"reason"`

	// Category is the resolved task category. Empty when an override
	// short-circuited classification.
	Category classify.Category `json:"category,omitempty"`

	// Attempts is the ordered attempt log, including the successful one.
	Attempts []Attempt `json:"attempts"`

	// Response is the provider's completion.
	Response *providers.InvokeResponse `json:"-"`
}

// Journal receives the outcome of every dispatch, successful or not.
// Implementations must not fail the dispatch path; errors are theirs to
// log and swallow.
type Journal interface {
	RecordDispatch(ctx context.Context, rec JournalRecord)
}

// JournalRecord is the journal's view of one dispatch.
type JournalRecord struct {
	ID        string
	Time      time.Time
	Task      string
	Category  classify.Category
	Reason    Reason
	Model     catalog.Ref
	Success   bool
	Attempts  []Attempt
	LatencyMs float64
}

// Metrics receives dispatch observations. Implementations must be cheap
// and non-blocking.
type Metrics interface {
	ObserveDispatch(reason Reason, success bool)
	ObserveAttempt(provider string, status AttemptStatus, latency time.Duration)
}
