package providers

import (
	"context"
	"time"
)

// Message is a single conversation turn in a completion request.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// InvokeRequest is a provider-agnostic completion request.
type InvokeRequest struct {
	// Model is the provider-side model identifier.
	Model string

	// Messages is the conversation, oldest first.
	Messages []Message

	// MaxTokens bounds the completion length. Zero lets the provider
	// choose.
	MaxTokens int

	// Temperature controls sampling randomness. Zero means provider
	// default.
	Temperature float64
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InvokeResponse is a provider-agnostic completion response.
type InvokeResponse struct {
	// Content is the completion text.
	Content string

	// Model is the model that produced the completion, as reported by the
	// provider.
	Model string

	// FinishReason is the provider's stop reason, normalized to lowercase.
	FinishReason string

	// Usage reports token consumption when the provider supplies it.
	Usage Usage

	// Latency is the wall-clock duration of the provider call.
	Latency time.Duration
}

// Invoker sends requests to one provider endpoint.
//
// Implementations must respect context cancellation and return typed errors
// (AuthError, RateLimitError, TimeoutError, ProviderError) so callers can
// classify outcomes.
type Invoker interface {
	// Invoke sends a completion request using the given API key.
	Invoke(ctx context.Context, apiKey string, req *InvokeRequest) (*InvokeResponse, error)

	// Preflight probes provider liveness with the given API key. The
	// caller bounds the probe with a context deadline.
	Preflight(ctx context.Context, apiKey string) error

	// Name returns the provider's configured name.
	Name() string
}
