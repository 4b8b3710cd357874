package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// anthropicVersion is the messages API version header value.
const anthropicVersion = "2023-06-01"

// defaultAnthropicMaxTokens applies when the caller does not bound the
// completion; the messages API requires max_tokens.
const defaultAnthropicMaxTokens = 4096

// AnthropicInvoker speaks the Anthropic messages API.
type AnthropicInvoker struct {
	httpInvoker
}

// NewAnthropicInvoker creates an invoker for an Anthropic endpoint.
// baseURL is the host root, e.g. "https://api.anthropic.com".
func NewAnthropicInvoker(name, baseURL string, client *http.Client) *AnthropicInvoker {
	return &AnthropicInvoker{httpInvoker{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}}
}

// Name returns the provider's configured name.
func (p *AnthropicInvoker) Name() string { return p.name }

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Invoke sends a messages API request. System messages are lifted into the
// top-level system field since the messages array only accepts user and
// assistant roles.
func (p *AnthropicInvoker) Invoke(ctx context.Context, apiKey string, req *InvokeRequest) (*InvokeResponse, error) {
	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = defaultAnthropicMaxTokens
	}
	for _, m := range req.Messages {
		if m.Role == "system" {
			body.System = m.Content
			continue
		}
		body.Messages = append(body.Messages, m)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	respBody, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ParseError{Provider: p.name, Cause: err}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &ParseError{Provider: p.name, Cause: fmt.Errorf("response has no text content")}
	}

	return &InvokeResponse{
		Content:      text.String(),
		Model:        parsed.Model,
		FinishReason: strings.ToLower(parsed.StopReason),
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
		Latency: latency,
	}, nil
}

// Preflight probes the models listing endpoint.
func (p *AnthropicInvoker) Preflight(ctx context.Context, apiKey string) error {
	return p.preflightGET(ctx, p.baseURL+"/v1/models", func(r *http.Request) {
		r.Header.Set("x-api-key", apiKey)
		r.Header.Set("anthropic-version", anthropicVersion)
	})
}
