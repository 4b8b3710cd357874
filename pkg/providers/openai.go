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

// OpenAIInvoker speaks the OpenAI-compatible chat completions protocol.
// Aggregators (OpenRouter, SiliconFlow, DeepSeek, ...) expose the same
// surface, so this invoker covers every provider configured with type
// "openai".
type OpenAIInvoker struct {
	httpInvoker
}

// NewOpenAIInvoker creates an invoker for an OpenAI-compatible endpoint.
// baseURL should include the version prefix, e.g.
// "https://api.openai.com/v1".
func NewOpenAIInvoker(name, baseURL string, client *http.Client) *OpenAIInvoker {
	return &OpenAIInvoker{httpInvoker{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}}
}

// Name returns the provider's configured name.
func (p *OpenAIInvoker) Name() string { return p.name }

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Invoke sends a chat completions request.
func (p *OpenAIInvoker) Invoke(ctx context.Context, apiKey string, req *InvokeRequest) (*InvokeResponse, error) {
	payload, err := json.Marshal(openAIRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	body, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var parsed openAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ParseError{Provider: p.name, Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ParseError{Provider: p.name, Cause: fmt.Errorf("response has no choices")}
	}

	return &InvokeResponse{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: strings.ToLower(parsed.Choices[0].FinishReason),
		Usage:        parsed.Usage,
		Latency:      latency,
	}, nil
}

// Preflight probes the models listing endpoint.
func (p *OpenAIInvoker) Preflight(ctx context.Context, apiKey string) error {
	return p.preflightGET(ctx, p.baseURL+"/models", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+apiKey)
	})
}
