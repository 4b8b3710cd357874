package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoogleInvoker speaks the Google generateContent API.
// Authentication is a key query parameter rather than a header.
type GoogleInvoker struct {
	httpInvoker
}

// NewGoogleInvoker creates an invoker for a Google endpoint. baseURL
// includes the version prefix, e.g.
// "https://generativelanguage.googleapis.com/v1beta".
func NewGoogleInvoker(name, baseURL string, client *http.Client) *GoogleInvoker {
	return &GoogleInvoker{httpInvoker{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}}
}

// Name returns the provider's configured name.
func (p *GoogleInvoker) Name() string { return p.name }

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  *struct {
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
		Temperature     float64 `json:"temperature,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// Invoke sends a generateContent request. Roles map onto Google's
// user/model vocabulary; system messages become the systemInstruction.
func (p *GoogleInvoker) Invoke(ctx context.Context, apiKey string, req *InvokeRequest) (*InvokeResponse, error) {
	body := googleRequest{}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: m.Content}}}
		case "assistant":
			body.Contents = append(body.Contents, googleContent{
				Role:  "model",
				Parts: []googlePart{{Text: m.Content}},
			})
		default:
			body.Contents = append(body.Contents, googleContent{
				Role:  "user",
				Parts: []googlePart{{Text: m.Content}},
			})
		}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 {
		body.GenerationConfig = &struct {
			MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
			Temperature     float64 `json:"temperature,omitempty"`
		}{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		p.baseURL, url.PathEscape(req.Model), url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	respBody, err := p.do(httpReq)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	var parsed googleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ParseError{Provider: p.name, Cause: err}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, &ParseError{Provider: p.name, Cause: fmt.Errorf("response has no candidates")}
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	model := parsed.ModelVersion
	if model == "" {
		model = req.Model
	}

	return &InvokeResponse{
		Content:      text.String(),
		Model:        model,
		FinishReason: strings.ToLower(parsed.Candidates[0].FinishReason),
		Usage: Usage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
		Latency: latency,
	}, nil
}

// Preflight probes the models listing endpoint with the key parameter.
func (p *GoogleInvoker) Preflight(ctx context.Context, apiKey string) error {
	endpoint := p.baseURL + "/models?key=" + url.QueryEscape(apiKey)
	return p.preflightGET(ctx, endpoint, func(*http.Request) {})
}
