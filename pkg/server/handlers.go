package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/oppilot/oppilot/pkg/classify"
	"github.com/oppilot/oppilot/pkg/dispatch"
	"github.com/oppilot/oppilot/pkg/providers"
)

// chatCompletionRequest is the accepted OpenAI-style request body. The
// model field names a task category ("coding", "fast", ...) rather than a
// concrete model; "auto" or empty lets the classifier decide.
type chatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	var body chatCompletionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(body.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	req, err := toDispatchRequest(&body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	decision, err := s.engine.Dispatch(r.Context(), req)
	if err != nil {
		var exhausted *dispatch.ExhaustedError
		if errors.As(err, &exhausted) {
			writeError(w, http.StatusBadGateway, "upstream_error",
				fmt.Sprintf("all candidate models failed (%d attempts)", len(exhausted.Attempts)))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "dispatch failed")
		return
	}

	w.Header().Set("X-Dispatch-Id", decision.ID)
	w.Header().Set("X-Dispatch-Model", decision.Model.String())
	w.Header().Set("X-Dispatch-Reason", string(decision.Reason))
	if decision.Category != "" {
		w.Header().Set("X-Dispatch-Category", string(decision.Category))
	}
	w.Header().Set("X-Dispatch-Attempts", strconv.Itoa(len(decision.Attempts)))

	writeJSON(w, http.StatusOK, toChatResponse(decision))
}

// toDispatchRequest maps the HTTP body onto an engine request. The last
// user message is the classification text.
func toDispatchRequest(body *chatCompletionRequest) (*dispatch.Request, error) {
	req := &dispatch.Request{
		MaxTokens:   body.MaxTokens,
		Temperature: body.Temperature,
	}

	switch body.Model {
	case "", "auto":
	default:
		category := classify.Category(body.Model)
		if !category.IsValid() {
			return nil, fmt.Errorf("unknown model %q (use a task category or \"auto\")", body.Model)
		}
		req.Category = category
	}

	for _, m := range body.Messages {
		req.Messages = append(req.Messages, providers.Message{Role: m.Role, Content: m.Content})
		if m.Role == "user" {
			req.Task = m.Content
		}
	}
	return req, nil
}

func toChatResponse(decision *dispatch.Decision) *chatCompletionResponse {
	resp := decision.Response
	return &chatCompletionResponse{
		ID:      decision.ID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   decision.Model.String(),
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: resp.Content},
			FinishReason: resp.FinishReason,
		}},
		Usage: chatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the /v1/status body.
type statusResponse struct {
	Override    *overrideStatus         `json:"override,omitempty"`
	Credentials map[string]healthStatus `json:"credentials"`
	Journal     *journalStatus          `json:"journal,omitempty"`
}

type overrideStatus struct {
	Model               string    `json:"model"`
	SpecifiedAt         time.Time `json:"specified_at"`
	ExpiresAt           time.Time `json:"expires_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

type healthStatus struct {
	SuccessCount        int        `json:"success_count"`
	FailureCount        int        `json:"failure_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	AvgLatencyMs        float64    `json:"avg_latency_ms"`
	CoolingDown         bool       `json:"cooling_down"`
	CooldownUntil       *time.Time `json:"cooldown_until,omitempty"`
}

type journalStatus struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	ByModel   map[string]int `json:"by_model"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	resp := statusResponse{
		Credentials: make(map[string]healthStatus),
	}

	if status, ok := s.engine.OverrideStatus(); ok {
		resp.Override = &overrideStatus{
			Model:               status.Model.String(),
			SpecifiedAt:         status.SpecifiedAt,
			ExpiresAt:           status.ExpiresAt(),
			ConsecutiveFailures: status.ConsecutiveFailures,
		}
	}

	now := time.Now()
	for key, rec := range s.engine.HealthSnapshot() {
		st := healthStatus{
			SuccessCount:        rec.SuccessCount,
			FailureCount:        rec.FailureCount,
			ConsecutiveFailures: rec.ConsecutiveFailures,
			AvgLatencyMs:        rec.AvgLatencyMs,
		}
		if rec.CooldownUntil.After(now) {
			until := rec.CooldownUntil
			st.CoolingDown = true
			st.CooldownUntil = &until
		}
		resp.Credentials[key] = st
	}

	if s.opts.Journal != nil {
		stats, err := s.opts.Journal.Stats(r.Context())
		if err != nil {
			s.logger.Warn("journal stats unavailable", "error", err)
		} else {
			resp.Journal = &journalStatus{
				Total:     stats.Total,
				Succeeded: stats.Succeeded,
				ByModel:   stats.ByModel,
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: message, Type: errType}})
}

// requestIDMiddleware stamps each request with an X-Request-Id when the
// client did not supply one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
			r.Header.Set("X-Request-Id", id)
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", r.Header.Get("X-Request-Id"),
		)
	})
}

func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in handler", "panic", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
