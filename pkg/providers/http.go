package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// maxErrorBody caps how much of an error response body is read for the
// error message.
const maxErrorBody = 4 << 10

// httpInvoker holds what every wire protocol implementation shares.
type httpInvoker struct {
	name    string
	baseURL string
	client  *http.Client
}

// do sends the request, returning the response body on 2xx and a typed
// error otherwise.
func (h *httpInvoker) do(req *http.Request) ([]byte, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, h.wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &ProviderError{
				Provider: h.name,
				Message:  "failed to read response body",
				Cause:    err,
			}
		}
		return body, nil
	}

	return nil, h.statusError(resp)
}

// statusError maps a non-2xx response to a typed error.
func (h *httpInvoker) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := errorMessage(body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Provider: h.name, Message: msg}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   h.name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    msg,
		}

	default:
		return &ProviderError{
			Provider:   h.name,
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}
}

// wrapTransportError maps transport-level failures to typed errors.
func (h *httpInvoker) wrapTransportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Provider: h.name, Cause: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &TimeoutError{Provider: h.name, Cause: err}
	default:
		return &ProviderError{
			Provider: h.name,
			Message:  "request failed",
			Cause:    err,
		}
	}
}

// errorMessage extracts a human-readable message from a provider error
// body. Providers disagree on the envelope, so a few shapes are tried
// before falling back to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if len(body) == 0 {
		return "no response body"
	}
	return string(body)
}

// parseRetryAfter parses a Retry-After header in seconds form.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// preflightGET sends a bounded GET and treats any 2xx as alive.
func (h *httpInvoker) preflightGET(ctx context.Context, url string, decorate func(*http.Request)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build preflight request: %w", err)
	}
	decorate(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return h.wrapTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &ProviderError{
		Provider:   h.name,
		StatusCode: resp.StatusCode,
		Message:    "preflight probe failed",
	}
}
