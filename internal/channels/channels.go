// Package channels defines the outbound reminder channel contract shared by the
// WhatsApp and email senders.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"greendrake/dunning/internal/messages"
)

// Result is the classified outcome of one provider call.
// OK=false with Retry=true means the failure is transient and the invoice stays
// eligible for the next run. Code carries the HTTP status when there was one.
type Result struct {
	OK    bool   `json:"ok"`
	Retry bool   `json:"retry,omitempty"`
	Code  int    `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Sender delivers one reminder to one recipient. Implementations never touch
// idempotency or audit state.
type Sender interface {
	Send(ctx context.Context, recipient string, msg messages.ReminderData) Result
}

// Ok is the successful result.
func Ok() Result { return Result{OK: true} }

// Permanent is a failure that will not succeed without a data or config fix.
func Permanent(code int, format string, args ...any) Result {
	return Result{Code: code, Error: fmt.Sprintf(format, args...)}
}

// Retryable is a transient failure.
func Retryable(code int, format string, args ...any) Result {
	return Result{Retry: true, Code: code, Error: fmt.Sprintf(format, args...)}
}

// Response is the raw provider answer returned by PostJSON.
type Response struct {
	StatusCode int
	Body       []byte
}

// PostJSON marshals payload and POSTs it with bearer auth. A non-nil error means
// the request never produced an HTTP response (transport failure or timeout).
func PostJSON(ctx context.Context, client *http.Client, url, token string, payload any) (*Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// TransportFailure classifies an error from PostJSON or a limiter wait.
func TransportFailure(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable(0, "timeout: %v", err)
	}
	return Retryable(0, "network error: %v", err)
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}
