// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RateLimitError is returned when a platform keeps answering 429 after the
// retry budget is spent.
type RateLimitError struct {
	// RetryAfter is the wait the platform last asked for; zero if it gave none.
	RetryAfter time.Duration
	// ResetTime is when the platform's rate-limit window resets; zero if unknown.
	ResetTime time.Time
}

func (e *RateLimitError) Error() string {
	msg := "rate limited"
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	if !e.ResetTime.IsZero() {
		msg += fmt.Sprintf(", window resets at %s", e.ResetTime.UTC().Format(time.RFC3339))
	}
	return msg
}

// APIError is a non-2xx response that is either non-retryable or the last
// of an exhausted 5xx retry sequence.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("HTTP %d", e.Status)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Retryable reports whether the status is one the retry loop retries.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// AuthenticationError means credentials are missing or were rejected.
type AuthenticationError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *AuthenticationError) Error() string {
	msg := e.Platform + ": authentication failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransientError wraps a network-level failure that persisted through every
// retry.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("network error after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// HasStatus reports whether err carries an APIError with the given status.
func HasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// parseAPIError builds an APIError from a response body. Platforms disagree
// on the error envelope, so the common spellings are tried in turn.
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var env map[string]any
	if json.Unmarshal(body, &env) != nil {
		return e
	}

	// {"error": {"code": ..., "message": ...}} (TikTok, YouTube)
	if inner, ok := env["error"].(map[string]any); ok {
		e.Code = stringOf(inner["code"])
		e.Message = stringOf(inner["message"])
		if e.Code == "" {
			e.Code = stringOf(inner["status"])
		}
		return e
	}
	// {"errors": [{"code": ..., "message": ...}]} (X v1-style)
	if list, ok := env["errors"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			e.Code = stringOf(first["code"])
			e.Message = stringOf(first["message"])
		}
		return e
	}
	for _, k := range []string{"code", "error", "title", "type"} {
		if v := stringOf(env[k]); v != "" {
			e.Code = v
			break
		}
	}
	for _, k := range []string{"message", "detail", "error_description"} {
		if v := stringOf(env[k]); v != "" {
			e.Message = v
			break
		}
	}
	return e
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return ""
	}
}
