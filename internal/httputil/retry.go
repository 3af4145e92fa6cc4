// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP retry loop and error taxonomy shared by
// every provider client.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second

	// MaxBackoff caps a single exponential backoff wait.
	MaxBackoff = 30 * time.Second

	maxErrorBody = 64 << 10
)

// Retrier executes HTTP requests under the retry policy:
//
//   - 429: wait for Retry-After or the reset header when present, otherwise
//     back off exponentially; fail with RateLimitError once retries run out.
//   - 5xx and network failures: exponential backoff with jitter.
//   - any other non-2xx: fail immediately with APIError.
//
// Sleep, Now and Jitter are injectable so tests run without real delays.
type Retrier struct {
	Client     *http.Client
	MaxRetries int
	BaseDelay  time.Duration

	// ResetHeader names a platform header carrying the rate-limit window
	// reset as a Unix epoch (e.g. "x-rate-limit-reset").
	ResetHeader string

	Sleep  func(ctx context.Context, d time.Duration) error
	Now    func() time.Time
	Jitter func() float64
	Logger *slog.Logger
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Jitter returns a multiplier sampled uniformly from [0.85, 1.15].
func Jitter() float64 {
	return 0.85 + rand.Float64()*0.30
}

// Backoff returns min(MaxBackoff, base * 2^attempt * jitter).
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	d := float64(base) * math.Pow(2, float64(attempt)) * jitter
	if d > float64(MaxBackoff) {
		return MaxBackoff
	}
	return time.Duration(d)
}

// ParseRetryAfter interprets a Retry-After value given either as delay
// seconds or as an HTTP-date relative to now.
func ParseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// ParseResetEpoch interprets a Unix-epoch reset header value.
func ParseResetEpoch(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

func (r *Retrier) maxRetries() int {
	if r.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return r.MaxRetries
}

func (r *Retrier) baseDelay() time.Duration {
	if r.BaseDelay <= 0 {
		return defaultBaseDelay
	}
	return r.BaseDelay
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (r *Retrier) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Retrier) jitter() float64 {
	if r.Jitter != nil {
		return r.Jitter()
	}
	return Jitter()
}

func (r *Retrier) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Retrier) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

// rateLimitWait reads Retry-After, then the reset header, from a 429.
func (r *Retrier) rateLimitWait(resp *http.Response) (wait, retryAfter time.Duration, reset time.Time) {
	now := r.now()
	if d, ok := ParseRetryAfter(resp.Header.Get("Retry-After"), now); ok {
		retryAfter = d
		wait = d
	}
	if r.ResetHeader != "" {
		if t, ok := ParseResetEpoch(resp.Header.Get(r.ResetHeader)); ok {
			reset = t
			if wait == 0 {
				if d := t.Sub(now); d > 0 {
					wait = d
				}
			}
		}
	}
	if reset.IsZero() && retryAfter > 0 {
		reset = now.Add(retryAfter)
	}
	return wait, retryAfter, reset
}

// Do sends req, retrying per the policy above. Request bodies are replayed
// through req.GetBody, which http.NewRequest sets for in-memory readers.
// On success the caller owns the returned response body.
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	maxRetries := r.maxRetries()
	log := r.logger()

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := r.client().Do(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt >= maxRetries {
				return nil, &TransientError{Attempts: attempt + 1, Err: err}
			}
			wait := Backoff(r.baseDelay(), attempt, r.jitter())
			log.Info("network error, retrying", "url", req.URL.Redacted(), "attempt", attempt+1, "delay", wait, "err", err)
			if err := r.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			wait, retryAfter, reset := r.rateLimitWait(resp)
			drain(resp)
			if attempt >= maxRetries {
				return nil, &RateLimitError{RetryAfter: retryAfter, ResetTime: reset}
			}
			if wait == 0 {
				wait = Backoff(r.baseDelay(), attempt, r.jitter())
			}
			log.Info("rate limited, retrying", "url", req.URL.Redacted(), "attempt", attempt+1, "delay", wait)
			if err := r.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case resp.StatusCode >= 500:
			apiErr := readAPIError(resp)
			if attempt >= maxRetries {
				return nil, apiErr
			}
			wait := Backoff(r.baseDelay(), attempt, r.jitter())
			log.Info("server error, retrying", "url", req.URL.Redacted(), "status", resp.StatusCode, "attempt", attempt+1, "delay", wait)
			if err := r.sleep(ctx, wait); err != nil {
				return nil, err
			}

		default:
			return nil, readAPIError(resp)
		}
	}
}

func readAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return parseAPIError(resp.StatusCode, body)
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}
