// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/social-search/pkg/types"
)

// DefaultTimeRange applies when a request names no range.
const DefaultTimeRange = "7d"

// Window is an absolute [Since, Until] search window.
type Window struct {
	Since time.Time
	Until time.Time
}

// ParseTimeRange maps a relative token to a window ending at now. Tokens
// are a positive count followed by h (hours), d (days), w (weeks),
// m (months) or y (years): "24h", "7d", "30d", "3m", "12m".
func ParseTimeRange(token string, now time.Time) (Window, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		token = DefaultTimeRange
	}
	if len(token) < 2 {
		return Window{}, fmt.Errorf("invalid time range %q", token)
	}
	n, err := strconv.Atoi(token[:len(token)-1])
	if err != nil || n <= 0 {
		return Window{}, fmt.Errorf("invalid time range %q: want a positive count and a unit such as 7d or 3m", token)
	}

	var since time.Time
	switch token[len(token)-1] {
	case 'h':
		since = now.Add(-time.Duration(n) * time.Hour)
	case 'd':
		since = now.AddDate(0, 0, -n)
	case 'w':
		since = now.AddDate(0, 0, -7*n)
	case 'm':
		since = now.AddDate(0, -n, 0)
	case 'y':
		since = now.AddDate(-n, 0, 0)
	default:
		return Window{}, fmt.Errorf("invalid time range unit in %q (want h, d, w, m or y)", token)
	}
	return Window{Since: since, Until: now}, nil
}

// Duration is the window length.
func (w Window) Duration() time.Duration { return w.Until.Sub(w.Since) }

// Contains reports whether t falls inside the window. Zero times and
// unbounded edges pass.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && t.After(w.Until) {
		return false
	}
	return true
}

// Clamp shortens the window to the platform's lookback ceiling. When it
// had to, it returns a warning for the response instead of failing.
func (w Window) Clamp(p types.Platform, ceiling time.Duration) (Window, string) {
	if ceiling <= 0 || w.Since.IsZero() || w.Duration() <= ceiling {
		return w, ""
	}
	clamped := Window{Since: w.Until.Add(-ceiling), Until: w.Until}
	days := int(math.Round(ceiling.Hours() / 24))
	return clamped, fmt.Sprintf("%s: time range clamped to %d days", p, days)
}
