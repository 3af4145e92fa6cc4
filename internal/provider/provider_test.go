// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/social-search/internal/httputil"
	"github.com/pdiddy/social-search/internal/query"
	"github.com/pdiddy/social-search/pkg/types"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

// testDeps removes every real wait and pins the clock.
func testDeps(hc *http.Client) Deps {
	return Deps{
		HTTPClient: hc,
		UserAgent:  "social-search-test",
		Now:        func() time.Time { return testNow },
		Sleep:      func(context.Context, time.Duration) error { return nil },
		Jitter:     func() float64 { return 1 },
		PageDelay:  func() time.Duration { return 0 },
	}
}

func testConfig(baseURL string) types.ProviderConfig {
	return types.ProviderConfig{
		Enabled:  true,
		BaseURL:  baseURL,
		MaxPages: 3,
		Retry:    types.RetryConfig{MaxRetries: 2, BaseDelayMs: 10},
	}
}

func mustParse(t *testing.T, s string) *query.Query {
	t.Helper()
	q, err := query.Parse(s)
	require.NoError(t, err)
	return q
}

func week() Options {
	w, _ := ParseTimeRange("7d", testNow)
	return Options{Window: w}
}

// --- Time range ---

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		token string
		since time.Time
	}{
		{"", testNow.AddDate(0, 0, -7)},
		{"7d", testNow.AddDate(0, 0, -7)},
		{"30d", testNow.AddDate(0, 0, -30)},
		{"3m", testNow.AddDate(0, -3, 0)},
		{"12m", testNow.AddDate(0, -12, 0)},
		{"24h", testNow.Add(-24 * time.Hour)},
		{"2w", testNow.AddDate(0, 0, -14)},
		{"1y", testNow.AddDate(-1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			w, err := ParseTimeRange(tt.token, testNow)
			require.NoError(t, err)
			assert.Equal(t, tt.since, w.Since)
			assert.Equal(t, testNow, w.Until)
		})
	}

	for _, bad := range []string{"d", "0d", "-3d", "7x", "week"} {
		_, err := ParseTimeRange(bad, testNow)
		assert.Error(t, err, bad)
	}
}

func TestWindowClamp(t *testing.T) {
	w, _ := ParseTimeRange("30d", testNow)

	clamped, warning := w.Clamp(types.PlatformX, 7*24*time.Hour)
	assert.Equal(t, testNow.Add(-7*24*time.Hour), clamped.Since)
	assert.Equal(t, testNow, clamped.Until)
	assert.Equal(t, "x: time range clamped to 7 days", warning)

	same, warning := w.Clamp(types.PlatformTikTok, 30*24*time.Hour)
	assert.Equal(t, w, same)
	assert.Empty(t, warning)

	unbounded, warning := w.Clamp(types.PlatformYouTube, 0)
	assert.Equal(t, w, unbounded)
	assert.Empty(t, warning)
}

func TestWindowContains(t *testing.T) {
	w, _ := ParseTimeRange("7d", testNow)
	assert.True(t, w.Contains(testNow.Add(-time.Hour)))
	assert.False(t, w.Contains(testNow.AddDate(0, 0, -8)))
	assert.False(t, w.Contains(testNow.Add(time.Hour)))
	assert.True(t, w.Contains(time.Time{}), "unknown times pass")
}

// --- Pagination ---

func rawItems(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"id":"%d"}`, i))
	}
	return out
}

func TestPagerStopsAtMaxPages(t *testing.T) {
	var calls int
	var slept []time.Duration
	p := Pager{
		MaxPages: 3,
		Delay:    func() time.Duration { return 200 * time.Millisecond },
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	page, pages, err := p.Collect(context.Background(), 0, func(_ context.Context, cursor string) (Page, error) {
		calls++
		return Page{Items: rawItems(2), Next: fmt.Sprintf("c%d", calls)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, 3, calls)
	assert.Len(t, page.Items, 6)
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 200 * time.Millisecond}, slept, "pause between pages only")
}

func TestPagerStopsWhenNoMorePages(t *testing.T) {
	var cursors []string
	p := Pager{MaxPages: 5, Delay: func() time.Duration { return 0 }}
	_, pages, err := p.Collect(context.Background(), 0, func(_ context.Context, cursor string) (Page, error) {
		cursors = append(cursors, cursor)
		if cursor == "" {
			return Page{Items: rawItems(1), Next: "next"}, nil
		}
		return Page{Items: rawItems(1)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{"", "next"}, cursors)
}

func TestPagerStopsAtLimit(t *testing.T) {
	p := Pager{MaxPages: 5, Delay: func() time.Duration { return 0 }}
	page, pages, err := p.Collect(context.Background(), 3, func(_ context.Context, _ string) (Page, error) {
		return Page{Items: rawItems(2), Next: "more"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Len(t, page.Items, 4)
}

func TestPagerKeepsPagesBeforeFailure(t *testing.T) {
	boom := errors.New("boom")
	p := Pager{MaxPages: 3, Delay: func() time.Duration { return 0 }}
	page, pages, err := p.Collect(context.Background(), 0, func(_ context.Context, cursor string) (Page, error) {
		if cursor != "" {
			return Page{}, boom
		}
		return Page{Items: rawItems(2), Next: "next"}, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, pages)
	assert.Len(t, page.Items, 2)
}

func TestRandomPageDelayRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := RandomPageDelay()
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
}

// --- Authentication ---

func TestStaticAuthMissingCredential(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	_, err := BearerAuth(types.PlatformX, "").Authorize(context.Background(), req)
	var authErr *httputil.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "x", authErr.Platform)
}

func TestStaticAuthQueryParam(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.test/search?q=a", nil)
	a := &StaticAuth{Platform: types.PlatformYouTube, Value: "k1", QueryParam: "key"}
	_, err := a.Authorize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "k1", req.URL.Query().Get("key"))
	assert.Equal(t, "a", req.URL.Query().Get("q"))
	assert.False(t, a.Invalidate("k1"))
}

func TestSessionAuthSharesOneLogin(t *testing.T) {
	var logins atomic.Int32
	a := &SessionAuth{
		Platform: types.PlatformBluesky,
		Login: func(context.Context) (Session, error) {
			n := logins.Add(1)
			return Session{Token: fmt.Sprintf("tok-%d", n)}, nil
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := a.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), logins.Load())
}

func TestSessionAuthInvalidateOnlyRejectedToken(t *testing.T) {
	var logins atomic.Int32
	a := &SessionAuth{
		Platform: types.PlatformTruthSocial,
		Login: func(context.Context) (Session, error) {
			return Session{Token: fmt.Sprintf("tok-%d", logins.Add(1))}, nil
		},
	}
	ctx := context.Background()

	tok, _ := a.Token(ctx)
	require.Equal(t, "tok-1", tok)
	assert.True(t, a.Invalidate("tok-1"))
	tok, _ = a.Token(ctx)
	assert.Equal(t, "tok-2", tok)

	// A stale rejection must not discard a session renewed since.
	a.Invalidate("tok-1")
	tok, _ = a.Token(ctx)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), logins.Load())
}

func TestSessionAuthRenewsExpiredSession(t *testing.T) {
	now := testNow
	var logins atomic.Int32
	a := &SessionAuth{
		Platform: types.PlatformTikTok,
		Now:      func() time.Time { return now },
		Login: func(context.Context) (Session, error) {
			n := logins.Add(1)
			return Session{Token: fmt.Sprintf("tok-%d", n), ExpiresAt: now.Add(time.Hour)}, nil
		},
	}
	tok, _ := a.Token(context.Background())
	assert.Equal(t, "tok-1", tok)

	now = now.Add(59*time.Minute + 45*time.Second)
	tok, _ = a.Token(context.Background())
	assert.Equal(t, "tok-2", tok, "renewed inside the expiry skew")
}

// --- Factory ---

func TestNewBuildsEveryPlatform(t *testing.T) {
	for _, p := range types.AllPlatforms {
		c, err := New(p, testConfig(""), testDeps(nil))
		require.NoError(t, err, p)
		assert.Equal(t, p, c.Platform())
	}
	_, err := New("myspace", testConfig(""), testDeps(nil))
	assert.Error(t, err)
}

func TestFromConfigBuildsConfiguredPlatforms(t *testing.T) {
	var cfg types.ProvidersConfig
	cfg.Reddit.APIKey = "rk"
	cfg.X.BearerToken = "bt"
	cfg.Bluesky.Username = "newsdesk.bsky.social" // no password: skipped
	cfg.YouTube.Enabled = true

	got, err := FromConfig(cfg, testDeps(nil))
	require.NoError(t, err)
	var platforms []types.Platform
	for _, c := range got {
		platforms = append(platforms, c.Platform())
	}
	assert.Equal(t, []types.Platform{types.PlatformX, types.PlatformYouTube, types.PlatformReddit}, platforms)
}

func TestSearchTerm(t *testing.T) {
	simple := mustParse(t, "vaccine")
	term, filter := searchTerm(simple, false)
	assert.Equal(t, "vaccine", term)
	assert.Nil(t, filter)

	boolean := mustParse(t, `vaccine AND "side effects" NOT rumor`)
	term, filter = searchTerm(boolean, false)
	assert.Equal(t, "vaccine", term)
	assert.Same(t, boolean, filter)

	term, filter = searchTerm(boolean, true)
	assert.Equal(t, `vaccine "side effects" -rumor`, term)
	assert.Nil(t, filter)
}
