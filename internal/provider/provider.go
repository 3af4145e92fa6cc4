// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider implements one search client per social platform. Each
// client fetches raw pages under the shared retry policy and normalizes
// them into ContentItems.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/social-search/internal/httputil"
	"github.com/pdiddy/social-search/internal/normalize"
	"github.com/pdiddy/social-search/internal/query"
	"github.com/pdiddy/social-search/pkg/types"
)

// SearchProvider searches one platform. Implementations are safe for
// concurrent use.
type SearchProvider interface {
	Platform() types.Platform
	Search(ctx context.Context, q *query.Query, opts Options) (RawBatch, error)
	Normalize(batch RawBatch) ([]types.ContentItem, []normalize.Gap)
}

// Options are the per-request search parameters.
type Options struct {
	Window Window

	// MaxResults caps how many raw items are collected; zero means the
	// page cap alone bounds the fetch.
	MaxResults int
}

// RawBatch is the platform payload collected by Search, before normalization.
type RawBatch struct {
	Platform types.Platform

	// Items holds one raw JSON object per post, video, or status.
	Items []json.RawMessage

	// Related holds side-loaded objects keyed "kind:id", such as X users
	// or YouTube video statistics.
	Related map[string]json.RawMessage

	// Filter is set when the platform only received the base term; Normalize
	// re-applies the full expression to each item's text.
	Filter *query.Query

	// Window is set when the platform does not filter by date server-side;
	// Normalize drops items created outside it.
	Window *Window

	Warnings []string
}

// Deps are the collaborators shared by every client.
type Deps struct {
	HTTPClient *http.Client
	UserAgent  string
	Logger     *slog.Logger
	Now        func() time.Time

	// Sleep, Jitter and PageDelay replace real waits in tests.
	Sleep     func(ctx context.Context, d time.Duration) error
	Jitter    func() float64
	PageDelay func() time.Duration
}

// New builds the client for platform p from its configuration.
func New(p types.Platform, cfg types.ProviderConfig, deps Deps) (SearchProvider, error) {
	switch p {
	case types.PlatformX:
		return NewX(cfg, deps), nil
	case types.PlatformTikTok:
		return NewTikTok(cfg, deps), nil
	case types.PlatformYouTube:
		return NewYouTube(cfg, deps), nil
	case types.PlatformBluesky:
		return NewBluesky(cfg, deps), nil
	case types.PlatformTruthSocial:
		return NewTruthSocial(cfg, deps), nil
	case types.PlatformReddit:
		return NewReddit(cfg, deps), nil
	default:
		return nil, fmt.Errorf("no client for platform %q", p)
	}
}

// FromConfig builds a client for every configured platform, in
// types.AllPlatforms order.
func FromConfig(cfg types.ProvidersConfig, deps Deps) ([]SearchProvider, error) {
	var out []SearchProvider
	for _, p := range types.AllPlatforms {
		pc := cfg.For(p)
		if !pc.Configured() {
			continue
		}
		sp, err := New(p, *pc, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// client carries the plumbing every platform client shares: the retry
// loop, authentication, pagination and normalization.
type client struct {
	platform  types.Platform
	baseURL   string
	userAgent string
	retrier   *httputil.Retrier
	auth      Authenticator
	pager     Pager
	log       *slog.Logger
	now       func() time.Time
	pageSize  int
}

func newClient(p types.Platform, cfg types.ProviderConfig, deps Deps, defaultBase, resetHeader string, defaultPageSize, maxPageSize int) client {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("platform", string(p))

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBase
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return client{
		platform:  p,
		baseURL:   base,
		userAgent: deps.UserAgent,
		retrier: &httputil.Retrier{
			Client:      deps.HTTPClient,
			MaxRetries:  cfg.Retry.MaxRetries,
			BaseDelay:   cfg.Retry.BaseDelay(),
			ResetHeader: resetHeader,
			Sleep:       deps.Sleep,
			Now:         now,
			Jitter:      deps.Jitter,
			Logger:      log,
		},
		pager: Pager{
			MaxPages: cfg.MaxPages,
			Delay:    deps.PageDelay,
			Sleep:    deps.Sleep,
			Logger:   log,
		},
		log:      log,
		now:      now,
		pageSize: pageSize,
	}
}

func (c *client) Platform() types.Platform { return c.platform }

// newRequest builds a request whose body, if any, can be replayed by the
// retry loop.
func (c *client) newRequest(ctx context.Context, method, rawURL string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// do sends req with credentials attached. A 401 on a renewable credential
// invalidates it, re-authenticates once and repeats the call once; any
// other 401 is an AuthenticationError.
func (c *client) do(ctx context.Context, req *http.Request, out any) error {
	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}

		var credential string
		if c.auth != nil {
			cred, err := c.auth.Authorize(ctx, attemptReq)
			if err != nil {
				return err
			}
			credential = cred
		}

		resp, err := c.retrier.Do(ctx, attemptReq)
		if err != nil {
			if httputil.HasStatus(err, http.StatusUnauthorized) && c.auth != nil {
				if attempt == 0 && c.auth.Invalidate(credential) {
					c.log.Info("credential rejected, re-authenticating")
					continue
				}
				return &httputil.AuthenticationError{Platform: string(c.platform), Reason: "credentials rejected", Err: err}
			}
			return err
		}
		return decodeBody(resp, out)
	}
}

// getJSON issues an authenticated GET and decodes the JSON response.
func (c *client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

// postJSON issues an authenticated POST with a JSON body.
func (c *client) postJSON(ctx context.Context, rawURL string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	return c.do(ctx, req, out)
}

// login posts credentials without an Authorization header. form selects
// form encoding; otherwise in is sent as JSON.
func (c *client) login(ctx context.Context, rawURL string, in any, form bool, out any) error {
	var (
		body        []byte
		contentType string
	)
	if values, ok := in.(url.Values); ok && form {
		body, contentType = []byte(values.Encode()), "application/x-www-form-urlencoded"
	} else {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding login: %w", err)
		}
		body, contentType = data, "application/json"
	}
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, bytes.NewReader(body), contentType)
	if err != nil {
		return err
	}
	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		var apiErr *httputil.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			return &httputil.AuthenticationError{Platform: string(c.platform), Reason: "login rejected", Err: err}
		}
		return fmt.Errorf("login: %w", err)
	}
	return decodeBody(resp, out)
}

func decodeBody(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// normalize decodes a batch with the platform's DecodeFunc, then applies
// the batch's client-side query and date filters.
func (c *client) normalize(batch RawBatch, decode normalize.DecodeFunc) ([]types.ContentItem, []normalize.Gap) {
	items, gaps := normalize.Normalizer{Platform: c.platform, Logger: c.log}.Run(batch.Items, decode)
	if batch.Filter == nil && batch.Window == nil {
		return items, gaps
	}
	kept := items[:0]
	for _, it := range items {
		if batch.Filter != nil && !batch.Filter.Match(it.Text) {
			continue
		}
		if batch.Window != nil && !batch.Window.Contains(it.CreatedAt) {
			continue
		}
		kept = append(kept, it)
	}
	if dropped := len(items) - len(kept); dropped > 0 {
		c.log.Debug("client-side filters dropped items", "dropped", dropped, "kept", len(kept))
	}
	return kept, gaps
}

// searchTerm returns what to send upstream. Platforms without boolean
// syntax get the base term, and the batch is marked for re-filtering.
func searchTerm(q *query.Query, native bool) (string, *query.Query) {
	if native {
		return q.Native(), nil
	}
	if !q.HasOperators() {
		return q.BaseTerm(), nil
	}
	return q.BaseTerm(), q
}

// related decodes a side-loaded object, nil when absent.
func related(batch RawBatch, key string) normalize.Fields {
	raw, ok := batch.Related[key]
	if !ok {
		return nil
	}
	f, err := normalize.Decode(raw)
	if err != nil {
		return nil
	}
	return f
}

// accountAge returns whole days since created, nil when unknown.
func accountAge(created, now time.Time) *int {
	if created.IsZero() || created.After(now) {
		return nil
	}
	return types.IntPtr(int(now.Sub(created).Hours() / 24))
}

// nonEmpty returns the first non-empty string.
func nonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
