// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pdiddy/social-search/internal/httputil"
	"github.com/pdiddy/social-search/pkg/types"
)

// Authenticator attaches credentials to outgoing requests.
type Authenticator interface {
	// Authorize sets credentials on req and returns the credential used.
	Authorize(ctx context.Context, req *http.Request) (string, error)

	// Invalidate discards credential after the platform rejected it and
	// reports whether a fresh credential may be obtained.
	Invalidate(credential string) bool
}

// StaticAuth sends a fixed token or API key, either as a header (with an
// optional scheme prefix such as "Bearer ") or as a query parameter.
type StaticAuth struct {
	Platform   types.Platform
	Value      string
	Header     string
	Prefix     string
	QueryParam string
}

// BearerAuth sends value as an Authorization bearer token.
func BearerAuth(p types.Platform, value string) *StaticAuth {
	return &StaticAuth{Platform: p, Value: value, Header: "Authorization", Prefix: "Bearer "}
}

func (a *StaticAuth) Authorize(_ context.Context, req *http.Request) (string, error) {
	if a.Value == "" {
		return "", &httputil.AuthenticationError{Platform: string(a.Platform), Reason: "missing credentials"}
	}
	if a.QueryParam != "" {
		q := req.URL.Query()
		q.Set(a.QueryParam, a.Value)
		req.URL.RawQuery = q.Encode()
		return a.Value, nil
	}
	req.Header.Set(a.Header, a.Prefix+a.Value)
	return a.Value, nil
}

// Invalidate reports false: a static credential cannot be renewed.
func (a *StaticAuth) Invalidate(string) bool { return false }

// Session is a platform-issued access token.
type Session struct {
	Token string

	// ExpiresAt is zero when the platform gives no lifetime; such a
	// session lives until a request is rejected.
	ExpiresAt time.Time
}

// LoginFunc exchanges long-lived credentials for a Session.
type LoginFunc func(ctx context.Context) (Session, error)

// expirySkew renews sessions slightly before their stated expiry.
const expirySkew = 30 * time.Second

// SessionAuth caches a session token obtained through Login. Concurrent
// callers share one token; the mutex makes "read the session, or log in
// if absent or expired" a single step so a renewal never races a reader.
type SessionAuth struct {
	Platform types.Platform
	Login    LoginFunc
	Now      func() time.Time

	mu      sync.Mutex
	session Session
}

// Token returns the cached token, logging in first when needed.
func (a *SessionAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.Token != "" && !a.expired() {
		return a.session.Token, nil
	}
	s, err := a.Login(ctx)
	if err != nil {
		return "", err
	}
	if s.Token == "" {
		return "", &httputil.AuthenticationError{Platform: string(a.Platform), Reason: "login returned no token"}
	}
	a.session = s
	return s.Token, nil
}

func (a *SessionAuth) expired() bool {
	if a.session.ExpiresAt.IsZero() {
		return false
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return !now().Add(expirySkew).Before(a.session.ExpiresAt)
}

func (a *SessionAuth) Authorize(ctx context.Context, req *http.Request) (string, error) {
	tok, err := a.Token(ctx)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return tok, nil
}

// Invalidate drops the cached session if it is still the rejected one; a
// session already renewed by another caller is kept.
func (a *SessionAuth) Invalidate(credential string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session.Token == credential {
		a.session = Session{}
	}
	return true
}
