// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/social-search/internal/httputil"
	"github.com/pdiddy/social-search/internal/normalize"
	"github.com/pdiddy/social-search/internal/query"
	"github.com/pdiddy/social-search/pkg/types"
)

const blueskyAPIBase = "https://bsky.social"

// BlueskyClient searches posts through the AT Protocol XRPC API using an
// app-password session.
type BlueskyClient struct {
	client
}

// NewBluesky builds the Bluesky client. cfg.Username is the account
// identifier (handle or DID) and cfg.Password an app password.
func NewBluesky(cfg types.ProviderConfig, deps Deps) *BlueskyClient {
	c := &BlueskyClient{client: newClient(types.PlatformBluesky, cfg, deps, blueskyAPIBase, "ratelimit-reset", 100, 100)}
	authBase := nonEmpty(strings.TrimRight(cfg.AuthURL, "/"), c.baseURL)
	identifier, password := cfg.Username, cfg.Password
	c.auth = &SessionAuth{
		Platform: types.PlatformBluesky,
		Now:      c.now,
		Login: func(ctx context.Context) (Session, error) {
			if identifier == "" || password == "" {
				return Session{}, &httputil.AuthenticationError{Platform: string(types.PlatformBluesky), Reason: "missing identifier or app password"}
			}
			var sess struct {
				AccessJwt string `json:"accessJwt"`
			}
			body := map[string]string{"identifier": identifier, "password": password}
			if err := c.login(ctx, authBase+"/xrpc/com.atproto.server.createSession", body, false, &sess); err != nil {
				return Session{}, err
			}
			return Session{Token: sess.AccessJwt}, nil
		},
	}
	return c
}

type blueskySearchResponse struct {
	Posts  []json.RawMessage `json:"posts"`
	Cursor string            `json:"cursor"`
}

// Search queries app.bsky.feed.searchPosts with the base term.
func (c *BlueskyClient) Search(ctx context.Context, q *query.Query, opts Options) (RawBatch, error) {
	batch := RawBatch{Platform: c.platform}
	term, filter := searchTerm(q, false)
	batch.Filter = filter

	page, pages, err := c.pager.Collect(ctx, opts.MaxResults, func(ctx context.Context, cursor string) (Page, error) {
		params := url.Values{
			"q":     {term},
			"limit": {strconv.Itoa(c.pageSize)},
			"sort":  {"top"},
		}
		if !opts.Window.Since.IsZero() {
			params.Set("since", opts.Window.Since.UTC().Format(time.RFC3339))
		}
		if !opts.Window.Until.IsZero() {
			params.Set("until", opts.Window.Until.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var resp blueskySearchResponse
		if err := c.getJSON(ctx, "/xrpc/app.bsky.feed.searchPosts", params, &resp); err != nil {
			return Page{}, err
		}
		return Page{Items: resp.Posts, Next: resp.Cursor}, nil
	})
	if err != nil {
		if pages == 0 {
			return batch, fmt.Errorf("bluesky search: %w", err)
		}
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("bluesky: stopped after %d pages: %v", pages, err))
	}
	batch.Items = page.Items
	return batch, nil
}

var (
	blueskyURI     = normalize.Required("id", "uri", "cid")
	blueskyText    = normalize.Required("text", "record.text", "text")
	blueskyCreated = normalize.Field("created_at", "record.createdAt", "indexedAt")
	blueskyHandle  = normalize.Field("handle", "author.handle")
	blueskyName    = normalize.Field("display_name", "author.displayName")
	blueskyAvatar  = normalize.Field("avatar", "author.avatar")
	blueskyLikes   = normalize.Field("likes", "likeCount")
	blueskyReplies = normalize.Field("comments", "replyCount")
	blueskyReposts = normalize.Field("shares", "repostCount")
	blueskyQuotes  = normalize.Field("quotes", "quoteCount")
)

// Normalize maps post views to ContentItems. Bluesky exposes no view count.
func (c *BlueskyClient) Normalize(batch RawBatch) ([]types.ContentItem, []normalize.Gap) {
	return c.normalize(batch, func(it *normalize.Item) types.ContentItem {
		uri := it.String(blueskyURI)
		handle := it.String(blueskyHandle)
		item := types.ContentItem{
			ID:              uri,
			Text:            it.String(blueskyText),
			AuthorName:      nonEmpty(it.String(blueskyName), handle),
			AuthorHandle:    normalize.Handle("@", handle),
			AuthorAvatarURL: it.String(blueskyAvatar),
			CreatedAt:       it.Time(blueskyCreated),
			Engagement: types.Engagement{
				Likes:    it.Count(blueskyLikes),
				Comments: it.Count(blueskyReplies),
				Shares:   it.Count(blueskyReposts) + it.Count(blueskyQuotes),
			},
		}
		if handle != "" {
			item.Author = &types.AuthorMetadata{ProfileURL: "https://bsky.app/profile/" + handle}
			if i := strings.LastIndex(uri, "/"); i >= 0 && i < len(uri)-1 {
				item.URL = fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, uri[i+1:])
			}
		}
		return item
	})
}
