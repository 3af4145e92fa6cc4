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

const truthSocialAPIBase = "https://truthsocial.com"

// TruthSocialClient searches statuses through the Mastodon-compatible API
// with an OAuth password-grant session.
type TruthSocialClient struct {
	client
}

// NewTruthSocial builds the Truth Social client.
func NewTruthSocial(cfg types.ProviderConfig, deps Deps) *TruthSocialClient {
	c := &TruthSocialClient{client: newClient(types.PlatformTruthSocial, cfg, deps, truthSocialAPIBase, "x-ratelimit-reset", 20, 40)}
	authBase := nonEmpty(strings.TrimRight(cfg.AuthURL, "/"), c.baseURL)
	c.auth = &SessionAuth{
		Platform: types.PlatformTruthSocial,
		Now:      c.now,
		Login: func(ctx context.Context) (Session, error) {
			if cfg.Username == "" || cfg.Password == "" {
				return Session{}, &httputil.AuthenticationError{Platform: string(types.PlatformTruthSocial), Reason: "missing username or password"}
			}
			form := url.Values{
				"grant_type":    {"password"},
				"username":      {cfg.Username},
				"password":      {cfg.Password},
				"client_id":     {cfg.ClientID},
				"client_secret": {cfg.ClientSecret},
				"scope":         {"read"},
			}
			var tok struct {
				AccessToken string `json:"access_token"`
				ExpiresIn   int    `json:"expires_in"`
			}
			if err := c.login(ctx, authBase+"/oauth/token", form, true, &tok); err != nil {
				return Session{}, err
			}
			s := Session{Token: tok.AccessToken}
			if tok.ExpiresIn > 0 {
				s.ExpiresAt = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
			}
			return s, nil
		},
	}
	return c
}

type truthSearchResponse struct {
	Statuses []json.RawMessage `json:"statuses"`
}

// Search pages through /api/v2/search by offset. The endpoint has no date
// filter, so the window is applied in Normalize.
func (c *TruthSocialClient) Search(ctx context.Context, q *query.Query, opts Options) (RawBatch, error) {
	batch := RawBatch{Platform: c.platform}
	term, filter := searchTerm(q, false)
	batch.Filter = filter
	if !opts.Window.Since.IsZero() {
		win := opts.Window
		batch.Window = &win
	}

	page, pages, err := c.pager.Collect(ctx, opts.MaxResults, func(ctx context.Context, cursor string) (Page, error) {
		offset := 0
		if cursor != "" {
			n, err := strconv.Atoi(cursor)
			if err != nil {
				return Page{}, fmt.Errorf("invalid offset %q", cursor)
			}
			offset = n
		}
		params := url.Values{
			"q":       {term},
			"type":    {"statuses"},
			"limit":   {strconv.Itoa(c.pageSize)},
			"offset":  {strconv.Itoa(offset)},
			"resolve": {"true"},
		}
		var resp truthSearchResponse
		if err := c.getJSON(ctx, "/api/v2/search", params, &resp); err != nil {
			return Page{}, err
		}
		next := ""
		if len(resp.Statuses) >= c.pageSize {
			next = strconv.Itoa(offset + len(resp.Statuses))
		}
		return Page{Items: resp.Statuses, Next: next}, nil
	})
	if err != nil {
		if pages == 0 {
			return batch, fmt.Errorf("truthsocial search: %w", err)
		}
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("truthsocial: stopped after %d pages: %v", pages, err))
	}
	batch.Items = page.Items
	return batch, nil
}

var (
	truthID        = normalize.Required("id", "id")
	truthText      = normalize.Required("text", "content", "text")
	truthCreated   = normalize.Field("created_at", "created_at")
	truthURL       = normalize.Field("url", "url", "uri")
	truthUsername  = normalize.Field("username", "account.username", "account.acct")
	truthName      = normalize.Field("display_name", "account.display_name")
	truthAvatar    = normalize.Field("avatar", "account.avatar")
	truthFollowers = normalize.Field("followers", "account.followers_count")
	truthFollowing = normalize.Field("following", "account.following_count")
	truthJoined    = normalize.Field("joined", "account.created_at")
	truthVerified  = normalize.Field("verified", "account.verified")
	truthBio       = normalize.Field("bio", "account.note")
	truthFavs      = normalize.Field("likes", "favourites_count")
	truthReplies   = normalize.Field("comments", "replies_count")
	truthReblogs   = normalize.Field("shares", "reblogs_count")
	truthThumb     = normalize.Field("thumbnail", "media_attachments.0.preview_url", "card.image")
)

// Normalize maps statuses to ContentItems. HTML content is reduced to plain text.
func (c *TruthSocialClient) Normalize(batch RawBatch) ([]types.ContentItem, []normalize.Gap) {
	now := c.now()
	return c.normalize(batch, func(it *normalize.Item) types.ContentItem {
		username := it.String(truthUsername)
		item := types.ContentItem{
			ID:              it.String(truthID),
			Text:            normalize.StripHTML(it.String(truthText)),
			AuthorName:      nonEmpty(it.String(truthName), username),
			AuthorHandle:    normalize.Handle("@", username),
			AuthorAvatarURL: it.String(truthAvatar),
			CreatedAt:       it.Time(truthCreated),
			URL:             it.String(truthURL),
			Thumbnail:       it.String(truthThumb),
			Engagement: types.Engagement{
				Likes:    it.Count(truthFavs),
				Comments: it.Count(truthReplies),
				Shares:   it.Count(truthReblogs),
			},
			Author: &types.AuthorMetadata{
				FollowersCount: it.OptionalCount(truthFollowers),
				FollowingCount: it.OptionalCount(truthFollowing),
				AccountAgeDays: accountAge(it.Time(truthJoined), now),
				IsVerified:     it.OptionalBool(truthVerified),
				Bio:            normalize.StripHTML(it.String(truthBio)),
			},
		}
		if username != "" {
			item.Author.ProfileURL = truthSocialAPIBase + "/@" + username
			if item.URL == "" {
				item.URL = fmt.Sprintf("%s/@%s/%s", truthSocialAPIBase, username, item.ID)
			}
		}
		return item
	})
}
