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

const tiktokAPIBase = "https://open.tiktokapis.com"

// tiktokLookback is the longest window one research query may span.
const tiktokLookback = 30 * 24 * time.Hour

const tiktokVideoFields = "id,video_description,create_time,region_code,share_count,view_count,like_count,comment_count,username,hashtag_names"

// TikTokClient queries the TikTok Research API with a client-credentials token.
type TikTokClient struct {
	client
	authURL string
}

// NewTikTok builds the TikTok client.
func NewTikTok(cfg types.ProviderConfig, deps Deps) *TikTokClient {
	c := &TikTokClient{client: newClient(types.PlatformTikTok, cfg, deps, tiktokAPIBase, "x-ratelimit-reset", 100, 100)}
	c.authURL = nonEmpty(strings.TrimRight(cfg.AuthURL, "/"), c.baseURL)
	clientKey, clientSecret := nonEmpty(cfg.ClientID, cfg.APIKey), cfg.ClientSecret
	c.auth = &SessionAuth{
		Platform: types.PlatformTikTok,
		Now:      c.now,
		Login: func(ctx context.Context) (Session, error) {
			if clientKey == "" || clientSecret == "" {
				return Session{}, &httputil.AuthenticationError{Platform: string(types.PlatformTikTok), Reason: "missing client key or secret"}
			}
			var tok struct {
				AccessToken string `json:"access_token"`
				ExpiresIn   int    `json:"expires_in"`
			}
			form := url.Values{
				"client_key":    {clientKey},
				"client_secret": {clientSecret},
				"grant_type":    {"client_credentials"},
			}
			if err := c.login(ctx, c.authURL+"/v2/oauth/token/", form, true, &tok); err != nil {
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

type tiktokQuery struct {
	Query struct {
		And []tiktokCondition `json:"and"`
	} `json:"query"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	MaxCount  int    `json:"max_count"`
	Cursor    int    `json:"cursor,omitempty"`
	SearchID  string `json:"search_id,omitempty"`
}

type tiktokCondition struct {
	Operation   string   `json:"operation"`
	FieldName   string   `json:"field_name"`
	FieldValues []string `json:"field_values"`
}

type tiktokResponse struct {
	Data struct {
		Videos   []json.RawMessage `json:"videos"`
		Cursor   int               `json:"cursor"`
		HasMore  bool              `json:"has_more"`
		SearchID string            `json:"search_id"`
	} `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search sends the base keyword; the research API has no boolean syntax
// for free text, so the full expression is re-applied in Normalize.
func (c *TikTokClient) Search(ctx context.Context, q *query.Query, opts Options) (RawBatch, error) {
	batch := RawBatch{Platform: c.platform}
	win, warning := opts.Window.Clamp(c.platform, tiktokLookback)
	if warning != "" {
		batch.Warnings = append(batch.Warnings, warning)
	}
	term, filter := searchTerm(q, false)
	batch.Filter = filter

	var searchID string
	page, pages, err := c.pager.Collect(ctx, opts.MaxResults, func(ctx context.Context, cursor string) (Page, error) {
		body := tiktokQuery{
			StartDate: win.Since.UTC().Format("20060102"),
			EndDate:   win.Until.UTC().Format("20060102"),
			MaxCount:  c.pageSize,
			SearchID:  searchID,
		}
		body.Query.And = []tiktokCondition{{Operation: "IN", FieldName: "keyword", FieldValues: []string{term}}}
		if cursor != "" {
			n, err := strconv.Atoi(cursor)
			if err != nil {
				return Page{}, fmt.Errorf("invalid cursor %q", cursor)
			}
			body.Cursor = n
		}

		var resp tiktokResponse
		endpoint := c.baseURL + "/v2/research/video/query/?fields=" + url.QueryEscape(tiktokVideoFields)
		if err := c.postJSON(ctx, endpoint, body, &resp); err != nil {
			return Page{}, err
		}
		if resp.Error.Code != "" && resp.Error.Code != "ok" {
			return Page{}, &httputil.APIError{Status: 200, Code: resp.Error.Code, Message: resp.Error.Message}
		}

		searchID = resp.Data.SearchID
		next := ""
		if resp.Data.HasMore {
			next = strconv.Itoa(resp.Data.Cursor)
		}
		return Page{Items: resp.Data.Videos, Next: next}, nil
	})
	if err != nil {
		if pages == 0 {
			return batch, fmt.Errorf("tiktok search: %w", err)
		}
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("tiktok: stopped after %d pages: %v", pages, err))
	}
	batch.Items = page.Items
	return batch, nil
}

var (
	tiktokID       = normalize.Required("id", "id", "video_id")
	tiktokText     = normalize.Required("text", "video_description", "desc")
	tiktokCreated  = normalize.Field("created_at", "create_time", "createTime")
	tiktokUsername = normalize.Field("username", "username", "author.unique_id")
	tiktokLikes    = normalize.Field("likes", "like_count", "stats.diggCount")
	tiktokComments = normalize.Field("comments", "comment_count", "stats.commentCount")
	tiktokShares   = normalize.Field("shares", "share_count", "stats.shareCount")
	tiktokViews    = normalize.Field("views", "view_count", "stats.playCount")
	tiktokCover    = normalize.Field("thumbnail", "cover_image_url")
)

// Normalize maps research API videos to ContentItems.
func (c *TikTokClient) Normalize(batch RawBatch) ([]types.ContentItem, []normalize.Gap) {
	return c.normalize(batch, func(it *normalize.Item) types.ContentItem {
		username := it.String(tiktokUsername)
		item := types.ContentItem{
			ID:           it.String(tiktokID),
			Text:         it.String(tiktokText),
			AuthorName:   username,
			AuthorHandle: normalize.Handle("@", username),
			CreatedAt:    it.Time(tiktokCreated),
			Thumbnail:    it.String(tiktokCover),
			Engagement: types.Engagement{
				Likes:    it.Count(tiktokLikes),
				Comments: it.Count(tiktokComments),
				Shares:   it.Count(tiktokShares),
				Views:    it.OptionalCount(tiktokViews),
			},
		}
		if username != "" {
			item.URL = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", username, item.ID)
			item.Author = &types.AuthorMetadata{ProfileURL: "https://www.tiktok.com/@" + username}
		}
		return item
	})
}
