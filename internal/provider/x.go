// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/pdiddy/social-search/internal/normalize"
	"github.com/pdiddy/social-search/internal/query"
	"github.com/pdiddy/social-search/pkg/types"
)

// xAPIBase is the X API root.
const xAPIBase = "https://api.x.com"

const (
	// xCeiling is the recent-search lookback limit.
	xCeiling = 7 * 24 * time.Hour

	// xLookback is the earliest start_time actually sent, a minute inside
	// the ceiling so it is still accepted when the request arrives.
	xLookback = xCeiling - time.Minute
)

// XClient searches recent posts on X with an app bearer token.
type XClient struct {
	client
}

// NewX builds the X client.
func NewX(cfg types.ProviderConfig, deps Deps) *XClient {
	c := &XClient{client: newClient(types.PlatformX, cfg, deps, xAPIBase, "x-rate-limit-reset", 100, 100)}
	c.auth = BearerAuth(types.PlatformX, nonEmpty(cfg.BearerToken, cfg.APIKey))
	return c
}

type xResponse struct {
	Data     []json.RawMessage `json:"data"`
	Includes struct {
		Users []json.RawMessage `json:"users"`
	} `json:"includes"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// Search sends the full boolean expression; X evaluates it natively.
func (c *XClient) Search(ctx context.Context, q *query.Query, opts Options) (RawBatch, error) {
	batch := RawBatch{Platform: c.platform}
	win, warning := opts.Window.Clamp(c.platform, xCeiling)
	if warning != "" {
		batch.Warnings = append(batch.Warnings, warning)
	}
	if earliest := win.Until.Add(-xLookback); !win.Since.IsZero() && win.Since.Before(earliest) {
		win.Since = earliest
	}
	term, _ := searchTerm(q, true)

	pageSize := c.pageSize
	if pageSize < 10 {
		pageSize = 10
	}

	page, pages, err := c.pager.Collect(ctx, opts.MaxResults, func(ctx context.Context, cursor string) (Page, error) {
		params := url.Values{
			"query":        {term},
			"max_results":  {strconv.Itoa(pageSize)},
			"tweet.fields": {"created_at,public_metrics,author_id,lang"},
			"expansions":   {"author_id"},
			"user.fields":  {"username,name,profile_image_url,verified,created_at,public_metrics,description"},
		}
		if !win.Since.IsZero() {
			params.Set("start_time", win.Since.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			params.Set("next_token", cursor)
		}

		var resp xResponse
		if err := c.getJSON(ctx, "/2/tweets/search/recent", params, &resp); err != nil {
			return Page{}, err
		}
		related := make(map[string]json.RawMessage, len(resp.Includes.Users))
		for _, u := range resp.Includes.Users {
			var id struct {
				ID string `json:"id"`
			}
			if json.Unmarshal(u, &id) == nil && id.ID != "" {
				related["user:"+id.ID] = u
			}
		}
		return Page{Items: resp.Data, Related: related, Next: resp.Meta.NextToken}, nil
	})
	if err != nil {
		if pages == 0 {
			return batch, fmt.Errorf("x search: %w", err)
		}
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("x: stopped after %d pages: %v", pages, err))
	}
	batch.Items, batch.Related = page.Items, page.Related
	return batch, nil
}

var (
	xID        = normalize.Required("id", "id", "id_str")
	xText      = normalize.Required("text", "note_tweet.text", "text", "full_text")
	xCreated   = normalize.Field("created_at", "created_at")
	xAuthorID  = normalize.Field("author_id", "author_id", "user_id")
	xLikes     = normalize.Field("likes", "public_metrics.like_count", "favorite_count")
	xReplies   = normalize.Field("comments", "public_metrics.reply_count", "reply_count")
	xRetweets  = normalize.Field("shares", "public_metrics.retweet_count", "retweet_count")
	xQuotes    = normalize.Field("quotes", "public_metrics.quote_count", "quote_count")
	xViews     = normalize.Field("views", "public_metrics.impression_count")
	xUsername  = normalize.Field("username", "username", "screen_name")
	xName      = normalize.Field("name", "name")
	xAvatar    = normalize.Field("avatar", "profile_image_url", "profile_image_url_https")
	xVerified  = normalize.Field("verified", "verified")
	xJoined    = normalize.Field("joined", "created_at")
	xFollowers = normalize.Field("followers", "public_metrics.followers_count", "followers_count")
	xFollowing = normalize.Field("following", "public_metrics.following_count", "friends_count")
	xBio       = normalize.Field("bio", "description")
)

// Normalize maps posts to ContentItems, joining each with its side-loaded author.
func (c *XClient) Normalize(batch RawBatch) ([]types.ContentItem, []normalize.Gap) {
	now := c.now()
	return c.normalize(batch, func(it *normalize.Item) types.ContentItem {
		item := types.ContentItem{
			ID:        it.String(xID),
			Text:      it.String(xText),
			CreatedAt: it.Time(xCreated),
			Engagement: types.Engagement{
				Likes:    it.Count(xLikes),
				Comments: it.Count(xReplies),
				Shares:   it.Count(xRetweets) + it.Count(xQuotes),
				Views:    it.OptionalCount(xViews),
			},
		}

		if user := related(batch, "user:"+it.String(xAuthorID)); user != nil {
			u := normalize.NewItem(user, c.log)
			username := u.String(xUsername)
			item.AuthorName = u.String(xName)
			item.AuthorHandle = normalize.Handle("@", username)
			item.AuthorAvatarURL = u.String(xAvatar)
			item.Author = &types.AuthorMetadata{
				FollowersCount: u.OptionalCount(xFollowers),
				FollowingCount: u.OptionalCount(xFollowing),
				AccountAgeDays: accountAge(u.Time(xJoined), now),
				IsVerified:     u.OptionalBool(xVerified),
				Bio:            u.String(xBio),
			}
			if username != "" {
				item.Author.ProfileURL = "https://x.com/" + username
				item.URL = fmt.Sprintf("https://x.com/%s/status/%s", username, item.ID)
			}
		}
		if item.URL == "" && item.ID != "" {
			item.URL = "https://x.com/i/web/status/" + item.ID
		}
		return item
	})
}
