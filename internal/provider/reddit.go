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

	"github.com/pdiddy/social-search/internal/normalize"
	"github.com/pdiddy/social-search/internal/query"
	"github.com/pdiddy/social-search/pkg/types"
)

const redditAggregatorBase = "https://api.redditsearch.dev"

// RedditClient reads Reddit through a third-party aggregator authenticated
// by an x-api-key header.
type RedditClient struct {
	client
}

// NewReddit builds the Reddit aggregator client.
func NewReddit(cfg types.ProviderConfig, deps Deps) *RedditClient {
	c := &RedditClient{client: newClient(types.PlatformReddit, cfg, deps, redditAggregatorBase, "x-ratelimit-reset", 100, 100)}
	c.auth = &StaticAuth{Platform: types.PlatformReddit, Value: cfg.APIKey, Header: "x-api-key"}
	return c
}

// redditListing accepts both listing shapes the aggregator has served:
// the Reddit-native {"data":{"children":[{"data":{...}}],"after":...}} and
// the flattened {"posts":[...],"after":...}.
type redditListing struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
		After string `json:"after"`
	} `json:"data"`
	Posts      []json.RawMessage `json:"posts"`
	After      string            `json:"after"`
	NextCursor string            `json:"next_cursor"`
}

func (l redditListing) items() ([]json.RawMessage, string) {
	if len(l.Data.Children) > 0 {
		items := make([]json.RawMessage, 0, len(l.Data.Children))
		for _, ch := range l.Data.Children {
			if len(ch.Data) > 0 {
				items = append(items, ch.Data)
			}
		}
		return items, l.Data.After
	}
	return l.Posts, nonEmpty(l.After, l.NextCursor)
}

// redditTimeFilter picks the narrowest Reddit "t" bucket covering d.
func redditTimeFilter(d time.Duration) string {
	switch {
	case d <= 0:
		return "all"
	case d <= time.Hour:
		return "hour"
	case d <= 24*time.Hour:
		return "day"
	case d <= 7*24*time.Hour:
		return "week"
	case d <= 31*24*time.Hour:
		return "month"
	case d <= 366*24*time.Hour:
		return "year"
	default:
		return "all"
	}
}

// Search queries the aggregator. Reddit's "t" buckets are coarse, so the
// exact window is applied in Normalize.
func (c *RedditClient) Search(ctx context.Context, q *query.Query, opts Options) (RawBatch, error) {
	batch := RawBatch{Platform: c.platform}
	term, filter := searchTerm(q, false)
	batch.Filter = filter
	if !opts.Window.Since.IsZero() {
		win := opts.Window
		batch.Window = &win
	}

	page, pages, err := c.pager.Collect(ctx, opts.MaxResults, func(ctx context.Context, cursor string) (Page, error) {
		params := url.Values{
			"q":     {term},
			"sort":  {"relevance"},
			"t":     {redditTimeFilter(opts.Window.Duration())},
			"limit": {strconv.Itoa(c.pageSize)},
		}
		if cursor != "" {
			params.Set("after", cursor)
		}
		var resp redditListing
		if err := c.getJSON(ctx, "/v1/reddit/search", params, &resp); err != nil {
			return Page{}, err
		}
		items, next := resp.items()
		return Page{Items: items, Next: next}, nil
	})
	if err != nil {
		if pages == 0 {
			return batch, fmt.Errorf("reddit search: %w", err)
		}
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("reddit: stopped after %d pages: %v", pages, err))
	}
	batch.Items = page.Items
	return batch, nil
}

var (
	redditID        = normalize.Required("id", "id", "name")
	redditTitle     = normalize.Required("text", "title", "body")
	redditBody      = normalize.Field("body", "selftext", "body")
	redditCreated   = normalize.Field("created_at", "created_utc", "created_at", "created")
	redditAuthor    = normalize.Field("author", "author", "author_name")
	redditScore     = normalize.Field("likes", "score", "ups", "upvotes")
	redditComments  = normalize.Field("comments", "num_comments", "comment_count")
	redditCrossPost = normalize.Field("shares", "num_crossposts")
	redditPermalink = normalize.Field("permalink", "permalink")
	redditURL       = normalize.Field("url", "url")
	redditThumb     = normalize.Field("thumbnail", "thumbnail")
)

// Normalize maps posts and comments to ContentItems. Reddit handles use
// the u/ prefix.
func (c *RedditClient) Normalize(batch RawBatch) ([]types.ContentItem, []normalize.Gap) {
	return c.normalize(batch, func(it *normalize.Item) types.ContentItem {
		title := it.String(redditTitle)
		body := it.String(redditBody)
		if body == title {
			body = ""
		}
		author := it.String(redditAuthor)
		if author == "[deleted]" {
			author = ""
		}
		item := types.ContentItem{
			ID:           trimFullname(it.String(redditID)),
			Text:         normalize.JoinText(title, body),
			AuthorName:   author,
			AuthorHandle: normalize.Handle("u/", author),
			CreatedAt:    it.Time(redditCreated),
			Engagement: types.Engagement{
				Likes:    it.Count(redditScore),
				Comments: it.Count(redditComments),
				Shares:   it.Count(redditCrossPost),
			},
		}
		if p := it.String(redditPermalink); p != "" {
			item.URL = "https://www.reddit.com" + p
		} else {
			item.URL = it.String(redditURL)
		}
		if thumb := it.String(redditThumb); strings.HasPrefix(thumb, "http") {
			item.Thumbnail = thumb
		}
		if author != "" {
			item.Author = &types.AuthorMetadata{ProfileURL: "https://www.reddit.com/user/" + author}
		}
		return item
	})
}

// trimFullname drops a Reddit type prefix (t1_ comment through t6_ award)
// so a thing dedups the same whether it arrived as a fullname or a bare id.
func trimFullname(id string) string {
	if len(id) > 3 && id[0] == 't' && id[1] >= '1' && id[1] <= '6' && id[2] == '_' {
		return id[3:]
	}
	return id
}
