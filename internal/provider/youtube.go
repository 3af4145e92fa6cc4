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

const youtubeAPIBase = "https://www.googleapis.com"

// YouTubeClient searches videos with the Data API v3 and side-loads their
// statistics and channels, which the search endpoint does not return.
type YouTubeClient struct {
	client
}

// NewYouTube builds the YouTube client. The API key travels as a query parameter.
func NewYouTube(cfg types.ProviderConfig, deps Deps) *YouTubeClient {
	c := &YouTubeClient{client: newClient(types.PlatformYouTube, cfg, deps, youtubeAPIBase, "x-ratelimit-reset", 50, 50)}
	c.auth = &StaticAuth{Platform: types.PlatformYouTube, Value: cfg.APIKey, QueryParam: "key"}
	return c
}

type youtubeSearchResponse struct {
	Items         []json.RawMessage `json:"items"`
	NextPageToken string            `json:"nextPageToken"`
}

type youtubeVideosResponse struct {
	Items []json.RawMessage `json:"items"`
}

// Search lists matching videos, then fetches statistics for each page.
func (c *YouTubeClient) Search(ctx context.Context, q *query.Query, opts Options) (RawBatch, error) {
	batch := RawBatch{Platform: c.platform}
	term, filter := searchTerm(q, false)
	batch.Filter = filter

	page, pages, err := c.pager.Collect(ctx, opts.MaxResults, func(ctx context.Context, cursor string) (Page, error) {
		params := url.Values{
			"part":       {"snippet"},
			"type":       {"video"},
			"q":          {term},
			"maxResults": {strconv.Itoa(c.pageSize)},
			"order":      {"relevance"},
		}
		if !opts.Window.Since.IsZero() {
			params.Set("publishedAfter", opts.Window.Since.UTC().Format(time.RFC3339))
		}
		if !opts.Window.Until.IsZero() {
			params.Set("publishedBefore", opts.Window.Until.UTC().Format(time.RFC3339))
		}
		if cursor != "" {
			params.Set("pageToken", cursor)
		}

		var resp youtubeSearchResponse
		if err := c.getJSON(ctx, "/youtube/v3/search", params, &resp); err != nil {
			return Page{}, err
		}
		stats, err := c.statistics(ctx, resp.Items)
		if err != nil {
			return Page{}, err
		}
		if err := c.channels(ctx, resp.Items, stats); err != nil {
			c.log.Warn("channel lookup failed, using derived handles", "error", err)
		}
		return Page{Items: resp.Items, Related: stats, Next: resp.NextPageToken}, nil
	})
	if err != nil {
		if pages == 0 {
			return batch, fmt.Errorf("youtube search: %w", err)
		}
		batch.Warnings = append(batch.Warnings, fmt.Sprintf("youtube: stopped after %d pages: %v", pages, err))
	}
	batch.Items, batch.Related = page.Items, page.Related
	return batch, nil
}

// statistics fetches view, like and comment counts for a page of search
// results, keyed "stats:<videoId>".
func (c *YouTubeClient) statistics(ctx context.Context, items []json.RawMessage) (map[string]json.RawMessage, error) {
	var ids []string
	for _, raw := range items {
		f, err := normalize.Decode(raw)
		if err != nil {
			continue
		}
		if id := normalize.NewItem(f, c.log).String(youtubeID); id != "" {
			ids = append(ids, id)
		}
	}
	out := make(map[string]json.RawMessage)
	if len(ids) == 0 {
		return out, nil
	}

	params := url.Values{"part": {"statistics"}, "id": {strings.Join(ids, ",")}}
	var resp youtubeVideosResponse
	if err := c.getJSON(ctx, "/youtube/v3/videos", params, &resp); err != nil {
		return nil, fmt.Errorf("video statistics: %w", err)
	}
	for _, raw := range resp.Items {
		var v struct {
			ID         string          `json:"id"`
			Statistics json.RawMessage `json:"statistics"`
		}
		if json.Unmarshal(raw, &v) == nil && v.ID != "" && len(v.Statistics) > 0 {
			out["stats:"+v.ID] = v.Statistics
		}
	}
	return out, nil
}

// channels looks up the channels behind a page of results and stores each
// under "channel:<channelId>" in out.
func (c *YouTubeClient) channels(ctx context.Context, items []json.RawMessage, out map[string]json.RawMessage) error {
	seen := make(map[string]bool)
	var ids []string
	for _, raw := range items {
		f, err := normalize.Decode(raw)
		if err != nil {
			continue
		}
		if id := normalize.NewItem(f, c.log).String(youtubeChannelID); id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	params := url.Values{"part": {"snippet,statistics"}, "id": {strings.Join(ids, ",")}}
	var resp youtubeVideosResponse
	if err := c.getJSON(ctx, "/youtube/v3/channels", params, &resp); err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	for _, raw := range resp.Items {
		var v struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &v) == nil && v.ID != "" {
			out["channel:"+v.ID] = raw
		}
	}
	return nil
}

var (
	youtubeID        = normalize.Required("id", "id.videoId", "id")
	youtubeTitle     = normalize.Required("text", "snippet.title", "title")
	youtubeDesc      = normalize.Field("description", "snippet.description", "description")
	youtubePublished = normalize.Field("created_at", "snippet.publishedAt", "publishedAt")
	youtubeChannel   = normalize.Field("channel", "snippet.channelTitle", "channelTitle")
	youtubeChannelID = normalize.Field("channel_id", "snippet.channelId", "channelId")
	youtubeThumb     = normalize.Field("thumbnail", "snippet.thumbnails.high.url", "snippet.thumbnails.medium.url", "snippet.thumbnails.default.url")
	youtubeViews     = normalize.Field("views", "viewCount")
	youtubeLikes     = normalize.Field("likes", "likeCount")
	youtubeComments  = normalize.Field("comments", "commentCount")

	youtubeHandle      = normalize.Field("handle", "snippet.customUrl")
	youtubeSubscribers = normalize.Field("subscribers", "statistics.subscriberCount")
	youtubeChannelBio  = normalize.Field("bio", "snippet.description")
	youtubeChannelAge  = normalize.Field("channel_created_at", "snippet.publishedAt")
)

// Normalize maps search results to ContentItems, joining statistics by video id.
func (c *YouTubeClient) Normalize(batch RawBatch) ([]types.ContentItem, []normalize.Gap) {
	return c.normalize(batch, func(it *normalize.Item) types.ContentItem {
		channel := it.String(youtubeChannel)
		channelID := it.String(youtubeChannelID)
		item := types.ContentItem{
			ID:         it.String(youtubeID),
			Text:       normalize.JoinText(it.String(youtubeTitle), it.String(youtubeDesc)),
			AuthorName: channel,
			CreatedAt:  it.Time(youtubePublished),
			Thumbnail:  it.String(youtubeThumb),
		}
		if item.ID != "" {
			item.URL = "https://www.youtube.com/watch?v=" + item.ID
		}
		if channelID != "" {
			item.Author = &types.AuthorMetadata{ProfileURL: "https://www.youtube.com/channel/" + channelID}
		}

		if ch := related(batch, "channel:"+channelID); channelID != "" && ch != nil {
			cm := normalize.NewItem(ch, c.log)
			item.AuthorHandle = normalize.Handle("@", cm.String(youtubeHandle))
			item.Author.FollowersCount = cm.OptionalCount(youtubeSubscribers)
			item.Author.Bio = cm.String(youtubeChannelBio)
			item.Author.AccountAgeDays = accountAge(cm.Time(youtubeChannelAge), c.now())
		}
		if item.AuthorHandle == "" {
			// Not a platform handle: the channel title squashed into a stable
			// key, used when the channel has no custom URL or the lookup failed.
			item.AuthorHandle = normalize.Handle("@", strings.ReplaceAll(strings.ToLower(channel), " ", ""))
		}

		if stats := related(batch, "stats:"+item.ID); stats != nil {
			s := normalize.NewItem(stats, c.log)
			item.Engagement = types.Engagement{
				Likes:    s.Count(youtubeLikes),
				Comments: s.Count(youtubeComments),
				Views:    s.OptionalCount(youtubeViews),
			}
		}
		return item
	})
}
