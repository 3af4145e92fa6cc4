// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pdiddy/social-search/internal/httputil"
)

const (
	defaultMaxPages = 3
	minPageDelay    = 150 * time.Millisecond
	maxPageDelay    = 500 * time.Millisecond
)

// RandomPageDelay returns a pause sampled uniformly from [150ms, 500ms].
func RandomPageDelay() time.Duration {
	return minPageDelay + time.Duration(rand.Int63n(int64(maxPageDelay-minPageDelay)+1))
}

// Page is one fetched page of raw items.
type Page struct {
	Items   []json.RawMessage
	Related map[string]json.RawMessage

	// Next is the cursor, token or offset for the following page; empty
	// means there are no more pages.
	Next string
}

// FetchPage retrieves the page at cursor; the first call gets "".
type FetchPage func(ctx context.Context, cursor string) (Page, error)

// Pager fetches pages sequentially with a short pause between them.
type Pager struct {
	MaxPages int
	Delay    func() time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
	Logger   *slog.Logger
}

// Collect fetches up to MaxPages pages, or until limit items are held when
// limit is positive, stopping early when the platform reports no more
// pages. If a later page fails, the pages already fetched are returned
// together with the error.
func (p Pager) Collect(ctx context.Context, limit int, fetch FetchPage) (Page, int, error) {
	maxPages := p.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	delay := p.Delay
	if delay == nil {
		delay = RandomPageDelay
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = httputil.SleepContext
	}

	var out Page
	cursor := ""
	pages := 0
	for pages < maxPages {
		if pages > 0 {
			if err := sleep(ctx, delay()); err != nil {
				return out, pages, err
			}
		}
		page, err := fetch(ctx, cursor)
		if err != nil {
			return out, pages, err
		}
		pages++

		out.Items = append(out.Items, page.Items...)
		for k, v := range page.Related {
			if out.Related == nil {
				out.Related = make(map[string]json.RawMessage)
			}
			out.Related[k] = v
		}

		if page.Next == "" || len(page.Items) == 0 {
			break
		}
		if limit > 0 && len(out.Items) >= limit {
			break
		}
		cursor = page.Next
	}
	if p.Logger != nil {
		p.Logger.Debug("pagination finished", "pages", pages, "items", len(out.Items))
	}
	return out, pages, nil
}
