// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search orchestrates one search request: it fans the query out to
// every selected platform client concurrently, then scores, ranks and
// summarizes whatever came back.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/social-search/internal/analysis"
	"github.com/pdiddy/social-search/internal/credibility"
	"github.com/pdiddy/social-search/internal/normalize"
	"github.com/pdiddy/social-search/internal/provider"
	"github.com/pdiddy/social-search/internal/query"
	"github.com/pdiddy/social-search/internal/ranking"
	"github.com/pdiddy/social-search/pkg/types"
)

const (
	defaultProviderTimeout = 30 * time.Second
	defaultMaxResults      = 100
)

// Request holds the parameters of one search.
type Request struct {
	Query string

	// Platforms restricts the search; empty means every configured client.
	Platforms []types.Platform

	// TimeRange is a relative token such as "7d" or "3m".
	TimeRange string

	Sort  ranking.Strategy
	Limit int

	// Signals are content-analysis results keyed by credibility.SignalKey.
	Signals map[string]credibility.Signals

	// Analyze requests the optional LLM analysis step.
	Analyze bool
}

// Engine runs searches. The zero value is not usable; Providers and Scorer
// are required.
type Engine struct {
	Providers []provider.SearchProvider
	Scorer    *credibility.Scorer
	Ranker    ranking.Ranker
	Analyzer  analysis.Analyzer

	ProviderTimeout  time.Duration
	MaxResults       int
	DefaultTimeRange string
	DefaultSort      ranking.Strategy

	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

// providerResult is what one fan-out task reports back.
type providerResult struct {
	platform types.Platform
	items    []types.ContentItem
	gaps     []normalize.Gap
	warnings []string
	err      error
}

// Search runs one request. Provider failures never fail the request: they
// are reported as PlatformErrors next to whatever results were gathered.
func (e *Engine) Search(ctx context.Context, req Request) (*types.SearchResponse, error) {
	raw := strings.TrimSpace(req.Query)
	if raw == "" {
		return nil, fmt.Errorf("query is empty: provide search terms")
	}
	q, err := query.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	if len(q.Terms()) == 0 {
		return nil, fmt.Errorf("invalid query: at least one term must not be negated")
	}

	providers, err := e.selectProviders(req.Platforms)
	if err != nil {
		return nil, err
	}

	now := e.now()
	timeRange := nonEmpty(req.TimeRange, e.DefaultTimeRange)
	window, err := provider.ParseTimeRange(timeRange, now)
	if err != nil {
		return nil, err
	}

	strategy := req.Sort
	if strategy == "" {
		strategy = e.DefaultSort
	}
	if strategy, err = ranking.ParseStrategy(string(strategy)); err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.MaxResults
	}
	if limit <= 0 {
		limit = defaultMaxResults
	}

	resp := &types.SearchResponse{
		RequestID:   e.newID(),
		Query:       raw,
		GeneratedAt: now,
		Errors:      []types.PlatformError{},
		Warnings:    []string{},
	}
	log := e.logger().With("request_id", resp.RequestID)
	log.Info("search started", "query", raw, "platforms", len(providers), "range", timeRange, "sort", string(strategy))

	results := e.fanOut(ctx, providers, q, provider.Options{Window: window, MaxResults: limit})

	var all []types.ContentItem
	for _, r := range results {
		resp.Warnings = append(resp.Warnings, r.warnings...)
		if r.err != nil {
			log.Warn("platform failed", "platform", string(r.platform), "err", r.err)
			resp.Errors = append(resp.Errors, types.PlatformError{Platform: r.platform, Error: r.err.Error()})
			continue
		}
		if len(r.gaps) > 0 {
			resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s: skipped %d malformed items", r.platform, len(r.gaps)))
		}
		all = append(all, r.items...)
	}

	deduped, removed := deduplicate(all)
	if removed > 0 {
		log.Debug("duplicates removed", "count", removed)
	}

	scored := e.Scorer.ScoreAll(deduped, req.Signals)
	ranked := ranking.Sort(e.Ranker.ScoreBatch(scored), strategy)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	if req.Analyze && e.Analyzer != nil && len(ranked) > 0 {
		res, err := e.Analyzer.Analyze(ctx, raw, ranked)
		if err != nil {
			log.Warn("analysis failed", "err", err)
			resp.Warnings = append(resp.Warnings, "analysis unavailable: "+err.Error())
		} else {
			resp.Analysis = &res.Analysis
			applySentiments(ranked, res.Sentiments)
		}
	}

	if ranked == nil {
		ranked = []types.ScoredContentItem{}
	}
	resp.Results = ranked
	resp.Summary = summarize(ranked, removed)
	resp.Credibility = summarizeCredibility(ranked)

	log.Info("search finished", "results", len(ranked), "errors", len(resp.Errors), "warnings", len(resp.Warnings))
	return resp, nil
}

// selectProviders returns the clients for the requested platforms, in the
// order they were configured.
func (e *Engine) selectProviders(platforms []types.Platform) ([]provider.SearchProvider, error) {
	if len(e.Providers) == 0 {
		return nil, fmt.Errorf("no platform clients configured")
	}
	if len(platforms) == 0 {
		return e.Providers, nil
	}
	want := make(map[types.Platform]bool, len(platforms))
	for _, p := range platforms {
		want[p] = true
	}
	var out []provider.SearchProvider
	for _, p := range e.Providers {
		if want[p.Platform()] {
			out = append(out, p)
			delete(want, p.Platform())
		}
	}
	if len(want) > 0 {
		var missing []string
		for _, p := range platforms {
			if want[p] {
				missing = append(missing, string(p))
			}
		}
		return nil, fmt.Errorf("platforms not configured: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// fanOut runs every provider concurrently, each under its own deadline. A
// failing provider does not cancel the others. Results keep provider order.
func (e *Engine) fanOut(ctx context.Context, providers []provider.SearchProvider, q *query.Query, opts provider.Options) []providerResult {
	timeout := e.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	results := make([]providerResult, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(i int, p provider.SearchProvider) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			r := providerResult{platform: p.Platform()}
			batch, err := p.Search(pctx, q, opts)
			r.warnings = batch.Warnings
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					err = fmt.Errorf("timed out after %s: %w", timeout, err)
				}
				r.err = err
			} else {
				r.items, r.gaps = p.Normalize(batch)
			}
			results[i] = r
		}(i, p)
	}
	wg.Wait()
	return results
}

// deduplicate drops repeated (platform, id) pairs, which overlapping pages
// can return.
func deduplicate(items []types.ContentItem) ([]types.ContentItem, int) {
	seen := make(map[string]bool, len(items))
	out := make([]types.ContentItem, 0, len(items))
	for _, it := range items {
		key := credibility.SignalKey(it.Platform, it.ID)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out, len(items) - len(out)
}

func applySentiments(items []types.ScoredContentItem, sentiments map[string]types.Sentiment) {
	for i := range items {
		if s, ok := sentiments[credibility.SignalKey(items[i].Item.Platform, items[i].Item.ID)]; ok {
			items[i].Item.Sentiment = s
		}
	}
}

func summarize(items []types.ScoredContentItem, duplicates int) types.SearchSummary {
	s := types.SearchSummary{
		Total:             len(items),
		ByPlatform:        make(map[types.Platform]int),
		BySentiment:       make(map[types.Sentiment]int),
		DuplicatesRemoved: duplicates,
	}
	for _, it := range items {
		s.ByPlatform[it.Item.Platform]++
		if it.Item.Sentiment != "" {
			s.BySentiment[it.Item.Sentiment]++
		}
	}
	return s
}

func summarizeCredibility(items []types.ScoredContentItem) types.CredibilitySummary {
	var c types.CredibilitySummary
	if len(items) == 0 {
		return c
	}
	var total float64
	for _, it := range items {
		total += it.Credibility.Score
		if it.Credibility.RegistryMatch() {
			c.RegistrySources++
		}
		if it.Item.Author.Verified() {
			c.PlatformVerified++
		}
	}
	c.AverageScore = total / float64(len(items))
	return c
}

func nonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
