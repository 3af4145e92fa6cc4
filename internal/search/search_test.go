// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/social-search/internal/analysis"
	"github.com/pdiddy/social-search/internal/credibility"
	"github.com/pdiddy/social-search/internal/normalize"
	"github.com/pdiddy/social-search/internal/provider"
	"github.com/pdiddy/social-search/internal/query"
	"github.com/pdiddy/social-search/internal/ranking"
	"github.com/pdiddy/social-search/internal/registry"
	"github.com/pdiddy/social-search/pkg/types"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

// --- mock provider ---

type mockProvider struct {
	platform types.Platform
	items    []types.ContentItem
	gaps     int
	warnings []string
	err      error
	block    bool // wait for the context to end

	calls  atomic.Int32
	gotQ   *query.Query
	gotOpt provider.Options
}

func (m *mockProvider) Platform() types.Platform { return m.platform }

func (m *mockProvider) Search(ctx context.Context, q *query.Query, opts provider.Options) (provider.RawBatch, error) {
	m.calls.Add(1)
	m.gotQ = q
	m.gotOpt = opts
	batch := provider.RawBatch{Platform: m.platform, Warnings: m.warnings}
	if m.block {
		<-ctx.Done()
		return batch, ctx.Err()
	}
	return batch, m.err
}

func (m *mockProvider) Normalize(provider.RawBatch) ([]types.ContentItem, []normalize.Gap) {
	gaps := make([]normalize.Gap, m.gaps)
	return m.items, gaps
}

type mockAnalyzer struct {
	res analysis.Result
	err error
}

func (m *mockAnalyzer) Analyze(context.Context, string, []types.ScoredContentItem) (analysis.Result, error) {
	return m.res, m.err
}

func post(p types.Platform, id, handle string, likes int64, age time.Duration) types.ContentItem {
	return types.ContentItem{
		ID:           id,
		Platform:     p,
		Text:         "measles outbreak update " + id,
		AuthorHandle: handle,
		CreatedAt:    testNow.Add(-age),
		Engagement:   types.Engagement{Likes: likes},
		URL:          "https://example.com/" + id,
	}
}

func testEngine(t *testing.T, providers ...provider.SearchProvider) *Engine {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}
	return &Engine{
		Providers:        providers,
		Scorer:           credibility.NewScorer(reg),
		Ranker:           ranking.Ranker{Now: func() time.Time { return testNow }},
		ProviderTimeout:  time.Second,
		MaxResults:       100,
		DefaultTimeRange: "7d",
		DefaultSort:      ranking.SortRelevance,
		Now:              func() time.Time { return testNow },
		NewID:            func() string { return "req-1" },
	}
}

// --- Request validation ---

func TestSearchEmptyQuery(t *testing.T) {
	e := testEngine(t, &mockProvider{platform: types.PlatformX})
	_, err := e.Search(context.Background(), Request{Query: "   "})
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("expected empty query error, got: %v", err)
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	e := testEngine(t, &mockProvider{platform: types.PlatformX})
	for _, q := range []string{"(measles OR mumps", "NOT measles", "measles AND"} {
		if _, err := e.Search(context.Background(), Request{Query: q}); err == nil || !strings.Contains(err.Error(), "invalid query") {
			t.Errorf("Search(%q): expected invalid query error, got: %v", q, err)
		}
	}
}

func TestSearchNoProviders(t *testing.T) {
	_, err := testEngine(t).Search(context.Background(), Request{Query: "measles"})
	if err == nil || !strings.Contains(err.Error(), "no platform clients") {
		t.Errorf("expected no providers error, got: %v", err)
	}
}

func TestSearchUnconfiguredPlatform(t *testing.T) {
	e := testEngine(t, &mockProvider{platform: types.PlatformX})
	_, err := e.Search(context.Background(), Request{Query: "measles", Platforms: []types.Platform{types.PlatformTikTok}})
	if err == nil || !strings.Contains(err.Error(), "tiktok") {
		t.Errorf("expected unconfigured platform error, got: %v", err)
	}
}

func TestSearchInvalidRangeAndSort(t *testing.T) {
	e := testEngine(t, &mockProvider{platform: types.PlatformX})
	if _, err := e.Search(context.Background(), Request{Query: "measles", TimeRange: "soon"}); err == nil {
		t.Error("expected time range error")
	}
	if _, err := e.Search(context.Background(), Request{Query: "measles", Sort: "random"}); err == nil {
		t.Error("expected sort error")
	}
}

// --- Fan-out ---

func TestSearchContinuesAfterProviderFailure(t *testing.T) {
	failing := &mockProvider{platform: types.PlatformTikTok, err: fmt.Errorf("network error")}
	working := &mockProvider{
		platform: types.PlatformX,
		items:    []types.ContentItem{post(types.PlatformX, "1", "@someone", 10, time.Hour)},
	}

	resp, err := testEngine(t, failing, working).Search(context.Background(), Request{Query: "measles"})
	if err != nil {
		t.Fatalf("Search should not fail entirely: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("len(Results) = %d, want 1", len(resp.Results))
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Platform != types.PlatformTikTok || !strings.Contains(resp.Errors[0].Error, "network error") {
		t.Errorf("Errors = %+v, want one tiktok network error", resp.Errors)
	}
}

func TestSearchAllProvidersFail(t *testing.T) {
	a := &mockProvider{platform: types.PlatformX, err: errors.New("down")}
	b := &mockProvider{platform: types.PlatformReddit, err: errors.New("down")}
	resp, err := testEngine(t, a, b).Search(context.Background(), Request{Query: "measles"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 0 || resp.Results == nil {
		t.Errorf("Results = %v, want empty non-nil", resp.Results)
	}
	if len(resp.Errors) != 2 {
		t.Errorf("len(Errors) = %d, want 2", len(resp.Errors))
	}
	if resp.Errors[0].Platform != types.PlatformX || resp.Errors[1].Platform != types.PlatformReddit {
		t.Errorf("errors should keep provider order, got %+v", resp.Errors)
	}
}

func TestSearchProviderTimeout(t *testing.T) {
	slow := &mockProvider{platform: types.PlatformYouTube, block: true}
	fast := &mockProvider{platform: types.PlatformX, items: []types.ContentItem{post(types.PlatformX, "1", "@a", 1, time.Hour)}}

	e := testEngine(t, slow, fast)
	e.ProviderTimeout = 20 * time.Millisecond
	resp, err := e.Search(context.Background(), Request{Query: "measles"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Errorf("len(Results) = %d, want 1", len(resp.Results))
	}
	if len(resp.Errors) != 1 || !strings.Contains(resp.Errors[0].Error, "timed out") {
		t.Errorf("Errors = %+v, want one timeout", resp.Errors)
	}
}

func TestSearchSelectsPlatforms(t *testing.T) {
	x := &mockProvider{platform: types.PlatformX}
	yt := &mockProvider{platform: types.PlatformYouTube}
	e := testEngine(t, x, yt)
	if _, err := e.Search(context.Background(), Request{Query: "measles", Platforms: []types.Platform{types.PlatformYouTube}}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if x.calls.Load() != 0 || yt.calls.Load() != 1 {
		t.Errorf("calls x=%d youtube=%d, want 0 and 1", x.calls.Load(), yt.calls.Load())
	}
}

func TestSearchPassesQueryAndWindow(t *testing.T) {
	p := &mockProvider{platform: types.PlatformBluesky}
	e := testEngine(t, p)
	if _, err := e.Search(context.Background(), Request{Query: `"public health" OR cdc`, TimeRange: "24h", Limit: 5}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if p.gotQ == nil || !p.gotQ.HasOperators() {
		t.Fatalf("provider should receive the parsed query, got %v", p.gotQ)
	}
	if got := p.gotOpt.Window.Duration(); got != 24*time.Hour {
		t.Errorf("window = %s, want 24h", got)
	}
	if !p.gotOpt.Window.Until.Equal(testNow) {
		t.Errorf("window ends %s, want %s", p.gotOpt.Window.Until, testNow)
	}
	if p.gotOpt.MaxResults != 5 {
		t.Errorf("MaxResults = %d, want 5", p.gotOpt.MaxResults)
	}
}

func TestSearchCollectsWarnings(t *testing.T) {
	p := &mockProvider{
		platform: types.PlatformX,
		items:    []types.ContentItem{post(types.PlatformX, "1", "@a", 1, time.Hour)},
		gaps:     2,
		warnings: []string{"x: time range clamped to 7 days"},
	}
	resp, err := testEngine(t, p).Search(context.Background(), Request{Query: "measles", TimeRange: "30d"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"x: time range clamped to 7 days", "x: skipped 2 malformed items"}
	if fmt.Sprint(resp.Warnings) != fmt.Sprint(want) {
		t.Errorf("Warnings = %q, want %q", resp.Warnings, want)
	}
}

// --- Scoring and ranking ---

func TestSearchDedupAndRank(t *testing.T) {
	x := &mockProvider{
		platform: types.PlatformX,
		items: []types.ContentItem{
			post(types.PlatformX, "1", "@randomuser", 100, time.Hour),
			post(types.PlatformX, "2", "@WHO", 100, time.Hour),
			post(types.PlatformX, "1", "@randomuser", 100, time.Hour),
		},
	}
	reddit := &mockProvider{
		platform: types.PlatformReddit,
		items:    []types.ContentItem{post(types.PlatformReddit, "1", "u/someone", 5, 6*24*time.Hour)},
	}

	resp, err := testEngine(t, x, reddit).Search(context.Background(), Request{Query: "measles"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Summary.DuplicatesRemoved != 1 {
		t.Errorf("DuplicatesRemoved = %d, want 1", resp.Summary.DuplicatesRemoved)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(resp.Results))
	}
	if resp.Results[0].Item.ID != "2" || !resp.Results[0].Credibility.RegistryMatch() {
		t.Errorf("curated source should rank first, got %s", resp.Results[0].Item.AuthorHandle)
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i].Scores.Final > resp.Results[i-1].Scores.Final {
			t.Errorf("results not sorted: [%d].Final=%f > [%d].Final=%f",
				i, resp.Results[i].Scores.Final, i-1, resp.Results[i-1].Scores.Final)
		}
	}
	if resp.Summary.ByPlatform[types.PlatformX] != 2 || resp.Summary.ByPlatform[types.PlatformReddit] != 1 {
		t.Errorf("ByPlatform = %v", resp.Summary.ByPlatform)
	}
	if resp.Credibility.RegistrySources != 1 {
		t.Errorf("RegistrySources = %d, want 1", resp.Credibility.RegistrySources)
	}
	if resp.Credibility.AverageScore <= 0 || resp.Credibility.AverageScore > 1 {
		t.Errorf("AverageScore = %f, want within (0, 1]", resp.Credibility.AverageScore)
	}
	if resp.RequestID != "req-1" || !resp.GeneratedAt.Equal(testNow) {
		t.Errorf("RequestID = %q GeneratedAt = %s", resp.RequestID, resp.GeneratedAt)
	}
}

func TestSearchSortRecent(t *testing.T) {
	p := &mockProvider{
		platform: types.PlatformX,
		items: []types.ContentItem{
			post(types.PlatformX, "old", "@WHO", 1000, 5*24*time.Hour),
			post(types.PlatformX, "new", "@nobody", 0, time.Minute),
		},
	}
	resp, err := testEngine(t, p).Search(context.Background(), Request{Query: "measles", Sort: ranking.SortRecent})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Results[0].Item.ID != "new" {
		t.Errorf("first = %s, want new", resp.Results[0].Item.ID)
	}
}

func TestSearchUsesSignals(t *testing.T) {
	p := &mockProvider{
		platform: types.PlatformX,
		items: []types.ContentItem{
			post(types.PlatformX, "a", "@nobody", 10, time.Hour),
			post(types.PlatformX, "b", "@nobody", 10, time.Hour),
		},
	}
	signals := map[string]credibility.Signals{
		credibility.SignalKey(types.PlatformX, "b"): {CrossReference: credibility.CrossRefSupported, HasCitations: true},
	}
	resp, err := testEngine(t, p).Search(context.Background(), Request{Query: "measles", Signals: signals})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Results[0].Item.ID != "b" {
		t.Errorf("cross-referenced item should rank first, got %s", resp.Results[0].Item.ID)
	}
	if resp.Results[0].Credibility.Score <= resp.Results[1].Credibility.Score {
		t.Errorf("signals should raise credibility: %f <= %f", resp.Results[0].Credibility.Score, resp.Results[1].Credibility.Score)
	}
}

func TestSearchLimit(t *testing.T) {
	var items []types.ContentItem
	for i := 0; i < 30; i++ {
		items = append(items, post(types.PlatformX, fmt.Sprintf("id-%d", i), "@a", int64(i), time.Hour))
	}
	e := testEngine(t, &mockProvider{platform: types.PlatformX, items: items})
	e.MaxResults = 10

	resp, err := e.Search(context.Background(), Request{Query: "measles"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 10 || resp.Summary.Total != 10 {
		t.Errorf("len(Results) = %d Total = %d, want 10", len(resp.Results), resp.Summary.Total)
	}

	resp, err = e.Search(context.Background(), Request{Query: "measles", Limit: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(resp.Results))
	}
}

// --- Analysis ---

func TestSearchAppliesAnalysis(t *testing.T) {
	p := &mockProvider{
		platform: types.PlatformX,
		items: []types.ContentItem{
			post(types.PlatformX, "1", "@a", 1, time.Hour),
			post(types.PlatformX, "2", "@b", 1, time.Hour),
		},
	}
	e := testEngine(t, p)
	e.Analyzer = &mockAnalyzer{res: analysis.Result{
		Analysis:   types.AIAnalysis{Summary: "Mostly official guidance.", Sentiment: types.SentimentNeutral},
		Sentiments: map[string]types.Sentiment{credibility.SignalKey(types.PlatformX, "2"): types.SentimentNegative},
	}}

	resp, err := e.Search(context.Background(), Request{Query: "measles", Analyze: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Analysis == nil || resp.Analysis.Summary != "Mostly official guidance." {
		t.Fatalf("Analysis = %+v", resp.Analysis)
	}
	if resp.Summary.BySentiment[types.SentimentNegative] != 1 || len(resp.Summary.BySentiment) != 1 {
		t.Errorf("BySentiment = %v, want one negative", resp.Summary.BySentiment)
	}

	resp, err = e.Search(context.Background(), Request{Query: "measles"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Analysis != nil {
		t.Error("analysis should only run on request")
	}
}

func TestSearchAnalysisFailureIsAWarning(t *testing.T) {
	p := &mockProvider{platform: types.PlatformX, items: []types.ContentItem{post(types.PlatformX, "1", "@a", 1, time.Hour)}}
	e := testEngine(t, p)
	e.Analyzer = &mockAnalyzer{err: errors.New("quota exceeded")}

	resp, err := e.Search(context.Background(), Request{Query: "measles", Analyze: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Analysis != nil || len(resp.Results) != 1 {
		t.Errorf("Analysis = %+v, len(Results) = %d", resp.Analysis, len(resp.Results))
	}
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "quota exceeded") {
		t.Errorf("Warnings = %q", resp.Warnings)
	}
}

// --- Output formatting ---

func sampleResponse(t *testing.T) *types.SearchResponse {
	t.Helper()
	p := &mockProvider{
		platform: types.PlatformX,
		items: []types.ContentItem{
			post(types.PlatformX, "1", "@WHO", 50, time.Hour),
			post(types.PlatformX, "2", "@someone", 5, time.Hour),
			post(types.PlatformX, "2", "@someone", 5, time.Hour),
		},
	}
	tiktok := &mockProvider{platform: types.PlatformTikTok, err: errors.New("unauthorized")}
	resp, err := testEngine(t, p, tiktok).Search(context.Background(), Request{Query: "measles"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	return resp
}

func TestFormatTable(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(sampleResponse(t), &buf)
	s := buf.String()

	for _, want := range []string{"@WHO", "@someone", "official", "2 results (x 2)", "1 duplicates removed", "error: tiktok: unauthorized"} {
		if !strings.Contains(s, want) {
			t.Errorf("table should contain %q:\n%s", want, s)
		}
	}
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(&types.SearchResponse{}, &buf)
	if !strings.Contains(buf.String(), "No results") {
		t.Error("empty output should say 'No results'")
	}
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatJSON(sampleResponse(t), &buf); err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var parsed types.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(parsed.Results) != 2 || parsed.Results[0].Item.ID != "1" {
		t.Errorf("Results = %+v", parsed.Results)
	}
	if !strings.Contains(buf.String(), `"request_id": "req-1"`) {
		t.Error("JSON should carry the request id")
	}
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatYAML(sampleResponse(t), &buf); err != nil {
		t.Fatalf("FormatYAML: %v", err)
	}
	var parsed types.SearchResponse
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid YAML output: %v", err)
	}
	if parsed.Query != "measles" || len(parsed.Errors) != 1 {
		t.Errorf("Query = %q, Errors = %+v", parsed.Query, parsed.Errors)
	}
}

// --- Response files ---

func TestResponseFileRoundTrip(t *testing.T) {
	resp := sampleResponse(t)
	req := Request{Query: "measles", Platforms: []types.Platform{types.PlatformX}, TimeRange: "24h", Sort: ranking.SortEngaged, Limit: 20}
	path := filepath.Join(t.TempDir(), "measles.yaml")

	if err := WriteResponseFile(path, req, resp); err != nil {
		t.Fatalf("WriteResponseFile: %v", err)
	}
	rf, err := ReadResponseFile(path)
	if err != nil {
		t.Fatalf("ReadResponseFile: %v", err)
	}
	if len(rf.Response.Results) != len(resp.Results) || rf.Response.RequestID != "req-1" {
		t.Errorf("response = %+v", rf.Response)
	}
	got, err := rf.Request.ToRequest()
	if err != nil {
		t.Fatalf("ToRequest: %v", err)
	}
	if got.Query != req.Query || got.Sort != req.Sort || got.Limit != 20 || len(got.Platforms) != 1 || got.Platforms[0] != types.PlatformX {
		t.Errorf("request = %+v, want %+v", got, req)
	}
}

func TestReadResponseFileErrors(t *testing.T) {
	if _, err := ReadResponseFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := (RequestParams{Query: "q", Platforms: []string{"myspace"}}).ToRequest(); err == nil {
		t.Error("expected error for unknown platform")
	}
}
