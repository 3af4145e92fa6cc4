// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis runs the optional LLM step over ranked results: an
// overall summary, recurring themes, and a sentiment label per item.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pdiddy/social-search/internal/credibility"
	"github.com/pdiddy/social-search/pkg/types"
)

// Analyzer produces an analysis of a ranked result set.
type Analyzer interface {
	Analyze(ctx context.Context, query string, items []types.ScoredContentItem) (Result, error)
}

// Result is one analysis. Sentiments are keyed by credibility.SignalKey.
type Result struct {
	Analysis   types.AIAnalysis
	Sentiments map[string]types.Sentiment
}

// ChatCompleter is the slice of the OpenAI client the analyzer uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const (
	maxItemChars   = 280
	defaultTimeout = 120 * time.Second
)

var promptTmpl = template.Must(template.New("analysis").Parse(`You analyze social media search results for the query {{printf "%q" .Query}}.

Each post below is numbered and tagged with its platform, author handle and credibility tier.

Respond with a JSON object with these fields:
- summary: 2-4 sentences describing what the posts say about the query, giving more weight to higher-tier sources
- themes: up to 5 short lowercase topic labels
- sentiment: the overall tone, one of "positive", "neutral", "negative"
- items: an array of {"index": <post number>, "sentiment": "positive" | "neutral" | "negative"} for every post

Do not include any text outside the JSON object.

Posts:
{{range .Items}}[{{.Index}}] ({{.Platform}}, {{.Handle}}, {{.Tier}}) {{.Text}}
{{end}}`))

type promptItem struct {
	Index    int
	Platform types.Platform
	Handle   string
	Tier     types.Tier
	Text     string
}

type response struct {
	Summary   string   `json:"summary"`
	Themes    []string `json:"themes"`
	Sentiment string   `json:"sentiment"`
	Items     []struct {
		Index     int    `json:"index"`
		Sentiment string `json:"sentiment"`
	} `json:"items"`
}

// OpenAIAnalyzer implements Analyzer with the OpenAI chat completions API.
// Calls share one Throttle.
type OpenAIAnalyzer struct {
	client   ChatCompleter
	model    string
	maxItems int
	throttle *Throttle
	log      *slog.Logger
}

// NewOpenAI builds an analyzer from configuration.
func NewOpenAI(cfg types.AIConfig, log *slog.Logger) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("analysis: no OpenAI API key configured")
	}
	var c *openai.Client
	if cfg.BaseURL != "" {
		cc := openai.DefaultConfig(cfg.APIKey)
		cc.BaseURL = cfg.BaseURL
		c = openai.NewClientWithConfig(cc)
	} else {
		c = openai.NewClient(cfg.APIKey)
	}
	return NewWithClient(c, cfg, NewThrottle(cfg.MinInterval), log), nil
}

// NewWithClient builds an analyzer around an existing chat client.
func NewWithClient(c ChatCompleter, cfg types.AIConfig, throttle *Throttle, log *slog.Logger) *OpenAIAnalyzer {
	if log == nil {
		log = slog.Default()
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 25
	}
	return &OpenAIAnalyzer{client: c, model: cfg.Model, maxItems: maxItems, throttle: throttle, log: log}
}

// Analyze sends the top items to the model and parses its JSON reply.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, query string, items []types.ScoredContentItem) (Result, error) {
	if len(items) == 0 {
		return Result{}, fmt.Errorf("analysis: no items to analyze")
	}
	if len(items) > a.maxItems {
		items = items[:a.maxItems]
	}

	prompt, err := renderPrompt(query, items)
	if err != nil {
		return Result{}, fmt.Errorf("rendering prompt: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}
	if a.throttle != nil {
		if err := a.throttle.Wait(ctx); err != nil {
			return Result{}, err
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
	})
	if err != nil {
		a.log.Error("openai: analysis error", "err", err)
		return Result{}, fmt.Errorf("analysis request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("analysis: empty response")
	}

	res, err := parseResponse(resp.Choices[0].Message.Content, items)
	if err != nil {
		return Result{}, err
	}
	res.Analysis.Model = nonEmpty(resp.Model, a.model)
	return res, nil
}

func renderPrompt(query string, items []types.ScoredContentItem) (string, error) {
	data := struct {
		Query string
		Items []promptItem
	}{Query: query}
	for i, it := range items {
		data.Items = append(data.Items, promptItem{
			Index:    i + 1,
			Platform: it.Item.Platform,
			Handle:   it.Item.AuthorHandle,
			Tier:     it.Credibility.Tier,
			Text:     clip(strings.Join(strings.Fields(it.Item.Text), " "), maxItemChars),
		})
	}
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseResponse decodes the model's JSON, tolerating a markdown code fence.
func parseResponse(content string, items []types.ScoredContentItem) (Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var r response
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &r); err != nil {
		return Result{}, fmt.Errorf("parsing analysis response: %w", err)
	}
	if strings.TrimSpace(r.Summary) == "" {
		return Result{}, fmt.Errorf("analysis response has no summary")
	}

	res := Result{
		Analysis: types.AIAnalysis{
			Summary:   strings.TrimSpace(r.Summary),
			Themes:    r.Themes,
			Sentiment: ParseSentiment(r.Sentiment),
		},
		Sentiments: make(map[string]types.Sentiment),
	}
	for _, s := range r.Items {
		if s.Index < 1 || s.Index > len(items) {
			continue
		}
		if sent := ParseSentiment(s.Sentiment); sent != "" {
			it := items[s.Index-1].Item
			res.Sentiments[credibility.SignalKey(it.Platform, it.ID)] = sent
		}
	}
	return res, nil
}

// ParseSentiment maps a model label to a Sentiment, "" when unrecognized.
func ParseSentiment(s string) types.Sentiment {
	switch types.Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case types.SentimentPositive:
		return types.SentimentPositive
	case types.SentimentNeutral, "mixed":
		return types.SentimentNeutral
	case types.SentimentNegative:
		return types.SentimentNegative
	default:
		return ""
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func nonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
