// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/social-search/internal/credibility"
	"github.com/pdiddy/social-search/pkg/types"
)

// --- Throttle ---

func TestThrottleSpacesSequentialCalls(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	var waits []time.Duration
	th := &Throttle{
		MinInterval: time.Second,
		Now:         func() time.Time { return now },
		Sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, th.Wait(context.Background()))
	}
	assert.Equal(t, []time.Duration{0, time.Second, 2 * time.Second}, waits)

	// Once the clock passes the last slot, the next call goes immediately.
	now = now.Add(10 * time.Second)
	assert.Equal(t, time.Duration(0), th.Reserve())
}

func TestThrottleConcurrentCallersGetDistinctSlots(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	th := &Throttle{MinInterval: 500 * time.Millisecond, Now: func() time.Time { return now }}

	var mu sync.Mutex
	var waits []time.Duration
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := th.Reserve()
			mu.Lock()
			waits = append(waits, d)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(waits, func(i, j int) bool { return waits[i] < waits[j] })
	for i, d := range waits {
		assert.Equal(t, time.Duration(i)*500*time.Millisecond, d)
	}
}

func TestThrottleWaitHonorsCancellation(t *testing.T) {
	th := NewThrottle(time.Hour)
	th.Reserve()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}

func TestThrottleCancelledWaitReleasesSlot(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	th := &Throttle{
		MinInterval: time.Second,
		Now:         func() time.Time { return now },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		},
	}
	assert.Equal(t, time.Duration(0), th.Reserve())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, th.Wait(ctx), context.Canceled)

	assert.Equal(t, time.Second, th.Reserve(), "the cancelled slot is reused")
}

// --- Analyzer ---

type fakeChat struct {
	req   openai.ChatCompletionRequest
	reply string
	err   error
	calls int
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Model: "gpt-4o-mini-2024-07-18",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

func sampleItems() []types.ScoredContentItem {
	return []types.ScoredContentItem{
		{
			Item:        types.ContentItem{ID: "1", Platform: types.PlatformX, AuthorHandle: "@who", Text: "New guidance   on\nmeasles vaccination"},
			Credibility: types.CredibilityResult{Tier: types.TierOfficial},
		},
		{
			Item:        types.ContentItem{ID: "a", Platform: types.PlatformReddit, AuthorHandle: "u/skeptic", Text: "I do not trust this"},
			Credibility: types.CredibilityResult{Tier: types.TierUnknown},
		},
	}
}

func testAnalyzer(chat ChatCompleter, maxItems int) *OpenAIAnalyzer {
	cfg := types.AIConfig{Model: "gpt-4o-mini", MaxItems: maxItems}
	return NewWithClient(chat, cfg, &Throttle{Sleep: func(context.Context, time.Duration) error { return nil }}, nil)
}

func TestAnalyzeParsesResponse(t *testing.T) {
	chat := &fakeChat{reply: "```json\n" + `{"summary":"Health agencies urge vaccination; some users are skeptical.",
		"themes":["measles","vaccination"],"sentiment":"mixed",
		"items":[{"index":1,"sentiment":"positive"},{"index":2,"sentiment":"NEGATIVE"},{"index":9,"sentiment":"positive"}]}` + "\n```"}

	res, err := testAnalyzer(chat, 25).Analyze(context.Background(), "measles", sampleItems())
	require.NoError(t, err)

	assert.Equal(t, "Health agencies urge vaccination; some users are skeptical.", res.Analysis.Summary)
	assert.Equal(t, []string{"measles", "vaccination"}, res.Analysis.Themes)
	assert.Equal(t, types.SentimentNeutral, res.Analysis.Sentiment)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", res.Analysis.Model)
	assert.Equal(t, map[string]types.Sentiment{
		credibility.SignalKey(types.PlatformX, "1"):      types.SentimentPositive,
		credibility.SignalKey(types.PlatformReddit, "a"): types.SentimentNegative,
	}, res.Sentiments)

	require.Len(t, chat.req.Messages, 1)
	prompt := chat.req.Messages[0].Content
	assert.Contains(t, prompt, `"measles"`)
	assert.Contains(t, prompt, "[1] (x, @who, official) New guidance on measles vaccination")
	assert.Contains(t, prompt, "[2] (reddit, u/skeptic, unknown) I do not trust this")
	assert.Equal(t, "gpt-4o-mini", chat.req.Model)
	require.NotNil(t, chat.req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, chat.req.ResponseFormat.Type)
}

func TestAnalyzeCapsItems(t *testing.T) {
	chat := &fakeChat{reply: `{"summary":"ok","items":[{"index":2,"sentiment":"positive"}]}`}
	res, err := testAnalyzer(chat, 1).Analyze(context.Background(), "measles", sampleItems())
	require.NoError(t, err)
	assert.NotContains(t, chat.req.Messages[0].Content, "[2]")
	assert.Empty(t, res.Sentiments, "indexes beyond the sent items are ignored")
}

func TestAnalyzeErrors(t *testing.T) {
	_, err := testAnalyzer(&fakeChat{}, 25).Analyze(context.Background(), "q", nil)
	assert.Error(t, err)

	chat := &fakeChat{err: errors.New("upstream down")}
	_, err = testAnalyzer(chat, 25).Analyze(context.Background(), "q", sampleItems())
	assert.ErrorContains(t, err, "upstream down")

	_, err = testAnalyzer(&fakeChat{reply: "not json"}, 25).Analyze(context.Background(), "q", sampleItems())
	assert.ErrorContains(t, err, "parsing analysis response")

	_, err = testAnalyzer(&fakeChat{reply: `{"summary":"  "}`}, 25).Analyze(context.Background(), "q", sampleItems())
	assert.ErrorContains(t, err, "no summary")
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(types.AIConfig{Model: "gpt-4o-mini"}, nil)
	assert.Error(t, err)

	a, err := NewOpenAI(types.AIConfig{Model: "gpt-4o-mini", APIKey: "sk-test", BaseURL: "http://localhost:1/v1", MinInterval: time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, a.throttle.MinInterval)
}

func TestParseSentiment(t *testing.T) {
	assert.Equal(t, types.SentimentPositive, ParseSentiment(" Positive "))
	assert.Equal(t, types.SentimentNeutral, ParseSentiment("mixed"))
	assert.Equal(t, types.SentimentNegative, ParseSentiment("negative"))
	assert.Equal(t, types.Sentiment(""), ParseSentiment("angry"))
}
