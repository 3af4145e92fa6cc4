// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/social-search/pkg/types"
)

var (
	testID    = Required("id", "id.videoId", "id")
	testText  = Required("text", "text", "body")
	testLikes = Field("likes", "stats.likes", "like_count")
	testViews = Field("views", "stats.views")
	testTime  = Field("created_at", "created_at", "ts")
)

func decodeTest(it *Item) types.ContentItem {
	return types.ContentItem{
		ID:        it.String(testID),
		Text:      it.String(testText),
		CreatedAt: it.Time(testTime),
		Engagement: types.Engagement{
			Likes: it.Count(testLikes),
			Views: it.OptionalCount(testViews),
		},
	}
}

func raws(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func TestRunVariantPriority(t *testing.T) {
	n := Normalizer{Platform: types.PlatformYouTube}
	items, gaps := n.Run(raws(
		`{"id":{"videoId":"abc"},"text":"hello","like_count":"12"}`,
		`{"id":"def","body":"legacy body","stats":{"likes":3,"views":40}}`,
	), decodeTest)

	require.Empty(t, gaps)
	require.Len(t, items, 2)
	assert.Equal(t, "abc", items[0].ID)
	assert.Equal(t, int64(12), items[0].Engagement.Likes)
	assert.Nil(t, items[0].Engagement.Views, "views stays absent when never exposed")
	assert.Equal(t, "def", items[1].ID)
	assert.Equal(t, "legacy body", items[1].Text)
	require.NotNil(t, items[1].Engagement.Views)
	assert.Equal(t, int64(40), *items[1].Engagement.Views)
	assert.Equal(t, types.PlatformYouTube, items[1].Platform)
}

func TestRunDropsOnlyMalformedItems(t *testing.T) {
	n := Normalizer{Platform: types.PlatformX}
	items, gaps := n.Run(raws(
		`{"id":"1","text":"ok"}`,
		`{"id":"2"}`,
		`not json`,
		`{"unexpected":{"shape":true}}`,
		`{"id":"5","text":"also ok"}`,
	), decodeTest)

	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].ID)
	assert.Equal(t, "5", items[1].ID)

	require.Len(t, gaps, 3)
	assert.Equal(t, 1, gaps[0].Index)
	assert.Equal(t, "2", gaps[0].ID)
	assert.Contains(t, gaps[0].Reason, "text")
	assert.Contains(t, gaps[1].Reason, "undecodable")
	assert.Equal(t, "unrecognized payload shape", gaps[2].Reason)
}

func TestCountsNeverNegative(t *testing.T) {
	n := Normalizer{Platform: types.PlatformReddit}
	items, _ := n.Run(raws(`{"id":"1","text":"t","like_count":-4}`), decodeTest)
	require.Len(t, items, 1)
	assert.Equal(t, int64(0), items[0].Engagement.Likes)
}

func TestTimeVariants(t *testing.T) {
	want := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
	}{
		{"rfc3339", `{"id":"1","text":"t","created_at":"2026-02-03T04:05:06Z"}`},
		{"millis z", `{"id":"1","text":"t","created_at":"2026-02-03T04:05:06.000Z"}`},
		{"unix seconds", `{"id":"1","text":"t","ts":1770091506}`},
		{"unix float", `{"id":"1","text":"t","ts":1770091506.0}`},
		{"unix millis", `{"id":"1","text":"t","ts":1770091506000}`},
		{"numeric string", `{"id":"1","text":"t","ts":"1770091506"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, gaps := Normalizer{Platform: types.PlatformX}.Run(raws(tt.raw), decodeTest)
			require.Empty(t, gaps)
			assert.True(t, want.Equal(items[0].CreatedAt), "got %s", items[0].CreatedAt)
		})
	}
}

func TestFieldsGet(t *testing.T) {
	f, err := Decode(json.RawMessage(`{"a":{"b":[{"c":"x"}]},"n":null}`))
	require.NoError(t, err)

	v, ok := f.Get("a.b.0.c")
	require.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = f.Get("a.b.1.c")
	assert.False(t, ok)
	_, ok = f.Get("n")
	assert.False(t, ok, "null counts as absent")
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	_, err := Decode(json.RawMessage(`null`))
	assert.Error(t, err)
	_, err = Decode(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestOptionalBool(t *testing.T) {
	f, err := Decode(json.RawMessage(`{"verified":true,"legacy":"false"}`))
	require.NoError(t, err)
	it := NewItem(f, nil)

	v := it.OptionalBool(Field("verified", "verified"))
	require.NotNil(t, v)
	assert.True(t, *v)

	legacy := it.OptionalBool(Field("legacy", "legacy"))
	require.NotNil(t, legacy)
	assert.False(t, *legacy)

	assert.Nil(t, it.OptionalBool(Field("missing", "nope")))
}

func TestStripHTML(t *testing.T) {
	in := `<p>Breaking: <a href="https://x.test">link</a> &amp; more</p><p>Second<br/>line</p>`
	assert.Equal(t, "Breaking: link & more\nSecond\nline", StripHTML(in))
	assert.Equal(t, "", StripHTML("  "))
}

func TestStripHTMLAttributesAndScripts(t *testing.T) {
	in := `<p><a href="https://x.test/?a>b" title="1 > 0">quoted</a></p>` +
		`<script>var x = "<p>hidden</p>";</script><style>p { color: red }</style>` +
		`<p>kept &lt;tag&gt;</p>`
	assert.Equal(t, "quoted\nkept <tag>", StripHTML(in))
}

func TestHandle(t *testing.T) {
	assert.Equal(t, "@who", Handle("@", "@who"))
	assert.Equal(t, "u/spez", Handle("u/", "spez"))
	assert.Equal(t, "u/spez", Handle("u/", "u/spez"))
	assert.Equal(t, "", Handle("@", " "))
}

func TestJoinText(t *testing.T) {
	assert.Equal(t, "Title\n\nBody", JoinText("Title", " ", "Body"))
	assert.Equal(t, "Body", JoinText("", "Body"))
}
