// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ranking computes engagement, recency and final scores for a batch
// of credibility-scored items and orders them by a sort strategy.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/social-search/pkg/types"
)

// Final score weights.
const (
	WeightCredibility = 0.4
	WeightEngagement  = 0.3
	WeightRecency     = 0.3
)

// RecencyWindow is the age at which the recency score reaches zero.
const RecencyWindow = 7 * 24 * time.Hour

// VerifiedOnlyThreshold is the credibility an unmatched item needs to pass
// the verified-only filter.
const VerifiedOnlyThreshold = 0.70

// Strategy selects how a ranked batch is ordered.
type Strategy string

const (
	SortRelevance    Strategy = "relevance"
	SortRecent       Strategy = "recent"
	SortEngaged      Strategy = "engaged"
	SortVerifiedOnly Strategy = "verified"
)

// ParseStrategy maps a user-supplied name to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relevance":
		return SortRelevance, nil
	case "recent":
		return SortRecent, nil
	case "engaged":
		return SortEngaged, nil
	case "verified", "verified-only", "verified_only":
		return SortVerifiedOnly, nil
	default:
		return "", fmt.Errorf("unknown sort strategy %q (want relevance, recent, engaged, or verified)", s)
	}
}

// RawEngagement weights deeper interactions higher:
// likes + 2*comments + 3*shares.
func RawEngagement(e types.Engagement) int64 {
	return e.Likes + 2*e.Comments + 3*e.Shares
}

// EngagementScore normalizes an item's raw engagement against the batch
// maximum; the result is in [0, 1].
func EngagementScore(item types.ContentItem, maxRaw int64) float64 {
	if maxRaw < 1 {
		maxRaw = 1
	}
	return math.Min(1, float64(RawEngagement(item.Engagement))/float64(maxRaw))
}

// RecencyScore decays linearly from 1 at now to 0 at RecencyWindow old.
// Future timestamps score 1.
func RecencyScore(createdAt, now time.Time) float64 {
	ageHours := now.Sub(createdAt).Hours()
	score := 1 - ageHours/RecencyWindow.Hours()
	return math.Max(0, math.Min(1, score))
}

// FinalScore combines the three sub-scores with the package weights.
func FinalScore(credibility, engagement, recency float64) float64 {
	return WeightCredibility*credibility + WeightEngagement*engagement + WeightRecency*recency
}

// Ranker scores batches against a clock.
type Ranker struct {
	Now func() time.Time
}

func (r Ranker) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// ScoreBatch returns a copy of items with ranking scores filled in. The
// batch maximum raw engagement is computed once, floored at 1.
func (r Ranker) ScoreBatch(items []types.ScoredContentItem) []types.ScoredContentItem {
	now := r.now()
	var maxRaw int64 = 1
	for _, it := range items {
		if raw := RawEngagement(it.Item.Engagement); raw > maxRaw {
			maxRaw = raw
		}
	}

	out := make([]types.ScoredContentItem, len(items))
	for i, it := range items {
		eng := EngagementScore(it.Item, maxRaw)
		rec := RecencyScore(it.Item.CreatedAt, now)
		it.Scores = types.RankScores{
			Engagement: eng,
			Recency:    rec,
			Final:      FinalScore(it.Credibility.Score, eng, rec),
		}
		out[i] = it
	}
	return out
}

// Sort returns a new slice ordered (and, for SortVerifiedOnly, filtered)
// by strategy.
func Sort(items []types.ScoredContentItem, strategy Strategy) []types.ScoredContentItem {
	switch strategy {
	case SortRecent:
		return SortByRecent(items)
	case SortEngaged:
		return SortByEngaged(items)
	case SortVerifiedOnly:
		return VerifiedOnly(items)
	default:
		return SortByRelevance(items)
	}
}

// SortByRelevance orders by final score, highest first.
func SortByRelevance(items []types.ScoredContentItem) []types.ScoredContentItem {
	out := clone(items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Scores.Final != b.Scores.Final {
			return a.Scores.Final > b.Scores.Final
		}
		if a.Credibility.Score != b.Credibility.Score {
			return a.Credibility.Score > b.Credibility.Score
		}
		return identityLess(a, b)
	})
	return out
}

// SortByRecent orders by creation time, newest first, credibility breaking ties.
func SortByRecent(items []types.ScoredContentItem) []types.ScoredContentItem {
	out := clone(items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.After(b.Item.CreatedAt)
		}
		if a.Credibility.Score != b.Credibility.Score {
			return a.Credibility.Score > b.Credibility.Score
		}
		return identityLess(a, b)
	})
	return out
}

// SortByEngaged orders by raw engagement, highest first, credibility
// breaking ties.
func SortByEngaged(items []types.ScoredContentItem) []types.ScoredContentItem {
	out := clone(items)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ra, rb := RawEngagement(a.Item.Engagement), RawEngagement(b.Item.Engagement)
		if ra != rb {
			return ra > rb
		}
		if a.Credibility.Score != b.Credibility.Score {
			return a.Credibility.Score > b.Credibility.Score
		}
		return identityLess(a, b)
	})
	return out
}

// VerifiedOnly keeps registry matches and items with credibility of at
// least VerifiedOnlyThreshold, ordered by relevance.
func VerifiedOnly(items []types.ScoredContentItem) []types.ScoredContentItem {
	var kept []types.ScoredContentItem
	for _, it := range items {
		if it.Credibility.RegistryMatch() || it.Credibility.Score >= VerifiedOnlyThreshold {
			kept = append(kept, it)
		}
	}
	return SortByRelevance(kept)
}

// identityLess is the final deterministic tiebreak.
func identityLess(a, b types.ScoredContentItem) bool {
	if a.Item.Platform != b.Item.Platform {
		return a.Item.Platform < b.Item.Platform
	}
	return a.Item.ID < b.Item.ID
}

func clone(items []types.ScoredContentItem) []types.ScoredContentItem {
	out := make([]types.ScoredContentItem, len(items))
	copy(out, items)
	return out
}
