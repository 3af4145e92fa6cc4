// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package credibility scores content items: a base score from the curated
// registry, platform verification, or account signal strength, plus
// additive signal adjustments, clamped to [MinScore, MaxScore].
package credibility

import (
	"math"

	"github.com/pdiddy/social-search/internal/registry"
	"github.com/pdiddy/social-search/pkg/types"
)

// Score bounds. The floor keeps every item visible.
const (
	MinScore = 0.05
	MaxScore = 1.0
)

// Base scores outside the registry.
const (
	BaseVerified = 0.45
	BaseFlagged  = 0.05
	BaseStrong   = 0.40
	BaseMixed    = 0.30
	BaseWeak     = 0.25
	BaseUnknown  = 0.20
)

// CrossReference is the outcome of an independent cross-check.
type CrossReference int

const (
	CrossRefNone CrossReference = iota
	CrossRefSupported
	CrossRefDisputed
)

// Signals are caller-supplied content-analysis and cross-reference results.
// The zero value means nothing is known.
type Signals struct {
	HasCitations        bool
	HasNamedSources     bool
	HasMethodology      bool
	BotLikePattern      bool
	NoAttribution       bool
	Sensationalist      bool
	KnownDisinformation bool
	CrossReference      CrossReference
}

// Scorer computes CredibilityResults against a registry.
type Scorer struct {
	registry *registry.Registry
}

// NewScorer returns a Scorer backed by reg. A nil registry matches nothing.
func NewScorer(reg *registry.Registry) *Scorer {
	return &Scorer{registry: reg}
}

// accountFacts are the author signals the rules read, resolved once.
type accountFacts struct {
	verified   bool
	ageDays    *int
	followers  *int64
	ratio      float64
	ratioKnown bool
}

func factsOf(item types.ContentItem) accountFacts {
	a := item.Author
	f := accountFacts{verified: a.Verified()}
	if a == nil {
		return f
	}
	f.ageDays = a.AccountAgeDays
	f.followers = a.FollowersCount
	if a.FollowersCount != nil && a.FollowingCount != nil {
		followers, following := *a.FollowersCount, *a.FollowingCount
		switch {
		case following > 0:
			f.ratio = float64(followers) / float64(following)
			f.ratioKnown = true
		case followers > 0:
			// Following nobody: the ratio is unbounded.
			f.ratio = float64(followers)
			f.ratioKnown = true
		}
	}
	return f
}

// Score rates one item. It never mutates the item.
func (s *Scorer) Score(item types.ContentItem, sig Signals) types.CredibilityResult {
	facts := factsOf(item)

	var res types.CredibilityResult
	if src, ok := s.registry.Lookup(item.Platform, item.AuthorHandle); ok {
		res.Source = &src
		res.Breakdown.BaseSource = "registry"
		res.Breakdown.Base = registry.BaseScore(src.Category)
	} else if facts.verified {
		res.Breakdown.BaseSource = "platform_verified"
		res.Breakdown.Base = BaseVerified
	} else {
		res.Breakdown.BaseSource, res.Breakdown.Base = signalBucket(facts, sig)
	}

	res.Breakdown.Adjustments = adjustments(facts, sig, res.Breakdown.BaseSource == "platform_verified")

	raw := res.Breakdown.Base
	for _, a := range res.Breakdown.Adjustments {
		raw += a.Delta
	}
	// Rounded so float noise cannot flip a tier threshold.
	res.Breakdown.Raw = math.Round(raw*1e6) / 1e6
	res.Score = clamp(res.Breakdown.Raw)
	res.Tier = tierOf(res, facts.verified)
	res.Badge = badgeOf(res, facts.verified, sig)
	return res
}

// signalBucket picks the heuristic base for unmatched, unverified authors.
func signalBucket(f accountFacts, sig Signals) (string, float64) {
	positives := 0
	if f.ageDays != nil && *f.ageDays > 365 {
		positives++
	}
	if f.followers != nil && *f.followers > 10_000 {
		positives++
	}
	if f.ratioKnown && f.ratio > 1 {
		positives++
	}
	if sig.HasCitations {
		positives++
	}
	if sig.HasNamedSources {
		positives++
	}

	negatives := 0
	if sig.BotLikePattern {
		negatives += 2
	}
	if sig.KnownDisinformation {
		negatives += 3
	}
	if sig.NoAttribution {
		negatives++
	}
	if sig.Sensationalist {
		negatives++
	}

	switch {
	case negatives >= 2:
		return "flagged", BaseFlagged
	case positives >= 3:
		return "strong", BaseStrong
	case positives >= 1:
		return "mixed", BaseMixed
	case negatives >= 1:
		return "weak", BaseWeak
	default:
		return "unknown", BaseUnknown
	}
}

func adjustments(f accountFacts, sig Signals, verifiedBase bool) []types.Adjustment {
	var out []types.Adjustment
	add := func(signal string, delta float64) {
		out = append(out, types.Adjustment{Signal: signal, Delta: delta})
	}

	if f.ageDays != nil && *f.ageDays > 2*365 {
		add("account_age_over_2y", 0.05)
	}
	if f.followers != nil {
		switch {
		case *f.followers >= 1_000_000:
			add("followers_1m", 0.08)
		case *f.followers >= 100_000:
			add("followers_100k", 0.05)
		}
	}
	if f.verified && !verifiedBase {
		add("platform_verified", 0.03)
	}
	if f.ratioKnown && f.ratio > 10 {
		add("follower_ratio_high", 0.05)
	}
	if sig.HasCitations {
		add("has_citations", 0.10)
	}
	if sig.HasNamedSources {
		add("has_named_sources", 0.05)
	}
	if sig.HasMethodology {
		add("has_methodology", 0.05)
	}
	switch sig.CrossReference {
	case CrossRefSupported:
		add("cross_reference_supported", 0.15)
	case CrossRefDisputed:
		add("cross_reference_disputed", -0.25)
	}
	if sig.BotLikePattern {
		add("bot_like_pattern", -0.20)
	}
	if sig.NoAttribution {
		add("no_attribution", -0.15)
	}
	if sig.Sensationalist {
		add("sensationalist", -0.10)
	}
	if sig.KnownDisinformation {
		add("known_disinformation", -0.30)
	}
	if f.ratioKnown && f.ratio < 0.1 {
		add("follower_ratio_low", -0.05)
	}
	if f.ageDays != nil && *f.ageDays < 30 {
		add("account_age_under_30d", -0.05)
	}
	return out
}

func clamp(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func tierOf(res types.CredibilityResult, verified bool) types.Tier {
	switch {
	case res.Source != nil:
		return types.Tier(res.Source.Category)
	case verified && res.Score >= BaseVerified:
		return types.TierVerified
	case res.Score >= 0.80:
		return types.TierExpert
	case res.Score >= 0.60:
		return types.TierVerified
	default:
		return types.TierUnknown
	}
}

var categoryBadges = map[types.Category]types.Badge{
	types.CategoryOfficial:   types.BadgeOfficial,
	types.CategoryNews:       types.BadgeNews,
	types.CategoryJournalist: types.BadgeJournalist,
	types.CategoryExpert:     types.BadgeExpert,
}

func badgeOf(res types.CredibilityResult, verified bool, sig Signals) types.Badge {
	switch {
	case sig.CrossReference == CrossRefSupported:
		return types.BadgeSourced
	case sig.CrossReference == CrossRefDisputed:
		return types.BadgeAdditionalContext
	case res.Source != nil:
		if b, ok := categoryBadges[res.Source.Category]; ok {
			return b
		}
		return types.BadgeExpert
	case verified:
		return types.BadgeVerified
	default:
		return types.BadgeNone
	}
}

// SignalKey identifies an item in a signals map across platforms.
func SignalKey(p types.Platform, id string) string {
	return string(p) + ":" + id
}

// ScoreAll wraps every item with its credibility result. Signals are looked
// up by SignalKey; items without an entry are scored with zero Signals.
func (s *Scorer) ScoreAll(items []types.ContentItem, signals map[string]Signals) []types.ScoredContentItem {
	out := make([]types.ScoredContentItem, len(items))
	for i, it := range items {
		out[i] = types.ScoredContentItem{
			Item:        it,
			Credibility: s.Score(it, signals[SignalKey(it.Platform, it.ID)]),
		}
	}
	return out
}
