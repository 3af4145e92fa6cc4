// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Category is the editorial trust category of a registry source.
type Category string

const (
	CategoryOfficial   Category = "official"
	CategoryNews       Category = "news"
	CategoryJournalist Category = "journalist"
	CategoryExpert     Category = "expert"
)

// TierSource is one curated registry entry. The pair (Platform, Identifier)
// is unique across a registry.
type TierSource struct {
	// Identifier is the lowercase handle without a leading "@".
	Identifier string `json:"identifier" yaml:"identifier"`

	Platform Platform `json:"platform" yaml:"platform"`

	Category Category `json:"category" yaml:"category"`

	DisplayName string `json:"display_name" yaml:"display_name"`

	Region string `json:"region" yaml:"region"`

	VerifiedAt time.Time `json:"verified_at" yaml:"verified_at"`
}

// Tier is the credibility tier shown next to a content item.
type Tier string

const (
	TierOfficial   Tier = "official"
	TierNews       Tier = "news"
	TierJournalist Tier = "journalist"
	TierExpert     Tier = "expert"
	TierVerified   Tier = "verified"
	TierUnknown    Tier = "unknown"
)

// Badge is a short label summarizing why an item earned its tier.
type Badge string

const (
	BadgeNone              Badge = ""
	BadgeSourced           Badge = "Sourced"
	BadgeAdditionalContext Badge = "Additional context"
	BadgeOfficial          Badge = "Official"
	BadgeNews              Badge = "News"
	BadgeJournalist        Badge = "Journalist"
	BadgeExpert            Badge = "Expert"
	BadgeVerified          Badge = "Verified"
)

// Adjustment is one signal applied on top of the base score.
type Adjustment struct {
	Signal string  `json:"signal" yaml:"signal"`
	Delta  float64 `json:"delta" yaml:"delta"`
}

// ScoreBreakdown records how a credibility score was assembled.
type ScoreBreakdown struct {
	// BaseSource names where the base score came from: "registry",
	// "platform_verified", or a signal-strength bucket name.
	BaseSource  string       `json:"base_source" yaml:"base_source"`
	Base        float64      `json:"base" yaml:"base"`
	Adjustments []Adjustment `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`
	// Raw is base plus adjustments before clamping.
	Raw float64 `json:"raw" yaml:"raw"`
}

// CredibilityResult is the output of the scoring engine for one item.
type CredibilityResult struct {
	// Score is clamped to [0.05, 1.0].
	Score     float64        `json:"score" yaml:"score"`
	Tier      Tier           `json:"tier" yaml:"tier"`
	Badge     Badge          `json:"badge,omitempty" yaml:"badge,omitempty"`
	Breakdown ScoreBreakdown `json:"breakdown" yaml:"breakdown"`

	// Source is the matched registry entry, nil when the author is not curated.
	Source *TierSource `json:"source,omitempty" yaml:"source,omitempty"`
}

// RegistryMatch reports whether the author matched a curated registry entry.
func (r CredibilityResult) RegistryMatch() bool {
	return r.Source != nil
}
