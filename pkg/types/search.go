// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RankScores are the ranking sub-scores computed for one item in a batch.
type RankScores struct {
	Engagement float64 `json:"engagement" yaml:"engagement"`
	Recency    float64 `json:"recency" yaml:"recency"`
	Final      float64 `json:"final" yaml:"final"`
}

// Ranked wraps a domain value with its credibility result and ranking
// scores, leaving the wrapped value untouched.
type Ranked[T any] struct {
	Item        T                 `json:"item" yaml:"item"`
	Credibility CredibilityResult `json:"credibility" yaml:"credibility"`
	Scores      RankScores        `json:"scores" yaml:"scores"`
}

// ScoredContentItem is a ContentItem with its credibility and ranking scores.
// It lives for one search request only.
type ScoredContentItem = Ranked[ContentItem]

// PlatformError reports one platform that failed during a search.
type PlatformError struct {
	Platform Platform `json:"platform" yaml:"platform"`
	Error    string   `json:"error" yaml:"error"`
}

// SearchSummary holds result counts.
type SearchSummary struct {
	Total       int               `json:"total" yaml:"total"`
	ByPlatform  map[Platform]int  `json:"by_platform" yaml:"by_platform"`
	BySentiment map[Sentiment]int `json:"by_sentiment" yaml:"by_sentiment"`

	// DuplicatesRemoved counts repeated (platform, id) pairs dropped before ranking.
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`
}

// CredibilitySummary aggregates credibility over the returned items.
type CredibilitySummary struct {
	AverageScore     float64 `json:"average_score" yaml:"average_score"`
	RegistrySources  int     `json:"registry_sources" yaml:"registry_sources"`
	PlatformVerified int     `json:"platform_verified" yaml:"platform_verified"`
}

// AIAnalysis is produced by the optional external summarization step.
type AIAnalysis struct {
	Summary   string    `json:"summary" yaml:"summary"`
	Themes    []string  `json:"themes,omitempty" yaml:"themes,omitempty"`
	Sentiment Sentiment `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`
	Model     string    `json:"model,omitempty" yaml:"model,omitempty"`
}

// SearchResponse is the contract handed to the presentation layer.
type SearchResponse struct {
	RequestID   string              `json:"request_id" yaml:"request_id"`
	Query       string              `json:"query" yaml:"query"`
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at"`
	Results     []ScoredContentItem `json:"results" yaml:"results"`
	Summary     SearchSummary       `json:"summary" yaml:"summary"`
	Credibility CredibilitySummary  `json:"credibility" yaml:"credibility"`
	Analysis    *AIAnalysis         `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Errors      []PlatformError     `json:"errors" yaml:"errors"`
	Warnings    []string            `json:"warnings" yaml:"warnings"`
}
