// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the social-search pipeline:
// the canonical content record, credibility results, ranked wrappers, the
// search response contract, and configuration.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies an upstream social platform.
type Platform string

const (
	PlatformX           Platform = "x"
	PlatformTikTok      Platform = "tiktok"
	PlatformYouTube     Platform = "youtube"
	PlatformBluesky     Platform = "bluesky"
	PlatformTruthSocial Platform = "truthsocial"
	PlatformReddit      Platform = "reddit"
)

// AllPlatforms lists every supported platform in presentation order.
var AllPlatforms = []Platform{
	PlatformX,
	PlatformTikTok,
	PlatformYouTube,
	PlatformBluesky,
	PlatformTruthSocial,
	PlatformReddit,
}

// ParsePlatform maps a user-supplied name to a Platform. "twitter" is
// accepted as an alias for X.
func ParsePlatform(s string) (Platform, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "twitter" {
		name = string(PlatformX)
	}
	for _, p := range AllPlatforms {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Sentiment is a coarse polarity label set by a downstream analysis step.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Engagement holds interaction counts. All counts are non-negative. Views is
// nil on platforms that never expose a view count.
type Engagement struct {
	Likes    int64  `json:"likes" yaml:"likes"`
	Comments int64  `json:"comments" yaml:"comments"`
	Shares   int64  `json:"shares" yaml:"shares"`
	Views    *int64 `json:"views,omitempty" yaml:"views,omitempty"`
}

// AuthorMetadata carries whatever account signals the source platform
// exposes. Fields the platform does not provide stay nil or empty.
type AuthorMetadata struct {
	FollowersCount *int64 `json:"followers_count,omitempty" yaml:"followers_count,omitempty"`
	FollowingCount *int64 `json:"following_count,omitempty" yaml:"following_count,omitempty"`
	AccountAgeDays *int   `json:"account_age_days,omitempty" yaml:"account_age_days,omitempty"`
	IsVerified     *bool  `json:"is_verified,omitempty" yaml:"is_verified,omitempty"`
	Bio            string `json:"bio,omitempty" yaml:"bio,omitempty"`
	ProfileURL     string `json:"profile_url,omitempty" yaml:"profile_url,omitempty"`
	InferredGender string `json:"inferred_gender,omitempty" yaml:"inferred_gender,omitempty"`
	Pronouns       string `json:"pronouns,omitempty" yaml:"pronouns,omitempty"`
}

// Verified reports whether the platform marks the account as verified.
// A nil receiver or an unset flag reports false.
func (m *AuthorMetadata) Verified() bool {
	return m != nil && m.IsVerified != nil && *m.IsVerified
}

// ContentItem is the canonical, platform-agnostic post/video/comment record.
// It is produced by a normalizer and never mutated afterwards.
type ContentItem struct {
	// ID is unique within the platform.
	ID string `json:"id" yaml:"id"`

	Text string `json:"text" yaml:"text"`

	AuthorName string `json:"author_name" yaml:"author_name"`

	// AuthorHandle carries the platform prefix convention, e.g. "@who" or "u/name".
	AuthorHandle string `json:"author_handle" yaml:"author_handle"`

	AuthorAvatarURL string `json:"author_avatar_url,omitempty" yaml:"author_avatar_url,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	Platform Platform `json:"platform" yaml:"platform"`

	Engagement Engagement `json:"engagement" yaml:"engagement"`

	URL string `json:"url" yaml:"url"`

	Thumbnail string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`

	Sentiment Sentiment `json:"sentiment,omitempty" yaml:"sentiment,omitempty"`

	Author *AuthorMetadata `json:"author,omitempty" yaml:"author,omitempty"`
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
