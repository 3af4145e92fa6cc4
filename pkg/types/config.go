package types

import "time"

// HTTPConfig holds shared HTTP settings used by every provider client.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "social-search/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// RetryConfig tunes the retry loop of one provider.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// BaseDelayMs is the exponential backoff base in milliseconds (default 1000).
	BaseDelayMs int `json:"base_delay_ms" yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
}

// BaseDelay returns BaseDelayMs as a duration.
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// ProviderConfig holds credentials and tuning for one platform client.
// Which credential fields are used depends on the platform's auth scheme.
type ProviderConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// BaseURL overrides the platform API root (tests, proxies, aggregators).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// AuthURL overrides the token endpoint root when it differs from BaseURL.
	AuthURL string `json:"auth_url,omitempty" yaml:"auth_url,omitempty" mapstructure:"auth_url"`

	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BearerToken  string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty" mapstructure:"bearer_token"`
	Username     string `json:"username,omitempty" yaml:"username,omitempty" mapstructure:"username"`
	Password     string `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`
	ClientID     string `json:"client_id,omitempty" yaml:"client_id,omitempty" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret,omitempty" mapstructure:"client_secret"`

	// MaxPages caps the bulk-fetch loop (default 3).
	MaxPages int `json:"max_pages" yaml:"max_pages" mapstructure:"max_pages"`

	// PageSize is the per-request result count, capped by each platform.
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`
}

// Configured reports whether the client should be built: it is enabled
// explicitly or some credential is present.
func (c ProviderConfig) Configured() bool {
	return c.Enabled || c.APIKey != "" || c.BearerToken != "" ||
		(c.Username != "" && c.Password != "") || (c.ClientID != "" && c.ClientSecret != "")
}

// ProvidersConfig groups the per-platform settings.
type ProvidersConfig struct {
	X           ProviderConfig `json:"x" yaml:"x" mapstructure:"x"`
	TikTok      ProviderConfig `json:"tiktok" yaml:"tiktok" mapstructure:"tiktok"`
	YouTube     ProviderConfig `json:"youtube" yaml:"youtube" mapstructure:"youtube"`
	Bluesky     ProviderConfig `json:"bluesky" yaml:"bluesky" mapstructure:"bluesky"`
	TruthSocial ProviderConfig `json:"truthsocial" yaml:"truthsocial" mapstructure:"truthsocial"`
	Reddit      ProviderConfig `json:"reddit" yaml:"reddit" mapstructure:"reddit"`
}

// For returns the settings of platform p.
func (c *ProvidersConfig) For(p Platform) *ProviderConfig {
	switch p {
	case PlatformX:
		return &c.X
	case PlatformTikTok:
		return &c.TikTok
	case PlatformYouTube:
		return &c.YouTube
	case PlatformBluesky:
		return &c.Bluesky
	case PlatformTruthSocial:
		return &c.TruthSocial
	case PlatformReddit:
		return &c.Reddit
	default:
		return nil
	}
}

// SearchConfig holds settings for the search pipeline.
type SearchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	Providers ProvidersConfig `json:"providers" yaml:"providers" mapstructure:"providers"`

	// ProviderTimeout is the deadline for one provider's whole search (default 30s).
	ProviderTimeout time.Duration `json:"provider_timeout" yaml:"provider_timeout" mapstructure:"provider_timeout"`

	// MaxResults caps the ranked result set (default 100).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// DefaultTimeRange is used when a request names none (default "7d").
	DefaultTimeRange string `json:"default_time_range" yaml:"default_time_range" mapstructure:"default_time_range"`

	// DefaultSort is used when a request names none (default "relevance").
	DefaultSort string `json:"default_sort" yaml:"default_sort" mapstructure:"default_sort"`

	// RegistryFile replaces the embedded curated source list when set.
	RegistryFile string `json:"registry_file,omitempty" yaml:"registry_file,omitempty" mapstructure:"registry_file"`
}

// AIConfig holds settings for the optional analysis step.
type AIConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Model is the chat model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL points at an OpenAI-compatible endpoint when set.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MinInterval is the minimum spacing between two calls (default 1s).
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval" mapstructure:"min_interval"`

	// MaxItems caps how many top results are sent for analysis (default 25).
	MaxItems int `json:"max_items" yaml:"max_items" mapstructure:"max_items"`
}

// Config is the top-level configuration.
type Config struct {
	Search   SearchConfig `json:"search" yaml:"search" mapstructure:"search"`
	Analysis AIConfig     `json:"analysis" yaml:"analysis" mapstructure:"analysis"`
}

// FillDefaults applies default values where none were provided.
func (c *Config) FillDefaults() {
	s := &c.Search
	if s.Timeout == 0 {
		s.Timeout = 15 * time.Second
	}
	if s.UserAgent == "" {
		s.UserAgent = "social-search/0.1"
	}
	if s.ProviderTimeout == 0 {
		s.ProviderTimeout = 30 * time.Second
	}
	if s.MaxResults == 0 {
		s.MaxResults = 100
	}
	if s.DefaultTimeRange == "" {
		s.DefaultTimeRange = "7d"
	}
	if s.DefaultSort == "" {
		s.DefaultSort = "relevance"
	}
	for _, p := range AllPlatforms {
		pc := s.Providers.For(p)
		if pc.MaxPages == 0 {
			pc.MaxPages = 3
		}
		if pc.Retry.MaxRetries == 0 {
			pc.Retry.MaxRetries = 3
		}
		if pc.Retry.BaseDelayMs == 0 {
			pc.Retry.BaseDelayMs = 1000
		}
	}

	if c.Analysis.Model == "" {
		c.Analysis.Model = "gpt-4o-mini"
	}
	if c.Analysis.MinInterval == 0 {
		c.Analysis.MinInterval = time.Second
	}
	if c.Analysis.MaxItems == 0 {
		c.Analysis.MaxItems = 25
	}
}
