// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads platform credentials from a directory of plain-text
// files. The filename is the key name and the trimmed contents are the value,
// e.g. .secrets/x-bearer-token or .secrets/youtube-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/social-search/pkg/types"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "err", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// field returns the config field a secret file fills.
type field func(cfg *types.Config) *string

var fields = map[string]field{
	"x-bearer-token":            func(c *types.Config) *string { return &c.Search.Providers.X.BearerToken },
	"x-api-key":                 func(c *types.Config) *string { return &c.Search.Providers.X.APIKey },
	"tiktok-client-key":         func(c *types.Config) *string { return &c.Search.Providers.TikTok.ClientID },
	"tiktok-client-secret":      func(c *types.Config) *string { return &c.Search.Providers.TikTok.ClientSecret },
	"youtube-api-key":           func(c *types.Config) *string { return &c.Search.Providers.YouTube.APIKey },
	"bluesky-handle":            func(c *types.Config) *string { return &c.Search.Providers.Bluesky.Username },
	"bluesky-app-password":      func(c *types.Config) *string { return &c.Search.Providers.Bluesky.Password },
	"truthsocial-username":      func(c *types.Config) *string { return &c.Search.Providers.TruthSocial.Username },
	"truthsocial-password":      func(c *types.Config) *string { return &c.Search.Providers.TruthSocial.Password },
	"truthsocial-client-id":     func(c *types.Config) *string { return &c.Search.Providers.TruthSocial.ClientID },
	"truthsocial-client-secret": func(c *types.Config) *string { return &c.Search.Providers.TruthSocial.ClientSecret },
	"reddit-api-key":            func(c *types.Config) *string { return &c.Search.Providers.Reddit.APIKey },
	"openai-api-key":            func(c *types.Config) *string { return &c.Analysis.APIKey },
}

// Apply copies known secrets into cfg where the field is still empty, so
// values from the config file or environment win. It returns the applied
// key names, sorted. Unknown keys are ignored.
func Apply(cfg *types.Config, secrets map[string]string) []string {
	var applied []string
	for name, value := range secrets {
		f, ok := fields[name]
		if !ok {
			continue
		}
		if dst := f(cfg); *dst == "" {
			*dst = value
			applied = append(applied, name)
		}
	}
	sort.Strings(applied)
	return applied
}

// Known returns the recognized secret file names, sorted.
func Known() []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
