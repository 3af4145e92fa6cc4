// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry holds the curated index of authoritative sources. A
// Registry is built once and is read-only afterwards, so it is safe for
// concurrent lookups from any number of goroutines.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/social-search/pkg/types"
)

//go:embed sources.yaml
var curatedSources []byte

// Category base scores.
const (
	BaseOfficial   = 0.95
	BaseNews       = 0.90
	BaseJournalist = 0.85
	BaseExpert     = 0.80
)

// BaseScore maps a category to its base credibility score. Unrecognized
// categories score as expert.
func BaseScore(c types.Category) float64 {
	switch c {
	case types.CategoryOfficial:
		return BaseOfficial
	case types.CategoryNews:
		return BaseNews
	case types.CategoryJournalist:
		return BaseJournalist
	default:
		return BaseExpert
	}
}

// NormalizeHandle builds the lookup key form of a handle: trimmed,
// lowercased, without a leading "@" or Reddit "u/" prefix.
func NormalizeHandle(handle string) string {
	h := strings.ToLower(strings.TrimSpace(handle))
	h = strings.TrimPrefix(h, "@")
	h = strings.TrimPrefix(h, "u/")
	return h
}

type key struct {
	platform types.Platform
	handle   string
}

// Registry is an immutable (platform, handle) index of TierSources.
type Registry struct {
	index map[key]types.TierSource
}

// New indexes sources. Identifiers are normalized; a duplicate
// (platform, identifier) pair, an entry without one, or a category outside
// official/news/journalist/expert is an error.
func New(sources []types.TierSource) (*Registry, error) {
	r := &Registry{index: make(map[key]types.TierSource, len(sources))}
	for i, s := range sources {
		s.Identifier = NormalizeHandle(s.Identifier)
		if s.Identifier == "" {
			return nil, fmt.Errorf("source %d: empty identifier", i)
		}
		p, err := types.ParsePlatform(string(s.Platform))
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, s.Identifier, err)
		}
		s.Platform = p
		s.Category = types.Category(strings.ToLower(strings.TrimSpace(string(s.Category))))
		switch s.Category {
		case types.CategoryOfficial, types.CategoryNews, types.CategoryJournalist, types.CategoryExpert:
		default:
			return nil, fmt.Errorf("source %d (%s): unknown category %q", i, s.Identifier, s.Category)
		}

		k := key{platform: s.Platform, handle: s.Identifier}
		if _, dup := r.index[k]; dup {
			return nil, fmt.Errorf("duplicate source %s/%s", s.Platform, s.Identifier)
		}
		r.index[k] = s
	}
	return r, nil
}

type sourceFile struct {
	Sources []types.TierSource `yaml:"sources"`
}

// Parse builds a Registry from a YAML document with a top-level "sources" list.
func Parse(data []byte) (*Registry, error) {
	var f sourceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	return New(f.Sources)
}

// LoadFile reads a registry YAML file from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	return Parse(data)
}

// Default returns the registry built from the embedded curated list.
func Default() (*Registry, error) {
	return Parse(curatedSources)
}

// Lookup finds the curated source for a handle on a platform. The match is
// case-insensitive and ignores a leading "@".
func (r *Registry) Lookup(platform types.Platform, handle string) (types.TierSource, bool) {
	if r == nil {
		return types.TierSource{}, false
	}
	s, ok := r.index[key{platform: platform, handle: NormalizeHandle(handle)}]
	return s, ok
}

// Len returns the number of indexed sources.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.index)
}

// Sources returns a copy of every entry sorted by platform then identifier.
func (r *Registry) Sources() []types.TierSource {
	if r == nil {
		return nil
	}
	out := make([]types.TierSource, 0, len(r.index))
	for _, s := range r.index {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}
