// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/social-search/internal/ranking"
	"github.com/pdiddy/social-search/pkg/types"
)

// ResponseFile is the on-disk form of a finished search. Saving one lets a
// result set be re-rendered later without calling any platform again.
type ResponseFile struct {
	Request  RequestParams         `yaml:"request"`
	Response *types.SearchResponse `yaml:"response"`
}

// RequestParams stores the request in a serializable form.
type RequestParams struct {
	Query     string   `yaml:"query"`
	Platforms []string `yaml:"platforms,omitempty"`
	TimeRange string   `yaml:"time_range,omitempty"`
	Sort      string   `yaml:"sort,omitempty"`
	Limit     int      `yaml:"limit,omitempty"`
	Analyze   bool     `yaml:"analyze,omitempty"`
}

// WriteResponseFile saves a request and its response to a YAML file.
func WriteResponseFile(path string, req Request, resp *types.SearchResponse) error {
	rf := ResponseFile{
		Request: RequestParams{
			Query:     req.Query,
			TimeRange: req.TimeRange,
			Sort:      string(req.Sort),
			Limit:     req.Limit,
			Analyze:   req.Analyze,
		},
		Response: resp,
	}
	for _, p := range req.Platforms {
		rf.Request.Platforms = append(rf.Request.Platforms, string(p))
	}

	data, err := yaml.Marshal(&rf)
	if err != nil {
		return fmt.Errorf("marshaling response file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadResponseFile loads a previously saved response file.
func ReadResponseFile(path string) (*ResponseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading response file: %w", err)
	}
	var rf ResponseFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing response file: %w", err)
	}
	if rf.Response == nil {
		return nil, fmt.Errorf("response file %s has no response", path)
	}
	return &rf, nil
}

// ToRequest converts stored parameters back into a Request.
func (p RequestParams) ToRequest() (Request, error) {
	req := Request{
		Query:     p.Query,
		TimeRange: p.TimeRange,
		Sort:      ranking.Strategy(p.Sort),
		Limit:     p.Limit,
		Analyze:   p.Analyze,
	}
	for _, s := range p.Platforms {
		pl, err := types.ParsePlatform(s)
		if err != nil {
			return req, err
		}
		req.Platforms = append(req.Platforms, pl)
	}
	return req, nil
}
