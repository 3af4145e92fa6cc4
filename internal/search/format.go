// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/social-search/pkg/types"
)

// FormatTable writes a human-readable table of the response to w.
func FormatTable(resp *types.SearchResponse, w io.Writer) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		fmt.Fprintf(w, "%-4s  %-11s  %-20s  %-50s  %-5s  %-5s  %s\n",
			"Rank", "Platform", "Author", "Text", "Cred", "Score", "Tier")
		fmt.Fprintln(w, strings.Repeat("-", 115))

		for i, r := range resp.Results {
			text := truncate(strings.Join(strings.Fields(r.Item.Text), " "), 50)
			fmt.Fprintf(w, "%-4d  %-11s  %-20s  %-50s  %-5.2f  %-5.2f  %s\n",
				i+1, r.Item.Platform, truncate(r.Item.AuthorHandle, 20), text,
				r.Credibility.Score, r.Scores.Final, r.Credibility.Tier)
		}
	}

	fmt.Fprintf(w, "\n%d results", resp.Summary.Total)
	if len(resp.Summary.ByPlatform) > 0 {
		fmt.Fprintf(w, " (%s)", platformCounts(resp.Summary.ByPlatform))
	}
	if resp.Summary.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, ", %d duplicates removed", resp.Summary.DuplicatesRemoved)
	}
	fmt.Fprintln(w)
	if resp.Summary.Total > 0 {
		fmt.Fprintf(w, "average credibility %.2f, %d curated sources, %d verified accounts\n",
			resp.Credibility.AverageScore, resp.Credibility.RegistrySources, resp.Credibility.PlatformVerified)
	}

	if a := resp.Analysis; a != nil {
		fmt.Fprintf(w, "\nAnalysis: %s\n", a.Summary)
		if len(a.Themes) > 0 {
			fmt.Fprintf(w, "Themes: %s\n", strings.Join(a.Themes, ", "))
		}
	}
	for _, e := range resp.Errors {
		fmt.Fprintf(w, "error: %s: %s\n", e.Platform, e.Error)
	}
	for _, warn := range resp.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}

// FormatJSON writes the response as indented JSON to w.
func FormatJSON(resp *types.SearchResponse, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// FormatYAML writes the response as YAML to w.
func FormatYAML(resp *types.SearchResponse, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func platformCounts(m map[types.Platform]int) string {
	keys := make([]string, 0, len(m))
	for p := range m {
		keys = append(keys, string(p))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, m[types.Platform(k)])
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
