// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/social-search/internal/analysis"
	"github.com/pdiddy/social-search/internal/credibility"
	"github.com/pdiddy/social-search/internal/provider"
	"github.com/pdiddy/social-search/internal/ranking"
	"github.com/pdiddy/social-search/internal/registry"
	"github.com/pdiddy/social-search/internal/search"
	"github.com/pdiddy/social-search/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search social platforms and rank results by credibility",
	Long: `Search sends the query to every configured platform in parallel. The query
accepts AND, OR, NOT, parentheses and quoted phrases. Platforms that fail are
reported next to the results of those that succeeded.`,
	Example: `  social-search search "measles outbreak" --range 24h
  social-search search 'vaccine AND "side effects" NOT rumor' --platforms x,bluesky --sort recent
  social-search search fed rates --sort verified --json`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("query", "", "search query (alternative to positional arguments)")
	searchCmd.Flags().StringSlice("platforms", nil, "platforms to search (default: every configured platform)")
	searchCmd.Flags().String("range", "", "relative time range, e.g. 24h, 7d, 3m (default 7d)")
	searchCmd.Flags().String("sort", "", "relevance, recent, engaged or verified (default relevance)")
	searchCmd.Flags().Int("limit", 0, "maximum number of results (default 100)")
	searchCmd.Flags().Bool("analyze", false, "summarize results with the configured LLM")
	searchCmd.Flags().String("registry", "", "curated source registry YAML (default: embedded list)")
	searchCmd.Flags().Bool("json", false, "output the response as JSON")
	searchCmd.Flags().Bool("yaml", false, "output the response as YAML")
	searchCmd.Flags().String("save", "", "also write the request and response to this YAML file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req, err := searchRequest(cmd, args, cfg)
	if err != nil {
		return err
	}

	registryFile, _ := cmd.Flags().GetString("registry")
	reg, err := loadRegistry(registryFile, cfg.Search.RegistryFile)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, reg, req.Analyze)
	if err != nil {
		return err
	}

	resp, err := engine.Search(cmd.Context(), req)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := search.WriteResponseFile(path, req, resp); err != nil {
			return err
		}
		slog.Info("saved response", "path", path)
	}
	return render(cmd, resp, os.Stdout)
}

func searchRequest(cmd *cobra.Command, args []string, cfg types.Config) (search.Request, error) {
	q, _ := cmd.Flags().GetString("query")
	if q == "" {
		q = strings.Join(args, " ")
	}
	req := search.Request{Query: q}

	names, _ := cmd.Flags().GetStringSlice("platforms")
	for _, n := range names {
		p, err := types.ParsePlatform(n)
		if err != nil {
			return req, err
		}
		req.Platforms = append(req.Platforms, p)
	}

	req.TimeRange, _ = cmd.Flags().GetString("range")
	sort, _ := cmd.Flags().GetString("sort")
	req.Sort = ranking.Strategy(sort)
	req.Limit, _ = cmd.Flags().GetInt("limit")

	req.Analyze = cfg.Analysis.Enabled
	if cmd.Flags().Changed("analyze") {
		req.Analyze, _ = cmd.Flags().GetBool("analyze")
	}
	return req, nil
}

func loadRegistry(flagPath, cfgPath string) (*registry.Registry, error) {
	path := flagPath
	if path == "" {
		path = cfgPath
	}
	if path == "" {
		return registry.Default()
	}
	return registry.LoadFile(path)
}

func newEngine(cfg types.Config, reg *registry.Registry, analyze bool) (*search.Engine, error) {
	deps := provider.Deps{
		HTTPClient: &http.Client{Timeout: cfg.Search.Timeout},
		UserAgent:  cfg.Search.UserAgent,
		Logger:     slog.Default(),
	}
	providers, err := provider.FromConfig(cfg.Search.Providers, deps)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no platforms configured: set credentials in the config file, environment or secrets directory")
	}

	engine := &search.Engine{
		Providers:        providers,
		Scorer:           credibility.NewScorer(reg),
		ProviderTimeout:  cfg.Search.ProviderTimeout,
		MaxResults:       cfg.Search.MaxResults,
		DefaultTimeRange: cfg.Search.DefaultTimeRange,
		DefaultSort:      ranking.Strategy(cfg.Search.DefaultSort),
		Logger:           slog.Default(),
	}
	if analyze {
		a, err := analysis.NewOpenAI(cfg.Analysis, slog.Default())
		if err != nil {
			return nil, err
		}
		engine.Analyzer = a
	}
	return engine, nil
}

func render(cmd *cobra.Command, resp *types.SearchResponse, w io.Writer) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")
	switch {
	case asJSON:
		return search.FormatJSON(resp, w)
	case asYAML:
		return search.FormatYAML(resp, w)
	default:
		search.FormatTable(resp, w)
		return nil
	}
}
