// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the social-search CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/social-search/internal/secrets"
	"github.com/pdiddy/social-search/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// envBindings maps config keys to the conventional variable names the
// platforms document, so a plain .env file works without the prefix.
var envBindings = map[string]string{
	"search.providers.x.bearer_token":            "X_BEARER_TOKEN",
	"search.providers.tiktok.client_id":          "TIKTOK_CLIENT_KEY",
	"search.providers.tiktok.client_secret":      "TIKTOK_CLIENT_SECRET",
	"search.providers.youtube.api_key":           "YOUTUBE_API_KEY",
	"search.providers.bluesky.username":          "BLUESKY_HANDLE",
	"search.providers.bluesky.password":          "BLUESKY_APP_PASSWORD",
	"search.providers.truthsocial.username":      "TRUTHSOCIAL_USERNAME",
	"search.providers.truthsocial.password":      "TRUTHSOCIAL_PASSWORD",
	"search.providers.truthsocial.client_id":     "TRUTHSOCIAL_CLIENT_ID",
	"search.providers.truthsocial.client_secret": "TRUTHSOCIAL_CLIENT_SECRET",
	"search.providers.reddit.api_key":            "REDDIT_API_KEY",
	"analysis.api_key":                           "OPENAI_API_KEY",
}

// rootCmd is the base command for the social-search CLI.
var rootCmd = &cobra.Command{
	Use:   "social-search",
	Short: "Search social platforms and rank results by source credibility",
	Long: `social-search queries X, TikTok, YouTube, Bluesky, Truth Social and Reddit
in parallel, normalizes the results into one schema, scores each author's
credibility against a curated source registry, and ranks the combined set.

Credentials come from the config file, the environment (a .env file is
loaded when present), or one file per key in the secrets directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./social-search.yaml or ~/.config/social-search/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of one-file-per-key credentials")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("social-search")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "social-search"))
		}
	}

	viper.SetEnvPrefix("SOCIAL_SEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range envBindings {
		_ = viper.BindEnv(key, "SOCIAL_SEARCH_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the configuration: file and environment through
// viper, then secrets for whatever is still empty, then defaults.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}
	if applied := secrets.Apply(&cfg, loadedSecrets); len(applied) > 0 {
		slog.Debug("loaded secrets", "keys", applied)
	}
	cfg.FillDefaults()
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
