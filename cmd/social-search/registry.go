// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/social-search/internal/registry"
	"github.com/pdiddy/social-search/pkg/types"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the curated source registry",
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List curated sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registryFromFlags(cmd)
		if err != nil {
			return err
		}
		filter, _ := cmd.Flags().GetString("platform")
		var only types.Platform
		if filter != "" {
			if only, err = types.ParsePlatform(filter); err != nil {
				return err
			}
		}

		fmt.Fprintf(os.Stdout, "%-11s  %-22s  %-10s  %-6s  %s\n", "Platform", "Identifier", "Category", "Region", "Name")
		fmt.Fprintln(os.Stdout, strings.Repeat("-", 80))
		n := 0
		for _, s := range reg.Sources() {
			if only != "" && s.Platform != only {
				continue
			}
			fmt.Fprintf(os.Stdout, "%-11s  %-22s  %-10s  %-6s  %s\n", s.Platform, s.Identifier, s.Category, s.Region, s.DisplayName)
			n++
		}
		fmt.Fprintf(os.Stdout, "\n%d sources\n", n)
		return nil
	},
}

var registryLookupCmd = &cobra.Command{
	Use:   "lookup <platform> <handle>",
	Short: "Look up one handle in the registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registryFromFlags(cmd)
		if err != nil {
			return err
		}
		p, err := types.ParsePlatform(args[0])
		if err != nil {
			return err
		}
		s, ok := reg.Lookup(p, args[1])
		if !ok {
			return fmt.Errorf("%s is not a curated source on %s", args[1], p)
		}
		fmt.Fprintf(os.Stdout, "%s (%s, %s) base score %.2f, verified %s\n",
			s.DisplayName, s.Category, s.Region, registry.BaseScore(s.Category), s.VerifiedAt.Format("2006-01-02"))
		return nil
	},
}

func init() {
	registryCmd.PersistentFlags().String("registry", "", "registry YAML file (default: embedded list)")
	registryListCmd.Flags().String("platform", "", "only list sources on this platform")

	registryCmd.AddCommand(registryListCmd, registryLookupCmd)
	rootCmd.AddCommand(registryCmd)
}

func registryFromFlags(cmd *cobra.Command) (*registry.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path, _ := cmd.Flags().GetString("registry")
	return loadRegistry(path, cfg.Search.RegistryFile)
}
