// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/social-search/internal/search"
)

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Render a response saved with search --save",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rf, err := search.ReadResponseFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "query %q, generated %s\n", rf.Request.Query, rf.Response.GeneratedAt.Format("2006-01-02 15:04 MST"))
		return render(cmd, rf.Response, os.Stdout)
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "output the response as JSON")
	showCmd.Flags().Bool("yaml", false, "output the response as YAML")

	rootCmd.AddCommand(showCmd)
}
