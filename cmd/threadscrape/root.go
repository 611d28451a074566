package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for threadscrape.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threadscrape",
		Short: "Save forum threads as markdown",
		Long: `threadscrape fetches every page of a forum thread and writes the posts
to a single markdown file.

By default pages are fetched through a FlareSolverr session, which gets past
Cloudflare challenges. Use --direct to fetch with a plain HTTP client.

DELAY_MS (milliseconds between two page requests) must be set in the
environment or in a .env file in the current directory.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
