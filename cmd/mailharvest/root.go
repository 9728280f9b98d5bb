package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for mailharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailharvest",
		Short: "Scoped web crawler that harvests contact email addresses",
		Long: `mailharvest crawls a website starting from a seed address, stays inside
the seed's registered domain, and collects the email addresses found in page
bodies and mailto: links.

The crawl ends on its own once every reachable in-scope page has been
fetched. Pages that fail to load are counted and skipped.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
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
