package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/mailharvest/internal/config"
	"github.com/nao1215/mailharvest/internal/database"
	"github.com/nao1215/mailharvest/internal/scope"
)

// NewHistoryCmd creates the history command.
// It reads runs archived by 'crawl --save'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [domain-or-url]",
		Short: "Show archived crawl runs",
		Long: `History shows crawl runs archived with 'mailharvest crawl --save'.

Without arguments every run is listed, newest first. With a seed only the
runs of that seed are listed.

Examples:
  # List all archived runs
  mailharvest history

  # List runs of one site
  mailharvest history example.com

  # List every archived seed
  mailharvest history --seeds

  # Show the emails of run 3
  mailharvest history --id 3

  # Show run 3 as a Markdown report
  mailharvest history --id 3 --markdown

  # Find the runs that harvested an address
  mailharvest history --email info@example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("seeds", "S", false,
		"List all archived seeds")
	cmd.Flags().Int64P("id", "i", 0,
		"Show a single run by ID (use the list to see available IDs)")
	cmd.Flags().StringP("email", "e", "",
		"List the runs that found this address")

	cmd.Flags().BoolP("json", "j", false,
		"Show the run as a JSON report (with --id)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Show the run as a Markdown report (with --id)")
	cmd.Flags().Bool("pages", false,
		"Include per-page details in JSON and Markdown reports")

	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// historyOptions holds the parsed history flags.
type historyOptions struct {
	seed     string
	seeds    bool
	id       int64
	email    string
	json     bool
	markdown bool
	pages    bool
	dbDir    string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryFlags(cmd, args)
	if err != nil {
		return err
	}

	// The archive is never created here; it only exists after 'crawl --save'.
	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case opts.seeds:
		return listSeeds(ctx, out, db)
	case opts.id != 0:
		return showRun(ctx, out, db, opts)
	case opts.email != "":
		return findEmail(ctx, out, db, opts.email)
	default:
		return listRuns(ctx, out, db, opts.seed)
	}
}

// parseHistoryFlags validates the history flags before the database is opened.
func parseHistoryFlags(cmd *cobra.Command, args []string) (*historyOptions, error) {
	flags := cmd.Flags()
	opts := &historyOptions{}

	var err error
	if opts.seeds, err = flags.GetBool("seeds"); err != nil {
		return nil, err
	}
	if opts.id, err = flags.GetInt64("id"); err != nil {
		return nil, err
	}
	if opts.email, err = flags.GetString("email"); err != nil {
		return nil, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.pages, err = flags.GetBool("pages"); err != nil {
		return nil, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.dbDir == "" {
		opts.dbDir = config.XDGDataDir()
	}

	if len(args) == 1 {
		opts.seed = scope.NormalizeSeed(args[0])
	}

	if opts.json && opts.markdown {
		return nil, config.ErrConflictingReportFormats
	}
	if opts.id < 0 {
		return nil, errors.New("run ID must be positive")
	}

	return opts, nil
}

// listSeeds lists all seeds that have runs in the archive.
func listSeeds(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No archived runs found in the database.")
		fmt.Fprintln(out, "\nUse 'mailharvest crawl --save <domain>' to archive a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Archived seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'mailharvest history <seed>' to see the runs of a seed.")

	return nil
}

// listRuns lists the archived runs, optionally for one seed.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string) error {
	runs, err := db.ListRuns(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No archived runs found for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No archived runs found in the database.")
		}
		fmt.Fprintln(out, "\nUse 'mailharvest crawl --save <domain>' to archive a crawl.")
		return nil
	}

	if seed != "" {
		fmt.Fprintf(out, "Runs for %s (%d):\n\n", seed, len(runs))
	} else {
		fmt.Fprintf(out, "Archived runs (%d):\n\n", len(runs))
	}
	writeRunTable(out, runs)
	fmt.Fprintln(out, "\nUse 'mailharvest history --id <ID>' to see the emails of a run.")

	return nil
}

// findEmail lists the runs that harvested email.
func findEmail(ctx context.Context, out io.Writer, db *database.CrawlDB, email string) error {
	runs, err := db.FindEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to search email: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "%s was not found in any archived run.\n", email)
		return nil
	}

	fmt.Fprintf(out, "Runs that found %s (%d):\n\n", email, len(runs))
	writeRunTable(out, runs)

	return nil
}

// writeRunTable writes one line per run.
func writeRunTable(out io.Writer, runs []database.RunMetadata) {
	fmt.Fprintf(out, "  %-6s  %-20s  %-7s  %-7s  %-7s  %s\n", "ID", "Date", "Emails", "Fetched", "Failed", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 72))

	for _, run := range runs {
		date := "unknown"
		if !run.StartedAt.IsZero() {
			date = run.StartedAt.Local().Format("2006-01-02 15:04:05")
		}

		line := fmt.Sprintf("  %-6d  %-20s  %-7d  %-7d  %-7d  %s",
			run.ID, date, run.Emails, run.PagesFetched, run.PagesFailed, run.Seed)
		if run.Error != "" {
			line += "  (" + run.Error + ")"
		} else if run.Elapsed > 0 {
			line += "  " + run.Elapsed.Round(time.Millisecond).String()
		}
		fmt.Fprintln(out, line)
	}
}

// showRun writes one archived run with the selected report writer.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, opts *historyOptions) error {
	result, err := db.GetRun(ctx, opts.id)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if result == nil {
		return fmt.Errorf("run %d not found", opts.id)
	}

	cfg := config.NewConfig()
	cfg.JSONReport = opts.json
	cfg.MarkdownReport = opts.markdown
	cfg.IncludePages = opts.pages

	_, err = newReportWriter(cfg, out, io.Discard).Write(result)
	return err
}
