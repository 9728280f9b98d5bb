package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/mailharvest/internal/batch"
	"github.com/nao1215/mailharvest/internal/config"
	"github.com/nao1215/mailharvest/internal/crawler"
	"github.com/nao1215/mailharvest/internal/database"
	"github.com/nao1215/mailharvest/internal/fetcher"
	mhlog "github.com/nao1215/mailharvest/internal/log"
	"github.com/nao1215/mailharvest/internal/model"
	"github.com/nao1215/mailharvest/internal/report"
	"github.com/nao1215/mailharvest/internal/scope"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [domain-or-url...]",
		Short: "Crawl a site and print the email addresses found",
		Long: `Crawl fetches every page reachable from the seed that stays inside the
seed's registered domain and prints the email addresses found, one per line.

A seed without a scheme is crawled over http. By default example.com and
www.example.com are in scope; --subdomains match-seed also allows the seed's
own subdomain. Pages that time out or fail are skipped and counted.

Examples:
  # Crawl a single site
  mailharvest crawl example.com

  # Crawl several sites, two at a time
  mailharvest crawl -b 2 example.com example.org example.net

  # Crawl the seed's subdomain too, with 20 concurrent fetches
  mailharvest crawl -s match-seed -n 20 https://blog.example.com

  # Route requests through a SOCKS5 proxy
  mailharvest crawl --proxy 127.0.0.1:9050 example.com

  # Write a Markdown report and archive the run
  mailharvest crawl -m -o report.md --save example.com

Configuration file (.mailharvest) example:
  defaults:
    ignorePatterns: ["/logout*", "*.pdf"]
  sites:
    example.com:
      cookie: "session_id=abc123"
      concurrency: 4`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of simultaneous fetches per site")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().StringP("subdomains", "s", config.DefaultSubdomainPolicy,
		"Subdomain policy: www-only or match-seed")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to fetch per site (0 = no limit)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of sites crawled concurrently")

	// HTTP flags
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of body bytes read per page")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .mailharvest in current or home directory, then XDG config.yaml)")

	// Logging
	cmd.Flags().Bool("log-json", false,
		"Write log records to stderr as JSON")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().Bool("pages", false,
		"Include per-page details in JSON and Markdown reports")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Archive flags
	cmd.Flags().Bool("save", false,
		"Archive the run in the local database")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// newLogger returns the redacting logger selected by cfg.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogJSON {
		return mhlog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return mhlog.NewSecureLogger(w, cfg.Verbose)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.ConcurrencyLimit, err = flags.GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.SubdomainPolicy, err = flags.GetString("subdomains"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.IncludePages, err = flags.GetBool("pages"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.DBDir == "" {
		cfg.DBDir = config.XDGDataDir()
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}

	// An explicit config path must exist; the implicit search may find nothing.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Targets = args

	return cfg, nil
}

// runCrawl crawls every target and writes the report.
// Per-seed failures are reported after the output is written.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	// Fail fast on settings shared by every seed, such as the proxy address.
	if _, err := fetcher.New(fetcherOptions(cfg, config.SiteConfig{})...); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	var db *database.CrawlDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	processor := batch.NewProcessor(
		newSpiderFactory(cfg, logger),
		batch.WithConcurrency(cfg.BatchSize),
		batch.WithBatchLogger(logger),
	)

	// Each run is archived as soon as its crawl finishes; partial results
	// are archived even after an interrupt.
	saveCtx := context.WithoutCancel(ctx)
	var mu sync.Mutex
	results := make([]*model.CrawlResult, len(cfg.Targets))
	crawlErr := processor.ProcessBatchWithCallback(ctx, cfg.Targets, func(r *model.CrawlResult, index int) {
		mu.Lock()
		defer mu.Unlock()

		results[index] = r
		if err := saveRun(saveCtx, db, r, logger); err != nil {
			logger.Error("failed to archive run", "seed", r.Seed, "error", err)
		}
	})

	if err := outputReport(cfg, results, stdout, stderr); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if crawlErr != nil {
		if errors.Is(crawlErr, context.Canceled) {
			return fmt.Errorf("crawl interrupted, partial results written: %w", crawlErr)
		}
		return crawlErr
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			fmt.Fprintf(stderr, "%s: %s\n", r.Seed, r.Error)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d seed(s) failed", failed, len(results))
	}

	return nil
}

// newSpiderFactory returns a factory that builds a Spider for each seed,
// applying the site configuration matching the seed's host.
func newSpiderFactory(cfg *config.Config, logger *slog.Logger) batch.CrawlerFactory {
	return func(seed string) (batch.Crawler, error) {
		site := siteConfigFor(cfg, seed)

		client, err := fetcher.New(fetcherOptions(cfg, site)...)
		if err != nil {
			return nil, err
		}

		opts, err := spiderOptions(cfg, site, logger)
		if err != nil {
			return nil, err
		}

		return crawler.NewSpider(client, opts...), nil
	}
}

// siteConfigFor returns the site configuration for the host of seed.
func siteConfigFor(cfg *config.Config, seed string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	u, err := url.Parse(scope.NormalizeSeed(seed))
	if err != nil {
		return cfg.SiteConfigs.Defaults
	}
	return cfg.SiteConfigs.GetSiteConfig(u.Hostname())
}

// fetcherOptions builds fetcher options from the global and site settings.
func fetcherOptions(cfg *config.Config, site config.SiteConfig) []fetcher.Option {
	opts := []fetcher.Option{
		fetcher.WithTimeout(cfg.FetchTimeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithProxy(cfg.ProxyAddress),
	}
	if site.Cookie != "" {
		opts = append(opts, fetcher.WithCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		opts = append(opts, fetcher.WithHeaders(site.Headers))
	}
	return opts
}

// spiderOptions builds crawler options. Site values override global ones.
func spiderOptions(cfg *config.Config, site config.SiteConfig, logger *slog.Logger) ([]crawler.SpiderOption, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	if site.Subdomains != "" {
		if policy, err = scope.ParseSubdomainPolicy(site.Subdomains); err != nil {
			return nil, fmt.Errorf("site configuration: %w", err)
		}
	}

	concurrency := cfg.ConcurrencyLimit
	if site.Concurrency > 0 {
		concurrency = site.Concurrency
	}

	maxPages := cfg.MaxPages
	if site.MaxPages > 0 {
		maxPages = site.MaxPages
	}

	opts := []crawler.SpiderOption{
		crawler.WithConcurrency(concurrency),
		crawler.WithFetchTimeout(cfg.FetchTimeout),
		crawler.WithSubdomainPolicy(policy),
		crawler.WithMaxPages(maxPages),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
		crawler.WithRecordPages(cfg.IncludePages || cfg.SaveToDB),
		crawler.WithLogger(logger),
	}

	if cfg.Verbose {
		opts = append(opts, crawler.WithPageHook(func(p model.Page) {
			logger.Info("page fetched",
				"url", p.URL,
				"emails", len(p.Emails),
				"queued", p.LinksQueued,
			)
		}))
	}

	return opts, nil
}

// outputReport writes the results in the requested format.
func outputReport(cfg *config.Config, results []*model.CrawlResult, stdout, stderr io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Harvested addresses are personal data; keep the file owner-only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(cfg, output, stderr).WriteBatch(results)
	return err
}

// newReportWriter selects the report writer for cfg.
func newReportWriter(cfg *config.Config, output, stderr io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(output,
			report.WithPrettyPrint(),
			report.WithVersion(getVersion()),
			report.WithJSONPages(cfg.IncludePages),
		)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output,
			report.WithMarkdownPages(cfg.IncludePages),
		)
	default:
		var opts []report.SimpleWriterOption
		if cfg.Verbose {
			opts = append(opts, report.WithSummary(stderr))
		}
		return report.NewSimpleWriter(output, opts...)
	}
}

// saveRun archives a result if the database is enabled.
// If db is nil, this function is a no-op.
func saveRun(ctx context.Context, db *database.CrawlDB, result *model.CrawlResult, logger *slog.Logger) error {
	if db == nil || result == nil {
		return nil
	}

	id, err := db.SaveRun(ctx, result)
	if err != nil {
		return err
	}

	logger.Info("run archived", "seed", result.Seed, "id", id)
	return nil
}
