package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/mailharvest/internal/extract"
	"github.com/nao1215/mailharvest/internal/frontier"
	"github.com/nao1215/mailharvest/internal/model"
	"github.com/nao1215/mailharvest/internal/scope"
)

const (
	// DefaultConcurrency caps simultaneous fetches.
	DefaultConcurrency = 10

	// DefaultFetchTimeout is the deadline given to every fetch.
	DefaultFetchTimeout = 5 * time.Second
)

// Fetcher retrieves one page. Implementations must honor ctx and must not
// touch any crawl state; the outcome is applied by the scheduler.
type Fetcher interface {
	Fetch(ctx context.Context, url string) model.FetchOutcome
}

// Spider crawls one site at a time, staying inside the seed's scope, and
// collects the email addresses it finds.
//
// A Spider holds configuration only. All crawl state lives in a Frontier
// created per Crawl call, so one Spider can run several crawls concurrently.
type Spider struct {
	fetcher Fetcher

	// concurrency is the maximum number of fetches in flight.
	concurrency int

	// fetchTimeout bounds each fetch.
	fetchTimeout time.Duration

	// policy decides which subdomains besides www are in scope.
	policy scope.SubdomainPolicy

	// maxPages limits how many fetches are dispatched. 0 means unlimited.
	maxPages int

	// ignorePatterns are URL path patterns to skip during crawling.
	// Patterns use glob syntax (e.g., "/admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns are URL path patterns to follow during crawling.
	// If set, only URLs matching these patterns are crawled.
	followPatterns []string

	// recordPages keeps per-page details in the result.
	recordPages bool

	// pageHook is called from the scheduler goroutine for every fetched page.
	pageHook func(model.Page)

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithConcurrency sets the maximum number of simultaneous fetches.
// Values below 1 are ignored.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithFetchTimeout sets the deadline given to every fetch.
// Non-positive values are ignored.
func WithFetchTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// WithSubdomainPolicy sets which subdomains are crawled.
func WithSubdomainPolicy(p scope.SubdomainPolicy) SpiderOption {
	return func(s *Spider) {
		s.policy = p
	}
}

// WithMaxPages sets the maximum number of pages to fetch. 0 means unlimited.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		if maxPages >= 0 {
			s.maxPages = maxPages
		}
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only URLs matching at least one pattern are crawled. The seed is
// always fetched.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithRecordPages keeps a model.Page for every fetched page in the result.
func WithRecordPages(record bool) SpiderOption {
	return func(s *Spider) {
		s.recordPages = record
	}
}

// WithPageHook registers a function called once per successfully fetched page.
// It runs on the scheduler goroutine and must not block for long.
func WithPageHook(hook func(model.Page)) SpiderOption {
	return func(s *Spider) {
		s.pageHook = hook
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches through fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      fetcher,
		concurrency:  DefaultConcurrency,
		fetchTimeout: DefaultFetchTimeout,
		policy:       scope.PolicyWWWOnly,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// Concurrency returns the configured fetch limit.
func (s *Spider) Concurrency() int {
	return s.concurrency
}

// Crawl fetches every in-scope page reachable from seed and returns the
// emails found.
//
// A seed without a scheme gets "http://". An invalid seed fails the crawl
// before any fetch with an error wrapping scope.ErrInvalidSeed. Per-page
// failures never fail the crawl; they are only counted in the result.
//
// If ctx is cancelled, no new fetches are dispatched, in-flight fetches are
// awaited, and the partial result is returned together with ctx.Err().
func (s *Spider) Crawl(ctx context.Context, seed string) (*model.CrawlResult, error) {
	seed = scope.NormalizeSeed(seed)
	result := model.NewCrawlResult(seed)

	sc, err := scope.New(seed, s.policy)
	if err != nil {
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		return result, err
	}
	result.RegisteredDomain = sc.RegisteredDomain
	result.AllowedSubdomain = sc.AllowedSubdomain

	s.logger.Info("starting crawl",
		"seed", seed,
		"scope", sc.String(),
		"concurrency", s.concurrency,
		"timeout", s.fetchTimeout,
	)

	f := frontier.New(seed)
	runErr := s.run(ctx, f, sc, result)

	stats := f.Stats()
	result.SetEmails(f.Emails())
	result.URLsDiscovered = stats.Visited
	result.MaxInFlight = stats.MaxInFlight
	result.FinishedAt = time.Now()
	if runErr != nil {
		result.Error = runErr.Error()
	}

	s.logger.Info("crawl finished",
		"seed", seed,
		"emails", len(result.Emails),
		"pages_fetched", result.PagesFetched,
		"pages_failed", result.PagesFailed,
		"urls_discovered", result.URLsDiscovered,
		"elapsed", result.Duration(),
	)

	return result, runErr
}

// run is the scheduler loop. It is the only code that touches f.
// Fetch goroutines hand back outcomes over a channel; every outcome is
// applied here, and the terminal condition is checked right after.
func (s *Spider) run(ctx context.Context, f *frontier.Frontier, sc scope.Scope, result *model.CrawlResult) error {
	// Never more than concurrency fetches are in flight, so sends never block.
	outcomes := make(chan model.FetchOutcome, s.concurrency)

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	dispatch := func() {
		for {
			if s.maxPages > 0 && f.Stats().Dispatched >= s.maxPages {
				if dropped := f.Drain(); dropped > 0 {
					s.logger.Debug("page limit reached", "max_pages", s.maxPages, "dropped", dropped)
				}
				return
			}

			next, ok := f.Dispatch(s.concurrency)
			if !ok {
				return
			}

			s.logger.Debug("dispatching fetch", "url", next, "in_flight", f.Stats().InFlight)
			g.Go(func() error {
				fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
				defer cancel()
				outcomes <- s.fetcher.Fetch(fctx, next)
				return nil
			})
		}
	}

	if err := ctx.Err(); err != nil {
		s.logger.Info("crawl cancelled before the first fetch", "dropped", f.Drain())
		return err
	}

	done := ctx.Done()
	dispatch()

	for !f.Done() {
		select {
		case o := <-outcomes:
			s.apply(f, sc, result, o)
			if ctx.Err() == nil {
				dispatch()
			} else {
				f.Drain()
			}
		case <-done:
			s.logger.Info("crawl cancelled, waiting for in-flight fetches",
				"dropped", f.Drain(),
				"in_flight", f.Stats().InFlight,
			)
			done = nil
		}
	}

	_ = g.Wait() //nolint:errcheck // fetch goroutines never return errors

	return ctx.Err()
}

// apply merges one outcome into the frontier.
func (s *Spider) apply(f *frontier.Frontier, sc scope.Scope, result *model.CrawlResult, o model.FetchOutcome) {
	if err := f.Complete(); err != nil {
		s.logger.Error("outcome without dispatch", "url", o.URL, "error", err)
		return
	}

	if !o.OK() {
		result.RecordFailure(o.Kind)
		s.logger.Debug("fetch failed", "url", o.URL, "kind", o.Kind, "error", o.Err)
		return
	}
	result.PagesFetched++

	base, err := url.Parse(o.BaseURL())
	if err != nil {
		base = nil
	}
	extracted := extract.Extract(o.Body, base)
	newEmails := f.AddEmails(extracted.Emails)

	queued := 0
	for _, link := range extracted.Links {
		inScope, err := sc.Check(link)
		if err != nil {
			s.logger.Debug("skipping malformed link", "url", link, "page", o.URL, "error", err)
			continue
		}
		if !inScope || !s.shouldCrawl(link) {
			continue
		}
		if f.Enqueue(link) {
			queued++
		}
	}

	s.logger.Debug("page processed",
		"url", o.URL,
		"emails", len(extracted.Emails),
		"new_emails", newEmails,
		"links", len(extracted.Links),
		"queued", queued,
	)

	if !s.recordPages && s.pageHook == nil {
		return
	}

	page := model.NewPage(o)
	page.Emails = extracted.Emails
	page.LinksFound = len(extracted.Links)
	page.LinksQueued = queued

	if s.recordPages {
		result.Pages = append(result.Pages, page)
	}
	if s.pageHook != nil {
		s.pageHook(page)
	}
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//
// Examples:
//   - "/admin/*" matches "/admin/dashboard", "/admin/users"
//   - "*.pdf" matches "/docs/file.pdf"
//   - "/api/v?" matches "/api/v1", "/api/v2"
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok {
		if strings.HasSuffix(path, "."+ext) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash are also tried against the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}
