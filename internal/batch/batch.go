package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/mailharvest/internal/model"
)

// DefaultConcurrency is the number of seeds crawled at the same time.
const DefaultConcurrency = 4

// Crawler crawls one seed. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*model.CrawlResult, error)
}

// CrawlerFactory creates the Crawler used for seed.
type CrawlerFactory func(seed string) (Crawler, error)

// Processor handles concurrent crawling of multiple seeds.
// It uses errgroup to manage goroutines and respect concurrency limits.
type Processor struct {
	// factory creates a fresh Crawler for each seed.
	factory CrawlerFactory

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewProcessor creates a Processor that builds one Crawler per seed with factory.
func NewProcessor(factory CrawlerFactory, opts ...Option) *Processor {
	p := &Processor{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// ProcessBatchWithCallback crawls every seed and calls callback as soon
// as each crawl finishes. This is useful for streaming results.
//
// The callback receives a non-nil result and the index of the seed in the
// original slice, exactly once per seed. It is called from the goroutine
// that ran the crawl, so it must be safe for concurrent use. Per-seed
// failures are recorded in the results and never stop the batch.
//
// If ctx is cancelled, seeds not yet started get a result carrying the
// cancellation error, running crawls return their partial results, and
// ctx.Err() is returned.
func (p *Processor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(result *model.CrawlResult, index int),
) error {
	p.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", p.concurrency,
	)

	startTime := time.Now()
	err := p.run(ctx, seeds, callback)

	p.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	return err
}

func (p *Processor) run(ctx context.Context, seeds []string, callback func(*model.CrawlResult, int)) error {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			callback(p.crawlOne(ctx, seed, i, len(seeds)), i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // crawl errors are recorded in the results

	return ctx.Err()
}

// crawlOne crawls a single seed. It always returns a non-nil result.
func (p *Processor) crawlOne(ctx context.Context, seed string, index, total int) *model.CrawlResult {
	if err := ctx.Err(); err != nil {
		return aborted(seed, err)
	}

	p.logger.Info("crawling seed",
		"seed", seed,
		"index", index+1,
		"total", total,
	)

	c, err := p.factory(seed)
	if err != nil {
		p.logger.Warn("cannot create crawler", "seed", seed, "error", err)
		return aborted(seed, err)
	}

	result, err := c.Crawl(ctx, seed)
	if result == nil {
		result = aborted(seed, err)
	}
	if err != nil {
		p.logger.Warn("crawl failed", "seed", seed, "error", err)
		if result.Error == "" {
			result.Error = err.Error()
		}
		return result
	}

	p.logger.Info("crawl completed",
		"seed", seed,
		"emails", len(result.Emails),
	)

	return result
}

// aborted returns a result for a seed that could not be crawled.
func aborted(seed string, err error) *model.CrawlResult {
	r := model.NewCrawlResult(seed)
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = time.Now()
	return r
}
