// Package crawler provides the scoped crawl engine.
//
// # Architecture
//
// The Spider type coordinates one crawl per Crawl call. A single scheduler
// goroutine owns the frontier (visited set, pending stack, in-flight count,
// email set). Fetches run in their own goroutines, bounded by the
// concurrency limit, and hand a model.FetchOutcome back over a channel. The
// scheduler applies outcomes one at a time:
//
//  1. decrement in-flight
//  2. on success, extract emails and links from the body
//  3. filter links through the scope and the ignore/follow patterns
//  4. enqueue links not seen before
//  5. dispatch pending work up to the concurrency limit
//
// After every applied outcome the scheduler checks whether anything is
// pending or in flight. When neither is, the crawl is over. Because every
// URL is enqueued at most once, cyclic link graphs terminate.
//
// # Failures
//
// A failed fetch is counted by kind and dropped. There are no retries.
// Only an invalid seed fails a crawl.
//
// # Usage
//
//	client, _ := fetcher.New(fetcher.WithTimeout(5 * time.Second))
//	spider := crawler.NewSpider(client, crawler.WithConcurrency(10))
//	result, err := spider.Crawl(ctx, "example.com")
package crawler
