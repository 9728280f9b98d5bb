// Package database provides an optional SQLite archive of crawl runs.
//
// CrawlDB stores:
//   - One row per crawl run with its counters and the full result as JSON
//   - The emails harvested by each run
//   - Per-page details when page recording was enabled
//
// The archive is write-only from the crawler's point of view: a crawl never
// reads previous runs. It is read back only by the history command.
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, so the
// binary stays a single statically linked file.
package database
