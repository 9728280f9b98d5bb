// Package model defines the data structures shared by the crawl engine,
// the report writers and the run archive.
//
// This package contains the following main types:
//   - FetchOutcome: the tagged result of one fetch attempt
//   - Page: what was learned from one successfully fetched page
//   - CrawlResult: the final output of a crawl, emails plus counters
//
// The models live in their own package so that crawler, report and database
// can share them without import cycles. All of them serialize to JSON for
// report output and archive storage.
package model
