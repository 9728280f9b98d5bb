package model

import (
	"sort"
	"time"
)

// CrawlResult is the output of one crawl run.
//
// Emails is the deliverable. The counters are informational: per-URL
// failures never fail a run, they only show up here.
type CrawlResult struct {
	// Seed is the seed URL after scheme normalization.
	Seed string `json:"seed"`

	// RegisteredDomain is the domain the crawl was scoped to.
	RegisteredDomain string `json:"registered_domain"`

	// AllowedSubdomain is the extra subdomain permitted, if any.
	AllowedSubdomain string `json:"allowed_subdomain,omitempty"`

	// Emails is the deduplicated set of addresses found, sorted.
	Emails []string `json:"emails"`

	// PagesFetched counts successful fetches.
	PagesFetched int `json:"pages_fetched"`

	// PagesFailed counts failed fetches of any kind.
	PagesFailed int `json:"pages_failed"`

	// Failures breaks PagesFailed down by kind.
	Failures map[FailureKind]int `json:"failures,omitempty"`

	// URLsDiscovered is the size of the visited set at termination,
	// i.e. every URL ever enqueued including the seed.
	URLsDiscovered int `json:"urls_discovered"`

	// MaxInFlight is the highest number of simultaneous fetches observed.
	MaxInFlight int `json:"max_in_flight"`

	// Pages holds per-page details when page recording is enabled.
	Pages []Page `json:"pages,omitempty"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Error is set when the run was aborted (invalid seed or cancellation).
	// Emails gathered before an abort are still reported.
	Error string `json:"error,omitempty"`
}

// NewCrawlResult creates an empty result for seed.
func NewCrawlResult(seed string) *CrawlResult {
	return &CrawlResult{
		Seed:      seed,
		Emails:    make([]string, 0),
		Failures:  make(map[FailureKind]int),
		StartedAt: time.Now(),
	}
}

// RecordFailure counts one failed fetch.
func (r *CrawlResult) RecordFailure(kind FailureKind) {
	if r.Failures == nil {
		r.Failures = make(map[FailureKind]int)
	}
	r.Failures[kind]++
	r.PagesFailed++
}

// SetEmails stores the email set in sorted order.
func (r *CrawlResult) SetEmails(emails []string) {
	sorted := make([]string, len(emails))
	copy(sorted, emails)
	sort.Strings(sorted)
	r.Emails = sorted
}

// Duration returns how long the run took. Zero until FinishedAt is set.
func (r *CrawlResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PagesAttempted returns the total number of fetches dispatched.
func (r *CrawlResult) PagesAttempted() int {
	return r.PagesFetched + r.PagesFailed
}

// Failed reports whether the run was aborted.
func (r *CrawlResult) Failed() bool {
	return r.Error != ""
}
