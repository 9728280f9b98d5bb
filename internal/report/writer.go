package report

import (
	"io"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/mailharvest/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the result of one crawl.
	// Returns the number of bytes written and any error encountered.
	Write(result *model.CrawlResult) (int, error)

	// WriteBatch outputs the results of several crawls as one report.
	WriteBatch(results []*model.CrawlResult) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer

	// includePages keeps per-page details in the output.
	includePages bool
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// visible returns results as they should be rendered. Pages are stripped
// from copies when page output is disabled; the inputs are not modified.
func (b baseWriter) visible(results []*model.CrawlResult) []*model.CrawlResult {
	out := make([]*model.CrawlResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if !b.includePages && len(r.Pages) > 0 {
			clone := *r
			clone.Pages = nil
			r = &clone
		}
		out = append(out, r)
	}
	return out
}

// AllEmails returns the sorted union of the emails of every result.
func AllEmails(results []*model.CrawlResult) []string {
	set := make(map[string]struct{})
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, e := range r.Emails {
			set[e] = struct{}{}
		}
	}

	emails := make([]string, 0, len(set))
	for e := range set {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	return emails
}

// titleCaser renders failure kinds as labels, e.g. "timeout" -> "Timeout".
var titleCaser = cases.Title(language.English)

// kindLabel returns the display label of a failure kind.
func kindLabel(kind model.FailureKind) string {
	return titleCaser.String(string(kind))
}
