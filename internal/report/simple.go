package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/mailharvest/internal/model"
)

// SimpleWriter prints the harvested emails one per line, sorted.
//
// Nothing else is written to the main output so it can be piped. Crawl
// statistics go to an optional summary writer, typically stderr.
type SimpleWriter struct {
	baseWriter

	// summary receives per-seed statistics. Nil disables them.
	summary io.Writer
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithSummary writes crawl statistics to w.
func WithSummary(w io.Writer) SimpleWriterOption {
	return func(s *SimpleWriter) {
		s.summary = w
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the emails of one crawl.
func (w *SimpleWriter) Write(result *model.CrawlResult) (int, error) {
	return w.WriteBatch([]*model.CrawlResult{result})
}

// WriteBatch outputs the union of the emails of every crawl.
func (w *SimpleWriter) WriteBatch(results []*model.CrawlResult) (int, error) {
	var sb strings.Builder
	for _, email := range AllEmails(results) {
		sb.WriteString(email)
		sb.WriteString("\n")
	}

	n, err := io.WriteString(w.output, sb.String())
	if err != nil {
		return n, err
	}

	if w.summary != nil {
		if _, err := io.WriteString(w.summary, summaryText(results)); err != nil {
			return n, err
		}
	}

	return n, nil
}

// summaryText renders one block of statistics per result.
func summaryText(results []*model.CrawlResult) string {
	var sb strings.Builder
	for _, r := range results {
		if r == nil {
			continue
		}

		fmt.Fprintf(&sb, "%s\n", r.Seed)
		if r.RegisteredDomain != "" {
			fmt.Fprintf(&sb, "  Scope:           %s\n", scopeText(r))
		}
		fmt.Fprintf(&sb, "  Emails:          %d\n", len(r.Emails))
		fmt.Fprintf(&sb, "  Pages fetched:   %d\n", r.PagesFetched)
		fmt.Fprintf(&sb, "  Pages failed:    %d\n", r.PagesFailed)
		for _, kind := range model.FailureKinds {
			if n := r.Failures[kind]; n > 0 {
				fmt.Fprintf(&sb, "    %-15s%d\n", kindLabel(kind)+":", n)
			}
		}
		fmt.Fprintf(&sb, "  URLs discovered: %d\n", r.URLsDiscovered)
		fmt.Fprintf(&sb, "  Elapsed:         %s\n", r.Duration().Round(time.Millisecond))
		if r.Failed() {
			fmt.Fprintf(&sb, "  Status:          ERROR - %s\n", r.Error)
		}
	}
	return sb.String()
}

// scopeText renders the crawl boundary of a result.
func scopeText(r *model.CrawlResult) string {
	if r.AllowedSubdomain == "" {
		return r.RegisteredDomain
	}
	return r.RegisteredDomain + " (+" + r.AllowedSubdomain + ")"
}
