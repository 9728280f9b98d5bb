package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/mailharvest/internal/model"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMarkdownPages adds a per-page table to every result.
func WithMarkdownPages(include bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.includePages = include
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the result of one crawl.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	return w.WriteBatch([]*model.CrawlResult{result})
}

// WriteBatch outputs all results in one document.
func (w *MarkdownWriter) WriteBatch(results []*model.CrawlResult) (int, error) {
	visible := w.visible(results)
	md := markdown.NewMarkdown(w.output)

	md.H1("Mailharvest Report")
	md.PlainText("")

	if len(visible) > 1 {
		w.writeOverview(md, visible)
	}

	for _, r := range visible {
		w.writeResult(md, r)
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeOverview writes one row per seed and the combined email list.
func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, results []*model.CrawlResult) {
	md.H2("Overview")
	md.PlainText("")

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			"`" + r.Seed + "`",
			strconv.Itoa(len(r.Emails)),
			strconv.Itoa(r.PagesFetched),
			strconv.Itoa(r.PagesFailed),
			statusText(r),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Seed", "Emails", "Pages Fetched", "Pages Failed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	all := AllEmails(results)
	md.PlainTextf("%d unique address(es) across %d seed(s).", len(all), len(results))
	md.PlainText("")
}

// writeResult writes the section of one seed.
func (w *MarkdownWriter) writeResult(md *markdown.Markdown, r *model.CrawlResult) {
	md.H2(r.Seed)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scope", "`" + scopeText(r) + "`"},
			{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", r.Duration().String()},
			{"Pages Fetched", strconv.Itoa(r.PagesFetched)},
			{"Pages Failed", strconv.Itoa(r.PagesFailed)},
			{"URLs Discovered", strconv.Itoa(r.URLsDiscovered)},
			{"Peak Concurrency", strconv.Itoa(r.MaxInFlight)},
			{"Status", statusText(r)},
		},
	})
	md.PlainText("")

	if r.PagesAttempted() > 0 {
		w.writePieChart(md, r)
	}
	w.writeAlert(md, r)

	md.H3("Emails")
	md.PlainText("")
	if len(r.Emails) == 0 {
		md.PlainText("No addresses found.")
	} else {
		items := make([]string, len(r.Emails))
		for i, e := range r.Emails {
			items[i] = "`" + e + "`"
		}
		md.BulletList(items...)
	}
	md.PlainText("")

	if len(r.Pages) > 0 {
		w.writePages(md, r.Pages)
	}
}

// statusText returns the status text based on result state.
func statusText(r *model.CrawlResult) string {
	if r.Failed() {
		return "❌ Error - " + r.Error
	}
	return "✅ Complete"
}

// writePieChart writes a mermaid pie chart of fetch outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, r *model.CrawlResult) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Outcomes"),
		piechart.WithShowData(true),
	)

	if r.PagesFetched > 0 {
		chart.LabelAndIntValue("Fetched", uint64(r.PagesFetched))
	}
	for _, kind := range model.FailureKinds {
		if n := r.Failures[kind]; n > 0 {
			chart.LabelAndIntValue(kindLabel(kind), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert summarizes the run in one alert block.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, r *model.CrawlResult) {
	switch {
	case r.Failed():
		md.Cautionf("Crawl aborted: %s", r.Error)
	case r.PagesFetched == 0:
		md.Warningf("No page could be fetched (%d failure(s)).", r.PagesFailed)
	case len(r.Emails) == 0:
		md.Importantf("Crawled %d page(s) without finding an address.", r.PagesFetched)
	case r.PagesFailed > 0:
		md.Note(fmt.Sprintf("%d page(s) failed and were skipped; some addresses may be missing.", r.PagesFailed))
	default:
		md.Tip(fmt.Sprintf("Found %d address(es) on %d page(s).", len(r.Emails), r.PagesFetched))
	}
	md.PlainText("")
}

// writePages writes one row per fetched page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, pages []model.Page) {
	md.H3("Pages")
	md.PlainText("")

	rows := make([][]string, len(pages))
	for i, p := range pages {
		rows[i] = []string{
			truncateString(p.URL, 80),
			strconv.Itoa(p.StatusCode),
			pageType(p),
			strconv.Itoa(len(p.Emails)),
			strconv.Itoa(p.LinksFound),
			strconv.Itoa(p.LinksQueued),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Type", "Emails", "Links", "Queued"},
		Rows:   rows,
	})
	md.PlainText("")
}

// pageType labels a page by whether links could be extracted from it.
func pageType(p model.Page) string {
	if p.IsHTML() {
		return "HTML"
	}
	return "Text"
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [mailharvest](https://github.com/nao1215/mailharvest)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
