package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/mailharvest/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// version is recorded in the output.
	version string

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the tool version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// WithJSONPages includes per-page details.
func WithJSONPages(include bool) JSONWriterOption {
	return func(w *JSONWriter) {
		w.includePages = include
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport is the document written by JSONWriter.
type JSONReport struct {
	// Version is the mailharvest version that generated this report.
	Version string `json:"version,omitempty"`

	// Emails is the sorted union of all results' emails.
	Emails []string `json:"emails"`

	// Results holds one entry per seed, in input order.
	Results []*model.CrawlResult `json:"results"`
}

// Write outputs the result of one crawl.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.WriteBatch([]*model.CrawlResult{result})
}

// WriteBatch outputs all results in one document.
func (w *JSONWriter) WriteBatch(results []*model.CrawlResult) (int, error) {
	visible := w.visible(results)
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Emails:  AllEmails(visible),
		Results: visible,
	})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
