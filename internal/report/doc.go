// Package report renders crawl results.
//
// This package contains writers for different output formats:
//   - SimpleWriter: emails one per line, sorted, for piping into other tools
//   - JSONWriter: structured output with per-seed statistics
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a pie chart
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably by the CLI.
package report
