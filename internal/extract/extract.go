// Package extract turns a fetched page body into contact emails and candidate links.
//
// Extraction is pure: it never touches crawl state and is safe to call
// concurrently for different pages. Scope filtering and deduplication against
// already visited URLs happen downstream in the crawler.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// emailPattern is a heuristic, not an RFC 5322 validator.
// local-part: letters, digits, dot; domain: letters, digits, hyphen;
// tld: 2 to 10 letters. Plus-addressing and internationalized addresses
// are not matched.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9.]+@[a-zA-Z0-9-]+\.[a-zA-Z]{2,10}`)

const mailtoPrefix = "mailto:"

// skippedSchemes are href schemes that never lead to a fetchable page.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Result holds what was extracted from one page. Both slices are
// deduplicated and sorted.
type Result struct {
	// Emails is the union of the pattern pass and the mailto pass.
	Emails []string

	// Links are absolute URLs of every anchor href, fragments removed.
	Links []string
}

// Extract runs both email passes and collects anchor links.
//
// Relative hrefs are resolved against base, or against the document's
// <base href> when one appears before the anchor. Malformed markup never
// fails: whatever the HTML parser recovers is used, and an unparseable
// document simply yields no links.
func Extract(body []byte, base *url.URL) Result {
	emails := make(map[string]struct{})
	links := make(map[string]struct{})

	for _, email := range emailPattern.FindAll(body, -1) {
		emails[string(email)] = struct{}{}
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err == nil {
		w := walker{base: base, emails: emails, links: links}
		w.walk(doc)
	}

	return Result{
		Emails: sortedKeys(emails),
		Links:  sortedKeys(links),
	}
}

// walker carries the effective base URL through the DOM walk.
type walker struct {
	base      *url.URL
	baseFixed bool
	emails    map[string]struct{}
	links     map[string]struct{}
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "base":
			w.applyBase(getAttr(n, "href"))
		case "a", "area":
			if href, ok := lookupAttr(n, "href"); ok {
				w.anchor(href)
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// applyBase honors the first <base href> of the document.
func (w *walker) applyBase(href string) {
	if w.baseFixed || strings.TrimSpace(href) == "" {
		return
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return
	}
	if w.base != nil {
		u = w.base.ResolveReference(u)
	}
	if u.IsAbs() {
		w.base = u
		w.baseFixed = true
	}
}

func (w *walker) anchor(href string) {
	href = strings.TrimSpace(href)

	if hasPrefixFold(href, mailtoPrefix) {
		for _, addr := range mailtoAddresses(href) {
			w.emails[addr] = struct{}{}
		}
		return
	}

	if link := w.resolve(href); link != "" {
		w.links[link] = struct{}{}
	}
}

// resolve turns an href into an absolute URL without fragment.
// It returns "" for hrefs that can never be fetched.
func (w *walker) resolve(href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	for _, scheme := range skippedSchemes {
		if hasPrefixFold(href, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if w.base != nil {
		u = w.base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return ""
	}

	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// mailtoAddresses returns the recipients of a mailto: href.
// Query parameters (?subject=...) are dropped and several comma separated
// recipients are split. Values without an @ are ignored.
func mailtoAddresses(href string) []string {
	target := href[len(mailtoPrefix):]
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if unescaped, err := url.PathUnescape(target); err == nil {
		target = unescaped
	}

	addrs := make([]string, 0, 1)
	for _, addr := range strings.Split(target, ",") {
		addr = strings.TrimSpace(addr)
		if strings.Contains(addr, "@") {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
