package model

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Page is the record of one successfully fetched page.
// The body itself is not kept; only what the crawl learned from it.
type Page struct {
	// URL is the normalized URL of the page.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the MIME type of the response.
	ContentType string `json:"content_type"`

	// Size is the number of body bytes read.
	Size int `json:"size"`

	// Hash is the SHA3-256 hash of the body, hex encoded.
	// Used for change detection between archived runs.
	Hash string `json:"hash"`

	// Emails are the addresses extracted from this page, sorted.
	Emails []string `json:"emails,omitempty"`

	// LinksFound is the number of candidate links the extractor returned.
	LinksFound int `json:"links_found"`

	// LinksQueued is how many of those were in scope and not yet visited.
	LinksQueued int `json:"links_queued"`
}

// NewPage builds a Page from a successful outcome and hashes its body.
func NewPage(o FetchOutcome) Page {
	p := Page{
		URL:         o.URL,
		StatusCode:  o.StatusCode,
		ContentType: o.ContentType,
		Size:        len(o.Body),
	}
	p.ComputeHash(o.Body)
	return p
}

// ComputeHash sets Hash from body. An empty body yields an empty hash.
func (p *Page) ComputeHash(body []byte) {
	if len(body) == 0 {
		p.Hash = ""
		return
	}

	sum := sha3.Sum256(body)
	p.Hash = hex.EncodeToString(sum[:])
}

// IsHTML returns true if the content type indicates HTML.
func (p *Page) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
