// Package fetcher implements the HTTP fetch capability used by the crawler.
//
// A Client performs one GET per call with its own deadline and turns the
// result into a model.FetchOutcome. Transport failures are classified into
// timeout, connection and protocol kinds so the scheduler can count them
// without inspecting error strings.
//
// Requests can optionally be routed through a SOCKS5 proxy, and a cookie
// or extra headers can be attached to every request for sites that need
// them.
package fetcher
