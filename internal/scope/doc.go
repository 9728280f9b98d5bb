// Package scope decides which discovered URLs belong to the site being harvested.
//
// A Scope is derived once from the seed URL. It records the seed's registered
// domain (eTLD+1, computed with the public suffix list) and, depending on the
// subdomain policy, the one extra subdomain that is allowed besides the bare
// domain and "www".
//
// # Policies
//
//   - www-only: example.com and www.example.com are crawled, nothing else
//   - match-seed: additionally the seed's own subdomain (shop.example.com)
//
// Candidates that cannot be parsed are out of scope. They are never reported
// as errors because a single broken href must not stop the crawl.
package scope
