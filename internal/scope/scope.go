package scope

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// SubdomainPolicy selects which subdomains of the registered domain are crawled.
type SubdomainPolicy string

const (
	// PolicyWWWOnly allows the bare registered domain and its "www" subdomain.
	PolicyWWWOnly SubdomainPolicy = "www-only"

	// PolicyMatchSeed also allows the subdomain the seed URL was given with.
	PolicyMatchSeed SubdomainPolicy = "match-seed"
)

var (
	// ErrInvalidSeed is returned when no Scope can be derived from the seed.
	// This is the only error that aborts a crawl before the first fetch.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrInvalidSubdomainPolicy is returned for unknown policy names.
	ErrInvalidSubdomainPolicy = errors.New("invalid subdomain policy: must be www-only or match-seed")
)

// ParseSubdomainPolicy converts a policy name into a SubdomainPolicy.
// An empty name selects PolicyWWWOnly.
func ParseSubdomainPolicy(name string) (SubdomainPolicy, error) {
	switch SubdomainPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyWWWOnly:
		return PolicyWWWOnly, nil
	case PolicyMatchSeed:
		return PolicyMatchSeed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSubdomainPolicy, name)
	}
}

// Scope is the immutable crawl boundary derived from a seed URL.
type Scope struct {
	// RegisteredDomain is the seed host's eTLD+1, e.g. "example.co.uk".
	RegisteredDomain string `json:"registered_domain"`

	// AllowedSubdomain is the one subdomain permitted besides "" and "www".
	// Empty under PolicyWWWOnly.
	AllowedSubdomain string `json:"allowed_subdomain,omitempty"`
}

// NormalizeSeed prepends http:// to seeds given without a scheme.
func NormalizeSeed(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return seed
	}
	if !strings.Contains(seed, "://") {
		seed = "http://" + seed
	}
	return seed
}

// New derives a Scope from the seed URL.
// The seed is normalized with NormalizeSeed first.
func New(seed string, policy SubdomainPolicy) (Scope, error) {
	normalized := NormalizeSeed(seed)
	if normalized == "" {
		return Scope{}, fmt.Errorf("%w: empty seed", ErrInvalidSeed)
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return Scope{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if !isWebScheme(u.Scheme) {
		return Scope{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSeed, u.Scheme)
	}
	if u.Hostname() == "" {
		return Scope{}, fmt.Errorf("%w: missing host in %q", ErrInvalidSeed, seed)
	}

	registered, sub, err := splitHost(u.Hostname())
	if err != nil {
		return Scope{}, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}

	s := Scope{RegisteredDomain: registered}
	if policy == PolicyMatchSeed && sub != "www" {
		s.AllowedSubdomain = sub
	}
	return s, nil
}

// InScope reports whether candidate may be crawled.
// Malformed candidates are out of scope.
func (s Scope) InScope(candidate string) bool {
	ok, _ := s.Check(candidate) //nolint:errcheck // malformed candidates are simply out of scope
	return ok
}

// Check is InScope with the parse failure exposed, so callers can log
// malformed candidates. A non-nil error always comes with false.
func (s Scope) Check(candidate string) (bool, error) {
	u, err := url.Parse(candidate)
	if err != nil {
		return false, err
	}
	if !isWebScheme(u.Scheme) || u.Hostname() == "" {
		return false, nil
	}

	registered, sub, err := splitHost(u.Hostname())
	if err != nil {
		return false, err
	}
	if registered != s.RegisteredDomain {
		return false, nil
	}
	return sub == "" || sub == "www" || sub == s.AllowedSubdomain, nil
}

// String returns a readable description such as "example.com (+shop)".
func (s Scope) String() string {
	if s.AllowedSubdomain == "" {
		return s.RegisteredDomain
	}
	return s.RegisteredDomain + " (+" + s.AllowedSubdomain + ")"
}

// splitHost returns the registered domain and the subdomain of host.
//
// IP literals and single-label hosts such as "localhost" have no public
// suffix; the whole host is treated as the registered domain.
func splitHost(host string) (registered, sub string, err error) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return "", "", errors.New("empty host")
	}
	if net.ParseIP(host) != nil {
		return host, "", nil
	}

	host, err = idna.Lookup.ToASCII(host)
	if err != nil {
		return "", "", fmt.Errorf("invalid host name: %w", err)
	}
	if !strings.Contains(host, ".") {
		return host, "", nil
	}

	registered, err = publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", "", err
	}
	sub = strings.TrimSuffix(strings.TrimSuffix(host, registered), ".")
	return registered, sub, nil
}

func isWebScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}
