package config

import "strings"

// SiteConfig holds per-site overrides, keyed by host in the config file.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Concurrency overrides the global concurrency limit for this site.
	// If zero, the global ConcurrencyLimit is used.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Subdomains overrides the subdomain policy for this site.
	Subdomains string `yaml:"subdomains,omitempty"`

	// MaxPages overrides the global page limit for this site.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL path patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .mailharvest configuration file.
type File struct {
	// Sites maps hosts (e.g., "example.com") to their configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to all sites unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// The lookup is case-insensitive and a "www." prefix is ignored when the
// exact host has no entry.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.Concurrency != 0 {
		result.Concurrency = siteConfig.Concurrency
	}
	if siteConfig.Subdomains != "" {
		result.Subdomains = siteConfig.Subdomains
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if sc, ok := cf.Sites[host]; ok {
		return sc, true
	}
	if bare, found := strings.CutPrefix(host, "www."); found {
		if sc, ok := cf.Sites[bare]; ok {
			return sc, true
		}
	}
	for key, sc := range cf.Sites {
		if strings.EqualFold(key, host) {
			return sc, true
		}
	}
	return SiteConfig{}, false
}
