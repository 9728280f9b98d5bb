package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/mailharvest/internal/scope"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "mailharvest"

	// DefaultConcurrency caps simultaneous fetches per crawl.
	// Lower it when a host throttles bursts.
	DefaultConcurrency = 10

	// DefaultTimeout is the deadline for a single fetch.
	DefaultTimeout = 5 * time.Second

	// DefaultSubdomainPolicy crawls the bare domain and www only.
	DefaultSubdomainPolicy = string(scope.PolicyWWWOnly)

	// DefaultBatchSize is how many seeds are crawled at the same time.
	DefaultBatchSize = 4

	// DefaultMaxPages of 0 means no page limit; the crawl ends when the
	// frontier is exhausted.
	DefaultMaxPages = 0

	// DefaultUserAgent identifies mailharvest in HTTP requests.
	DefaultUserAgent = "mailharvest/1.0 (+https://github.com/nao1215/mailharvest)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Config holds all configuration options for mailharvest.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// ConcurrencyLimit caps simultaneous fetches within one crawl.
	ConcurrencyLimit int

	// FetchTimeout is the maximum wait for one fetch, from dial to last byte.
	FetchTimeout time.Duration

	// SubdomainPolicy is "www-only" or "match-seed".
	SubdomainPolicy string

	// MaxPages caps the number of fetches per seed. 0 means unlimited.
	MaxPages int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogJSON writes log records as JSON instead of text.
	LogJSON bool

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .mailharvest in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects GitHub Flavored Markdown output with tables and
	// a pie chart. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// IncludePages adds per-page details to JSON and Markdown reports.
	IncludePages bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// Targets is the list of seed domains or URLs to crawl.
	Targets []string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// DBDir is the directory path for the SQLite run archive.
	// Defaults to XDG data directory (~/.local/share/mailharvest on Linux).
	DBDir string

	// SaveToDB archives every crawl result in the database.
	// The archive is write-only from the crawler's point of view.
	SaveToDB bool

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ConcurrencyLimit: DefaultConcurrency,
		FetchTimeout:     DefaultTimeout,
		SubdomainPolicy:  DefaultSubdomainPolicy,
		MaxPages:         DefaultMaxPages,
		BatchSize:        DefaultBatchSize,
		UserAgent:        DefaultUserAgent,
		MaxBodySize:      DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for mailharvest.
// On Linux: ~/.local/share/mailharvest
// On macOS: ~/Library/Application Support/mailharvest
// On Windows: %LOCALAPPDATA%\mailharvest
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for mailharvest.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Policy returns the parsed subdomain policy.
func (c *Config) Policy() (scope.SubdomainPolicy, error) {
	p, err := scope.ParseSubdomainPolicy(c.SubdomainPolicy)
	if err != nil {
		return "", ErrInvalidSubdomainPolicy
	}
	return p, nil
}

// Validate checks if the configuration is valid.
// It returns the first problem found as one of the sentinel errors.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.ConcurrencyLimit <= 0 {
		return ErrInvalidConcurrency
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if _, err := c.Policy(); err != nil {
		return err
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	return nil
}
