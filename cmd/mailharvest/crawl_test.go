package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/mailharvest/internal/config"
	"github.com/nao1215/mailharvest/internal/fetcher"
	mhlog "github.com/nao1215/mailharvest/internal/log"
	"github.com/nao1215/mailharvest/internal/report"
)

// newTestSite serves a small site with two reachable pages, one orphan
// page, and one broken link.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body>
			<p>Write to info@example.com</p>
			<a href="/contact">Contact</a>
			<a href="/missing">Broken</a>
			<a href="https://elsewhere.example.net/">Out of scope</a>
		</body></html>`)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<a href="mailto:sales@example.com?subject=hi">Sales</a> <a href="/">Home</a>`)
	})
	mux.HandleFunc("/orphan", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `hidden@example.com`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeConfigFile writes a .mailharvest file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

// executeRoot runs the root command with args and returns stdout and stderr.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Name() != "crawl" {
			t.Errorf("expected name 'crawl', got %q", cmd.Name())
		}
	})

	flags := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"concurrency", "n", "10"},
		{"timeout", "t", "5s"},
		{"subdomains", "s", "www-only"},
		{"max-pages", "p", "0"},
		{"batch", "b", "4"},
		{"config", "c", ""},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"output", "o", ""},
		{"proxy", "", ""},
		{"save", "", "false"},
		{"db-dir", "", ""},
		{"pages", "", "false"},
		{"log-json", "", "false"},
	}

	for _, tt := range flags {
		t.Run("has "+tt.name+" flag", func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestGetVerboseFlag tests reading the persistent verbose flag.
func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("returns false when flag not defined", func(t *testing.T) {
		t.Parallel()

		if getVerboseFlag(NewCrawlCmd()) {
			t.Error("expected false")
		}
	})

	t.Run("returns value from parent verbose flag", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		if err := root.PersistentFlags().Set("verbose", "true"); err != nil {
			t.Fatalf("failed to set flag: %v", err)
		}
		crawl, _, err := root.Find([]string{"crawl"})
		if err != nil {
			t.Fatalf("failed to find crawl command: %v", err)
		}
		if !getVerboseFlag(crawl) {
			t.Error("expected true from parent flag")
		}
	})
}

// TestNewLogger tests logger format selection.
func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		logJSON bool
		want    string
	}{
		{name: "text by default", logJSON: false, want: "msg=\"page fetched\""},
		{name: "json when requested", logJSON: true, want: `"msg":"page fetched"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := newLogger(&config.Config{LogJSON: tt.logJSON, Verbose: true}, &buf)
			logger.Info("page fetched", "cookie", "session=abc")

			output := buf.String()
			if !strings.Contains(output, tt.want) {
				t.Errorf("expected %q in %q", tt.want, output)
			}
			if strings.Contains(output, "session=abc") {
				t.Error("expected cookie value to be redacted")
			}
		})
	}
}

// TestBuildConfig tests building Config from flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	parse := func(t *testing.T, args ...string) (*config.Config, error) {
		t.Helper()
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		return buildConfig(cmd, cmd.Flags().Args())
	}

	t.Run("builds config with default values", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "defaults: {}\n")
		cfg, err := parse(t, "-c", cfgPath, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ConcurrencyLimit != config.DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", config.DefaultConcurrency, cfg.ConcurrencyLimit)
		}
		if cfg.FetchTimeout != config.DefaultTimeout {
			t.Errorf("expected timeout %v, got %v", config.DefaultTimeout, cfg.FetchTimeout)
		}
		if cfg.SubdomainPolicy != config.DefaultSubdomainPolicy {
			t.Errorf("expected policy %q, got %q", config.DefaultSubdomainPolicy, cfg.SubdomainPolicy)
		}
		if cfg.SaveToDB {
			t.Error("expected archive to be off by default")
		}
		if cfg.DBDir != config.XDGDataDir() {
			t.Errorf("expected XDG data dir, got %q", cfg.DBDir)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "example.com" {
			t.Errorf("unexpected targets %v", cfg.Targets)
		}
	})

	t.Run("builds config with custom flags", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "defaults: {}\n")
		cfg, err := parse(t,
			"-c", cfgPath,
			"-n", "3",
			"-t", "2s",
			"-s", "match-seed",
			"-p", "50",
			"-b", "2",
			"--proxy", "127.0.0.1:9050",
			"-j",
			"--pages",
			"-o", "out.json",
			"--save",
			"--db-dir", "/tmp/mh",
			"--log-json",
			"a.example", "b.example",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.ConcurrencyLimit != 3 || cfg.FetchTimeout != 2*time.Second || cfg.MaxPages != 50 || cfg.BatchSize != 2 {
			t.Errorf("unexpected crawl settings %+v", cfg)
		}
		if cfg.SubdomainPolicy != "match-seed" {
			t.Errorf("expected match-seed, got %q", cfg.SubdomainPolicy)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" {
			t.Errorf("unexpected proxy %q", cfg.ProxyAddress)
		}
		if !cfg.JSONReport || !cfg.IncludePages || cfg.ReportFile != "out.json" {
			t.Errorf("unexpected report settings %+v", cfg)
		}
		if !cfg.SaveToDB || cfg.DBDir != "/tmp/mh" {
			t.Errorf("unexpected archive settings %+v", cfg)
		}
		if !cfg.LogJSON {
			t.Error("expected JSON logging")
		}
		if len(cfg.Targets) != 2 {
			t.Errorf("expected 2 targets, got %v", cfg.Targets)
		}
	})

	t.Run("loads site configs from file", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, `
defaults:
  ignorePatterns: ["*.pdf"]
sites:
  example.com:
    cookie: "session=abc"
    concurrency: 2
`)
		cfg, err := parse(t, "-c", cfgPath, "example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		site := siteConfigFor(cfg, "www.example.com/path")
		if site.Cookie != "session=abc" || site.Concurrency != 2 {
			t.Errorf("unexpected site config %+v", site)
		}
		if len(site.IgnorePatterns) != 1 {
			t.Errorf("expected defaults to be merged, got %+v", site)
		}
	})

	t.Run("returns error for missing explicit config file", func(t *testing.T) {
		t.Parallel()

		_, err := parse(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "example.com")
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("returns error for invalid config file", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "sites: [not, a, map]\n")
		if _, err := parse(t, "-c", cfgPath, "example.com"); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

// TestSpiderOptions tests merging of global and site settings.
func TestSpiderOptions(t *testing.T) {
	t.Parallel()

	logger := mhlog.NewSecureLogger(io.Discard, false)

	t.Run("accepts valid site policy", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		opts, err := spiderOptions(cfg, config.SiteConfig{Subdomains: "match-seed", Concurrency: 2}, logger)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(opts) == 0 {
			t.Error("expected options")
		}
	})

	t.Run("rejects invalid site policy", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		if _, err := spiderOptions(cfg, config.SiteConfig{Subdomains: "everything"}, logger); err == nil {
			t.Error("expected error for invalid site policy")
		}
	})

	t.Run("factory applies site concurrency", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.SiteConfigs = &config.File{
			Sites: map[string]config.SiteConfig{"example.com": {Concurrency: 3}},
		}

		c, err := newSpiderFactory(cfg, logger)("http://example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		spider, ok := c.(interface{ Concurrency() int })
		if !ok {
			t.Fatalf("unexpected crawler type %T", c)
		}
		if spider.Concurrency() != 3 {
			t.Errorf("expected concurrency 3, got %d", spider.Concurrency())
		}
	})
}

// TestNewReportWriter tests report format selection.
func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		json     bool
		markdown bool
		want     string
	}{
		{"plain by default", false, false, "*report.SimpleWriter"},
		{"json", true, false, "*report.JSONWriter"},
		{"markdown", false, true, "*report.MarkdownWriter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.NewConfig()
			cfg.JSONReport = tt.json
			cfg.MarkdownReport = tt.markdown

			w := newReportWriter(cfg, io.Discard, io.Discard)
			if got := fmt.Sprintf("%T", w); got != tt.want {
				t.Errorf("writer type = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestRunCrawl tests the crawl flow against a local site.
func TestRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("prints emails one per line", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		cfgPath := writeConfigFile(t, "defaults: {}\n")

		stdout, _, err := executeRoot(t, "crawl", "-c", cfgPath, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "info@example.com\nsales@example.com\n"
		if stdout != want {
			t.Errorf("stdout = %q, want %q", stdout, want)
		}
	})

	t.Run("writes JSON report to file", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		cfgPath := writeConfigFile(t, "defaults: {}\n")
		outPath := filepath.Join(t.TempDir(), "reports", "out.json")

		stdout, _, err := executeRoot(t, "crawl", "-c", cfgPath, "-j", "-o", outPath, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout, got %q", stdout)
		}

		data, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("failed to read report: %v", err)
		}
		var rep report.JSONReport
		if err := json.Unmarshal(data, &rep); err != nil {
			t.Fatalf("invalid JSON report: %v", err)
		}
		if len(rep.Results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(rep.Results))
		}
		r := rep.Results[0]
		if r.PagesFetched != 2 || r.PagesFailed != 1 {
			t.Errorf("expected 2 fetched and 1 failed, got %d and %d", r.PagesFetched, r.PagesFailed)
		}
	})

	t.Run("ignore patterns from config file apply", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		cfgPath := writeConfigFile(t, "defaults:\n  ignorePatterns: [\"/contact\"]\n")

		stdout, _, err := executeRoot(t, "crawl", "-c", cfgPath, srv.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "info@example.com\n" {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("invalid seed fails the run", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfigFile(t, "defaults: {}\n")

		_, stderr, err := executeRoot(t, "crawl", "-c", cfgPath, "ftp://example.com")
		if err == nil {
			t.Fatal("expected error for invalid seed")
		}
		if !strings.Contains(err.Error(), "1 of 1 seed(s) failed") {
			t.Errorf("unexpected error %v", err)
		}
		if !strings.Contains(stderr, "ftp://example.com") {
			t.Errorf("expected failing seed on stderr, got %q", stderr)
		}
	})

	t.Run("rejects conflicting formats", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeRoot(t, "crawl", "-j", "-m", "example.com")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("rejects missing target", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeRoot(t, "crawl")
		if !errors.Is(err, config.ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("rejects invalid proxy before crawling", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Targets = []string{"example.com"}
		cfg.ProxyAddress = "not-a-proxy"

		err := runCrawl(context.Background(), cfg, mhlog.NewSecureLogger(io.Discard, false), io.Discard, io.Discard)
		if !errors.Is(err, fetcher.ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("cancelled context returns partial results", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Targets = []string{"example.com"}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var stdout bytes.Buffer
		err := runCrawl(ctx, cfg, mhlog.NewSecureLogger(io.Discard, false), &stdout, io.Discard)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
