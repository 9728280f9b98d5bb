package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/mailharvest/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// newTestResult creates a finished crawl result for testing.
func newTestResult(seed string, started time.Time, emails ...string) *model.CrawlResult {
	r := model.NewCrawlResult(seed)
	r.RegisteredDomain = "example.com"
	r.StartedAt = started
	r.FinishedAt = started.Add(2 * time.Second)
	r.SetEmails(emails)
	r.PagesFetched = 3
	r.RecordFailure(model.FailureProtocol)
	r.URLsDiscovered = 4
	return r
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, FileName)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")

		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		ctx := context.Background()

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		id, err := db1.SaveRun(ctx, newTestResult("http://example.com", time.Now(), "a@example.com"))
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		got, err := db2.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got == nil {
			t.Error("expected run to persist")
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()

	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

// TestSaveAndGetRun tests storing and retrieving a full run.
func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("round trips counters emails and pages", func(t *testing.T) {
		t.Parallel()

		r := newTestResult("http://example.com", time.Now(), "b@example.com", "a@example.com")
		r.Pages = []model.Page{
			{URL: "http://example.com/", StatusCode: 200, ContentType: "text/html", Size: 10, Hash: "abc", Emails: []string{"a@example.com"}, LinksFound: 2, LinksQueued: 1},
			{URL: "http://example.com/about", StatusCode: 200, ContentType: "text/html", Size: 20, Hash: "def", LinksFound: 0},
		}

		id, err := db.SaveRun(ctx, r)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		if id <= 0 {
			t.Fatalf("expected positive id, got %d", id)
		}

		got, err := db.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got == nil {
			t.Fatal("expected run to exist")
		}

		if got.Seed != r.Seed {
			t.Errorf("Seed = %q, want %q", got.Seed, r.Seed)
		}
		if len(got.Emails) != 2 || got.Emails[0] != "a@example.com" {
			t.Errorf("unexpected emails %v", got.Emails)
		}
		if got.PagesFetched != 3 || got.PagesFailed != 1 {
			t.Errorf("unexpected counters fetched=%d failed=%d", got.PagesFetched, got.PagesFailed)
		}
		if got.Failures[model.FailureProtocol] != 1 {
			t.Errorf("expected failure breakdown, got %v", got.Failures)
		}
		if len(got.Pages) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(got.Pages))
		}
		if got.Pages[0].URL != "http://example.com/" || got.Pages[0].LinksQueued != 1 {
			t.Errorf("unexpected first page %+v", got.Pages[0])
		}
		if len(got.Pages[0].Emails) != 1 {
			t.Errorf("expected page emails to round trip, got %v", got.Pages[0].Emails)
		}
	})

	t.Run("returns nil for non-existent run", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetRun(ctx, 99999)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Error("expected nil for non-existent run")
		}
	})

	t.Run("rejects nil result", func(t *testing.T) {
		t.Parallel()

		if _, err := db.SaveRun(ctx, nil); err == nil {
			t.Error("expected error for nil result")
		}
	})
}

// TestListRuns tests run listing and filtering.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	runs := []*model.CrawlResult{
		newTestResult("http://example.com", base, "a@example.com"),
		newTestResult("http://example.org", base.Add(time.Minute), "b@example.org", "c@example.org"),
		newTestResult("http://example.com", base.Add(2*time.Minute)),
	}
	runs[2].Error = "context canceled"

	for _, r := range runs {
		if _, err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	t.Run("lists all runs newest first", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListRuns(ctx, "")
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(got))
		}
		if !got[0].StartedAt.Equal(base.Add(2 * time.Minute)) {
			t.Errorf("expected newest run first, got %v", got[0].StartedAt)
		}
		if got[0].Error != "context canceled" {
			t.Errorf("expected error to be listed, got %q", got[0].Error)
		}
		if got[1].Emails != 2 {
			t.Errorf("expected 2 emails, got %d", got[1].Emails)
		}
		if got[1].Elapsed != 2*time.Second {
			t.Errorf("expected 2s elapsed, got %v", got[1].Elapsed)
		}
	})

	t.Run("filters by seed", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListRuns(ctx, "http://example.com")
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(got))
		}
		for _, m := range got {
			if m.Seed != "http://example.com" {
				t.Errorf("unexpected seed %q", m.Seed)
			}
		}
	})

	t.Run("lists seeds", func(t *testing.T) {
		t.Parallel()

		got, err := db.ListSeeds(ctx)
		if err != nil {
			t.Fatalf("failed to list seeds: %v", err)
		}
		want := []string{"http://example.com", "http://example.org"}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("ListSeeds = %v, want %v", got, want)
		}
	})

	t.Run("finds runs by email", func(t *testing.T) {
		t.Parallel()

		got, err := db.FindEmail(ctx, "c@example.org")
		if err != nil {
			t.Fatalf("failed to find email: %v", err)
		}
		if len(got) != 1 || got[0].Seed != "http://example.org" {
			t.Errorf("unexpected runs %+v", got)
		}

		none, err := db.FindEmail(ctx, "nobody@example.net")
		if err != nil {
			t.Fatalf("failed to find email: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no runs, got %d", len(none))
		}
	})
}

// TestParseTimestamp tests parsing of the stored timestamp formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"stored layout", formatTimestamp(want)},
		{"sqlite default", "2026-05-06 07:08:09"},
		{"rfc3339", "2026-05-06T07:08:09Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseTimestamp(tt.input); !got.Equal(want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}

	if !parseTimestamp("not a time").IsZero() {
		t.Error("expected zero time for invalid input")
	}
	if formatTimestamp(time.Time{}) != "" {
		t.Error("expected empty string for zero time")
	}
}
