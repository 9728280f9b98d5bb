package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/mailharvest/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "mailharvest.db"

// CrawlDB provides SQLite-based storage for crawl runs.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	// busy_timeout lets a second process (e.g. history during a crawl) wait
	// for the write lock instead of failing with SQLITE_BUSY.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		registered_domain TEXT,
		allowed_subdomain TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_fetched INTEGER DEFAULT 0,
		pages_failed INTEGER DEFAULT 0,
		urls_discovered INTEGER DEFAULT 0,
		email_count INTEGER DEFAULT 0,
		error TEXT,
		result_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Emails harvested by each run
	CREATE TABLE IF NOT EXISTS emails (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		UNIQUE(run_id, email)
	);

	CREATE INDEX IF NOT EXISTS idx_emails_email ON emails(email);

	-- Pages fetched by each run, only when page recording was enabled
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		size INTEGER,
		raw_hash TEXT,
		emails TEXT,
		links_found INTEGER,
		links_queued INTEGER,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a crawl result and returns the id of the new run.
// The run, its emails and its pages are written in one transaction.
func (cdb *CrawlDB) SaveRun(ctx context.Context, result *model.CrawlResult) (id int64, err error) {
	if result == nil {
		return 0, errors.New("cannot save nil crawl result")
	}

	// Pages live in their own table.
	stored := *result
	stored.Pages = nil
	resultJSON, err := json.Marshal(&stored)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize result: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (seed, registered_domain, allowed_subdomain, started_at, finished_at,
		pages_fetched, pages_failed, urls_discovered, email_count, error, result_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.Seed,
		result.RegisteredDomain,
		result.AllowedSubdomain,
		formatTimestamp(result.StartedAt),
		formatTimestamp(result.FinishedAt),
		result.PagesFetched,
		result.PagesFailed,
		result.URLsDiscovered,
		len(result.Emails),
		result.Error,
		string(resultJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, email := range result.Emails {
		if _, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO emails (run_id, email) VALUES (?, ?)`,
			id, email,
		); err != nil {
			return 0, fmt.Errorf("failed to insert email: %w", err)
		}
	}

	for _, p := range result.Pages {
		emailsJSON, mErr := json.Marshal(p.Emails)
		if mErr != nil {
			err = fmt.Errorf("failed to serialize page emails: %w", mErr)
			return 0, err
		}
		if _, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO pages (run_id, url, status_code, content_type, size, raw_hash,
			emails, links_found, links_queued)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			id, p.URL, p.StatusCode, p.ContentType, p.Size, p.Hash,
			string(emailsJSON), p.LinksFound, p.LinksQueued,
		); err != nil {
			return 0, fmt.Errorf("failed to insert page: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return id, nil
}

// GetRun retrieves a run by its database ID, pages included.
// It returns nil without error if no such run exists.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*model.CrawlResult, error) {
	var resultJSON string
	err := cdb.db.QueryRowContext(ctx,
		`SELECT result_json FROM runs WHERE id = ?`, id,
	).Scan(&resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var result model.CrawlResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}

	pages, err := cdb.getPages(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Pages = pages

	return &result, nil
}

// getPages returns the pages of a run in URL order.
func (cdb *CrawlDB) getPages(ctx context.Context, runID int64) ([]model.Page, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, status_code, content_type, size, raw_hash, emails, links_found, links_queued
	FROM pages
	WHERE run_id = ?
	ORDER BY url
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []model.Page
	for rows.Next() {
		var p model.Page
		var emailsJSON string

		if err := rows.Scan(
			&p.URL,
			&p.StatusCode,
			&p.ContentType,
			&p.Size,
			&p.Hash,
			&emailsJSON,
			&p.LinksFound,
			&p.LinksQueued,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		if emailsJSON != "" {
			if err := json.Unmarshal([]byte(emailsJSON), &p.Emails); err != nil {
				return nil, fmt.Errorf("failed to parse page emails: %w", err)
			}
		}
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing runs without loading the full result.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Seed is the crawled seed URL.
	Seed string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Elapsed is how long the run took.
	Elapsed time.Duration

	// Emails is the number of addresses harvested.
	Emails int

	// PagesFetched and PagesFailed are the fetch counters of the run.
	PagesFetched int
	PagesFailed  int

	// Error is set when the run was aborted.
	Error string
}

// ListRuns returns stored runs, newest first.
// An empty seed lists the runs of every seed.
func (cdb *CrawlDB) ListRuns(ctx context.Context, seed string) ([]RunMetadata, error) {
	query := `
	SELECT id, seed, started_at, finished_at, email_count, pages_fetched, pages_failed, error
	FROM runs
	WHERE 1=1
	`
	args := make([]any, 0, 1)

	if seed != "" {
		query += " AND seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, id DESC"

	return cdb.queryRuns(ctx, query, args...)
}

// FindEmail returns the runs that harvested email, newest first.
func (cdb *CrawlDB) FindEmail(ctx context.Context, email string) ([]RunMetadata, error) {
	query := `
	SELECT r.id, r.seed, r.started_at, r.finished_at, r.email_count, r.pages_fetched, r.pages_failed, r.error
	FROM runs r
	JOIN emails e ON e.run_id = r.id
	WHERE e.email = ?
	ORDER BY r.started_at DESC, r.id DESC
	`
	return cdb.queryRuns(ctx, query, email)
}

func (cdb *CrawlDB) queryRuns(ctx context.Context, query string, args ...any) ([]RunMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var finishedAt, runErr sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.Seed,
			&startedAt,
			&finishedAt,
			&meta.Emails,
			&meta.PagesFetched,
			&meta.PagesFailed,
			&runErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			if end := parseTimestamp(finishedAt.String); !end.IsZero() && !meta.StartedAt.IsZero() {
				meta.Elapsed = end.Sub(meta.StartedAt)
			}
		}
		meta.Error = runErr.String

		runs = append(runs, meta)
	}

	return runs, rows.Err()
}

// ListSeeds returns every archived seed in alphabetical order.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed FROM runs ORDER BY seed`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// timestampLayout has a fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,           // formatTimestamp output
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
