package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// RunStore persists scrape runs in the scrape_runs table:
//
//	CREATE TABLE scrape_runs (
//	    id UUID PRIMARY KEY,
//	    source_id TEXT NOT NULL,
//	    attempt INT NOT NULL,
//	    status TEXT NOT NULL,
//	    submitted_at TIMESTAMPTZ NOT NULL,
//	    started_at TIMESTAMPTZ,
//	    finished_at TIMESTAMPTZ,
//	    fetched INT NOT NULL DEFAULT 0,
//	    created INT NOT NULL DEFAULT 0,
//	    updated INT NOT NULL DEFAULT 0,
//	    unchanged INT NOT NULL DEFAULT 0,
//	    skipped INT NOT NULL DEFAULT 0,
//	    failed INT NOT NULL DEFAULT 0,
//	    errors TEXT[]
//	);
type RunStore struct {
	pool dbconn
}

// NewRunStore connects a pool and returns the store.
func NewRunStore(ctx context.Context, cfg Config) (*RunStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RunStore{pool: pool}, nil
}

// NewRunStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewRunStoreWithPool(pool dbconn) *RunStore {
	return &RunStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *RunStore) Close() {
	s.pool.Close()
}

const runColumns = `id, source_id, attempt, status, submitted_at, started_at, finished_at,
	fetched, created, updated, unchanged, skipped, failed, errors`

// CreateRun inserts a freshly scheduled run.
func (s *RunStore) CreateRun(ctx context.Context, run scraper.ScrapeRun) error {
	query := `INSERT INTO scrape_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.pool.Exec(ctx, query,
		run.ID, run.SourceID, run.Attempt, run.Status, run.Submitted,
		run.Started, run.Finished,
		run.Counters.Fetched, run.Counters.Created, run.Counters.Updated,
		run.Counters.Unchanged, run.Counters.Skipped, run.Counters.Failed,
		run.Errors,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRun persists status, counters and errors for an existing run.
func (s *RunStore) UpdateRun(ctx context.Context, run scraper.ScrapeRun) error {
	query := `UPDATE scrape_runs SET
		attempt = $2, status = $3, started_at = $4, finished_at = $5,
		fetched = $6, created = $7, updated = $8, unchanged = $9,
		skipped = $10, failed = $11, errors = $12
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		run.ID, run.Attempt, run.Status, run.Started, run.Finished,
		run.Counters.Fetched, run.Counters.Created, run.Counters.Updated,
		run.Counters.Unchanged, run.Counters.Skipped, run.Counters.Failed,
		run.Errors,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scraper.ErrNotFound
	}
	return nil
}

// GetRun loads one run by ID.
func (s *RunStore) GetRun(ctx context.Context, runID string) (scraper.ScrapeRun, error) {
	query := `SELECT ` + runColumns + ` FROM scrape_runs WHERE id = $1`
	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return scraper.ScrapeRun{}, scraper.ErrNotFound
	}
	if err != nil {
		return scraper.ScrapeRun{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns a source's runs, most recently submitted first.
func (s *RunStore) ListRuns(ctx context.Context, sourceID string, limit int) ([]scraper.ScrapeRun, error) {
	query := `SELECT ` + runColumns + ` FROM scrape_runs
		WHERE source_id = $1 ORDER BY submitted_at DESC LIMIT $2`
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, query, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []scraper.ScrapeRun
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs rows: %w", err)
	}
	return out, nil
}

func scanRun(row pgx.Row) (scraper.ScrapeRun, error) {
	var run scraper.ScrapeRun
	err := row.Scan(
		&run.ID, &run.SourceID, &run.Attempt, &run.Status, &run.Submitted,
		&run.Started, &run.Finished,
		&run.Counters.Fetched, &run.Counters.Created, &run.Counters.Updated,
		&run.Counters.Unchanged, &run.Counters.Skipped, &run.Counters.Failed,
		&run.Errors,
	)
	if err != nil {
		return scraper.ScrapeRun{}, err
	}
	return run, nil
}
