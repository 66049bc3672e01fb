package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

func sampleRun(now time.Time) scraper.ScrapeRun {
	started := now.Add(time.Second)
	finished := now.Add(time.Minute)
	return scraper.ScrapeRun{
		ID:        "run-1",
		SourceID:  "src-1",
		Attempt:   1,
		Status:    scraper.RunCompleted,
		Submitted: now,
		Started:   &started,
		Finished:  &finished,
		Counters:  scraper.RunCounters{Fetched: 10, Created: 4, Updated: 2, Unchanged: 3, Skipped: 1},
		Errors:    []string{"page 3: http status 500"},
	}
}

func TestRunStore_CreateRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewRunStoreWithPool(mock)
	run := sampleRun(time.Unix(1700000000, 0).UTC())

	mock.ExpectExec("INSERT INTO scrape_runs").
		WithArgs(
			run.ID, run.SourceID, run.Attempt, run.Status, run.Submitted,
			run.Started, run.Finished,
			run.Counters.Fetched, run.Counters.Created, run.Counters.Updated,
			run.Counters.Unchanged, run.Counters.Skipped, run.Counters.Failed,
			run.Errors,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_UpdateRunNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewRunStoreWithPool(mock)
	run := sampleRun(time.Unix(1700000000, 0).UTC())

	mock.ExpectExec("UPDATE scrape_runs SET").
		WithArgs(
			run.ID, run.Attempt, run.Status, run.Started, run.Finished,
			run.Counters.Fetched, run.Counters.Created, run.Counters.Updated,
			run.Counters.Unchanged, run.Counters.Skipped, run.Counters.Failed,
			run.Errors,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, store.UpdateRun(context.Background(), run), scraper.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_GetRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewRunStoreWithPool(mock)
	run := sampleRun(time.Unix(1700000000, 0).UTC())

	rows := pgxmock.NewRows([]string{
		"id", "source_id", "attempt", "status", "submitted_at", "started_at", "finished_at",
		"fetched", "created", "updated", "unchanged", "skipped", "failed", "errors",
	}).AddRow(
		run.ID, run.SourceID, run.Attempt, run.Status, run.Submitted, run.Started, run.Finished,
		run.Counters.Fetched, run.Counters.Created, run.Counters.Updated,
		run.Counters.Unchanged, run.Counters.Skipped, run.Counters.Failed, run.Errors,
	)

	mock.ExpectQuery("SELECT (.+) FROM scrape_runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(rows)

	got, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, run, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_GetRunNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewRunStoreWithPool(mock)

	mock.ExpectQuery("SELECT (.+) FROM scrape_runs WHERE id").
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = store.GetRun(context.Background(), "ghost")
	require.ErrorIs(t, err, scraper.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunStore_ListRuns(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewRunStoreWithPool(mock)
	run := sampleRun(time.Unix(1700000000, 0).UTC())

	rows := pgxmock.NewRows([]string{
		"id", "source_id", "attempt", "status", "submitted_at", "started_at", "finished_at",
		"fetched", "created", "updated", "unchanged", "skipped", "failed", "errors",
	}).AddRow(
		run.ID, run.SourceID, run.Attempt, run.Status, run.Submitted, run.Started, run.Finished,
		run.Counters.Fetched, run.Counters.Created, run.Counters.Updated,
		run.Counters.Unchanged, run.Counters.Skipped, run.Counters.Failed, run.Errors,
	)

	mock.ExpectQuery("SELECT (.+) FROM scrape_runs").
		WithArgs("src-1", 10).
		WillReturnRows(rows)

	got, err := store.ListRuns(context.Background(), "src-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, run, got[0])
	require.NoError(t, mock.ExpectationsWereMet())
}
