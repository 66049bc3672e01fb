package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

func TestVacancyStore_CRUD(t *testing.T) {
	t.Parallel()

	s := NewVacancyStore()
	ctx := context.Background()

	_, err := s.FindByIdentity(ctx, "src-1", "ext:42")
	require.ErrorIs(t, err, scraper.ErrNotFound)

	record := scraper.VacancyRecord{ID: "rec-1", SourceID: "src-1", Title: "Dev", Company: "Acme"}
	require.NoError(t, s.Insert(ctx, "ext:42", record))
	require.Error(t, s.Insert(ctx, "ext:42", record))
	require.Equal(t, 1, s.Len())

	got, err := s.FindByIdentity(ctx, "src-1", "ext:42")
	require.NoError(t, err)
	require.Equal(t, "Dev", got.Title)

	// Same identity key under another source is distinct.
	_, err = s.FindByIdentity(ctx, "src-2", "ext:42")
	require.ErrorIs(t, err, scraper.ErrNotFound)

	record.Title = "Senior Dev"
	require.NoError(t, s.Update(ctx, "ext:42", record))
	got, err = s.FindByIdentity(ctx, "src-1", "ext:42")
	require.NoError(t, err)
	require.Equal(t, "Senior Dev", got.Title)

	missing := scraper.VacancyRecord{SourceID: "src-1"}
	require.ErrorIs(t, s.Update(ctx, "ext:ghost", missing), scraper.ErrNotFound)
}

func TestRunStore_CRUD(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	ctx := context.Background()

	run := scraper.ScrapeRun{ID: "run-1", SourceID: "src-1", Status: scraper.RunPending, Submitted: time.Unix(100, 0)}
	require.NoError(t, s.CreateRun(ctx, run))
	require.Error(t, s.CreateRun(ctx, run))

	run.Status = scraper.RunCompleted
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, scraper.RunCompleted, got.Status)

	_, err = s.GetRun(ctx, "ghost")
	require.ErrorIs(t, err, scraper.ErrNotFound)
	require.ErrorIs(t, s.UpdateRun(ctx, scraper.ScrapeRun{ID: "ghost"}), scraper.ErrNotFound)
}

func TestRunStore_ListRunsOrderAndLimit(t *testing.T) {
	t.Parallel()

	s := NewRunStore()
	ctx := context.Background()

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateRun(ctx, scraper.ScrapeRun{
			ID:        id,
			SourceID:  "src-1",
			Submitted: time.Unix(int64(100*i), 0),
		}))
	}
	require.NoError(t, s.CreateRun(ctx, scraper.ScrapeRun{ID: "other", SourceID: "src-2", Submitted: time.Unix(999, 0)}))

	runs, err := s.ListRuns(ctx, "src-1", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "new", runs[0].ID)
	require.Equal(t, "mid", runs[1].ID)
}
