package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

func finishedRun(id, sourceID string, status scraper.RunStatus, counters scraper.RunCounters, at time.Time) scraper.ScrapeRun {
	return scraper.ScrapeRun{
		ID:       id,
		SourceID: sourceID,
		Status:   status,
		Finished: &at,
		Counters: counters,
	}
}

func TestReporter_FoldsRunCounters(t *testing.T) {
	t.Parallel()

	r := NewReporter(10)
	at := time.Unix(1000, 0)

	r.RunStarted("src-1", "run-1")
	snap, ok := r.SourceSnapshot("src-1")
	require.True(t, ok)
	require.Equal(t, "run-1", snap.ActiveRunID)

	r.RunFinished(finishedRun("run-1", "src-1", scraper.RunCompleted, scraper.RunCounters{
		Fetched: 10, Created: 4, Updated: 2, Unchanged: 3, Skipped: 1,
	}, at))

	snap, ok = r.SourceSnapshot("src-1")
	require.True(t, ok)
	require.Empty(t, snap.ActiveRunID)
	require.Equal(t, "completed", snap.LastStatus)
	require.Equal(t, int64(1), snap.TotalRuns)
	require.Equal(t, int64(10), snap.TotalScraped)
	require.Equal(t, int64(4), snap.TotalCreated)
	require.Equal(t, int64(2), snap.TotalUpdated)
	require.Equal(t, float64(10), snap.AvgListings)
	require.Equal(t, 1.0, snap.SuccessRate)
	require.NotNil(t, snap.LastRunAt)
	require.Equal(t, at, *snap.LastRunAt)
}

func TestReporter_SuccessRateIsRolling(t *testing.T) {
	t.Parallel()

	r := NewReporter(4)
	at := time.Unix(1000, 0)

	// Two failures followed by six successes; the window of 4 only sees
	// successes at the end.
	for i := 0; i < 2; i++ {
		r.RunFinished(finishedRun("f", "src-1", scraper.RunFailed, scraper.RunCounters{}, at))
	}
	snap, _ := r.SourceSnapshot("src-1")
	require.Equal(t, 0.0, snap.SuccessRate)

	for i := 0; i < 6; i++ {
		r.RunFinished(finishedRun("s", "src-1", scraper.RunCompleted, scraper.RunCounters{Fetched: 5, Created: 5}, at))
	}
	snap, _ = r.SourceSnapshot("src-1")
	require.Equal(t, 1.0, snap.SuccessRate)
	require.Equal(t, int64(8), snap.TotalRuns)
}

func TestReporter_SourcesAreIndependent(t *testing.T) {
	t.Parallel()

	r := NewReporter(10)
	at := time.Unix(1000, 0)

	r.RunFinished(finishedRun("a", "src-1", scraper.RunCompleted, scraper.RunCounters{Fetched: 3, Created: 3}, at))
	r.RunFinished(finishedRun("b", "src-2", scraper.RunFailed, scraper.RunCounters{Failed: 2}, at))

	require.Len(t, r.Snapshot(), 2)

	one, _ := r.SourceSnapshot("src-1")
	two, _ := r.SourceSnapshot("src-2")
	require.Equal(t, 1.0, one.SuccessRate)
	require.Equal(t, 0.0, two.SuccessRate)
	require.Equal(t, int64(2), two.TotalFailed)
}

func TestReporter_UnknownSource(t *testing.T) {
	t.Parallel()

	r := NewReporter(10)
	_, ok := r.SourceSnapshot("ghost")
	require.False(t, ok)
	require.Empty(t, r.Snapshot())
}
