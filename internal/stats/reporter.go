// Package stats aggregates scrape run outcomes into a queryable,
// per-source rolling view.
package stats

import (
	"sync"
	"time"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// SourceStats is a read-only snapshot of one source's aggregate.
type SourceStats struct {
	SourceID      string     `json:"source"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastStatus    string     `json:"status,omitempty"`
	ActiveRunID   string     `json:"active_run_id,omitempty"`
	SuccessRate   float64    `json:"success_rate"`
	AvgListings   float64    `json:"avg_listings_per_run"`
	TotalRuns     int64      `json:"total_runs"`
	TotalScraped  int64      `json:"total_scraped"`
	TotalCreated  int64      `json:"created"`
	TotalUpdated  int64      `json:"updated"`
	TotalFailed   int64      `json:"failed"`
}

// sourceAgg is the mutable aggregate behind a snapshot. The rolling
// window ring buffer feeds the success rate.
type sourceAgg struct {
	lastRunAt    time.Time
	lastStatus   scraper.RunStatus
	activeRunID  string
	totalRuns    int64
	listingSum   int64
	totalScraped int64
	totalCreated int64
	totalUpdated int64
	totalFailed  int64
	window       []bool
	windowNext   int
	windowFull   bool
}

// Reporter holds per-source aggregates. Only the worker that owns a
// source's active run writes to it; readers take snapshots and never
// block writers for long.
type Reporter struct {
	mu       sync.RWMutex
	bySource map[string]*sourceAgg
	window   int
}

// NewReporter constructs a Reporter with the given rolling window size.
func NewReporter(window int) *Reporter {
	if window <= 0 {
		window = 20
	}
	return &Reporter{
		bySource: make(map[string]*sourceAgg),
		window:   window,
	}
}

func (r *Reporter) agg(sourceID string) *sourceAgg {
	agg, ok := r.bySource[sourceID]
	if !ok {
		agg = &sourceAgg{window: make([]bool, r.window)}
		r.bySource[sourceID] = agg
	}
	return agg
}

// RunStarted marks a run as in flight for its source.
func (r *Reporter) RunStarted(sourceID, runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agg(sourceID).activeRunID = runID
}

// RunFinished folds a terminal run into the source aggregate.
func (r *Reporter) RunFinished(run scraper.ScrapeRun) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agg := r.agg(run.SourceID)
	if agg.activeRunID == run.ID {
		agg.activeRunID = ""
	}
	agg.lastStatus = run.Status
	if run.Finished != nil {
		agg.lastRunAt = *run.Finished
	}
	agg.totalRuns++
	agg.listingSum += int64(run.Counters.Fetched)
	agg.totalScraped += int64(run.Counters.Extracted())
	agg.totalCreated += int64(run.Counters.Created)
	agg.totalUpdated += int64(run.Counters.Updated)
	agg.totalFailed += int64(run.Counters.Failed)

	agg.window[agg.windowNext] = run.Status == scraper.RunCompleted
	agg.windowNext++
	if agg.windowNext == len(agg.window) {
		agg.windowNext = 0
		agg.windowFull = true
	}
}

// Snapshot returns the aggregate for every tracked source.
func (r *Reporter) Snapshot() []SourceStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SourceStats, 0, len(r.bySource))
	for id, agg := range r.bySource {
		out = append(out, snapshotOf(id, agg))
	}
	return out
}

// SourceSnapshot returns one source's aggregate.
func (r *Reporter) SourceSnapshot(sourceID string) (SourceStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agg, ok := r.bySource[sourceID]
	if !ok {
		return SourceStats{}, false
	}
	return snapshotOf(sourceID, agg), true
}

func snapshotOf(sourceID string, agg *sourceAgg) SourceStats {
	stats := SourceStats{
		SourceID:     sourceID,
		ActiveRunID:  agg.activeRunID,
		LastStatus:   string(agg.lastStatus),
		TotalRuns:    agg.totalRuns,
		TotalScraped: agg.totalScraped,
		TotalCreated: agg.totalCreated,
		TotalUpdated: agg.totalUpdated,
		TotalFailed:  agg.totalFailed,
	}
	if !agg.lastRunAt.IsZero() {
		at := agg.lastRunAt
		stats.LastRunAt = &at
	}
	if agg.totalRuns > 0 {
		stats.AvgListings = float64(agg.listingSum) / float64(agg.totalRuns)
	}

	size := agg.windowNext
	if agg.windowFull {
		size = len(agg.window)
	}
	if size > 0 {
		succeeded := 0
		for i := 0; i < size; i++ {
			if agg.window[i] {
				succeeded++
			}
		}
		stats.SuccessRate = float64(succeeded) / float64(size)
	}
	return stats
}
