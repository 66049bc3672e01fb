package scraper

import (
	"context"
	"time"
)

// VacancyStore persists vacancy records keyed by their identity key.
type VacancyStore interface {
	FindByIdentity(ctx context.Context, sourceID, identityKey string) (VacancyRecord, error)
	Insert(ctx context.Context, identityKey string, record VacancyRecord) error
	Update(ctx context.Context, identityKey string, record VacancyRecord) error
}

// RunStore persists scrape run metadata.
type RunStore interface {
	CreateRun(ctx context.Context, run ScrapeRun) error
	UpdateRun(ctx context.Context, run ScrapeRun) error
	GetRun(ctx context.Context, runID string) (ScrapeRun, error)
	ListRuns(ctx context.Context, sourceID string, limit int) ([]ScrapeRun, error)
}

// Queue provides enqueue/dequeue semantics for scheduled runs.
type Queue interface {
	Enqueue(ctx context.Context, req RunRequest) error
	Dequeue(ctx context.Context) (RunRequest, error)
}

// Fetcher retrieves one listing page.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Publisher pushes record-change events for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archive writes raw page snapshots for later re-extraction.
type Archive interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and record IDs.
type IDGenerator interface {
	NewID() (string, error)
}
