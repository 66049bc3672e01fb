// Package scheduler turns manual and periodic triggers into serialized
// per-source scrape runs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Config controls run retry behavior.
type Config struct {
	// MaxRunRetries bounds how many times a failed run is re-executed.
	MaxRunRetries int
	// RetryBackoffBase/Max shape the backoff between run retries.
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// Scheduler owns the per-source exclusive lock: at most one run per
// source is pending or running at any time. Triggering a source whose
// lock is held fails fast with scraper.ErrRunActive; it is never
// silently dropped.
type Scheduler struct {
	cfg     Config
	queue   scraper.Queue
	runs    scraper.RunStore
	ids     scraper.IDGenerator
	clock   scraper.Clock
	sources map[string]scraper.Source
	retry   *scraper.RetryPolicy
	cron    *cron.Cron
	logger  *zap.Logger

	mu      sync.Mutex
	active  map[string]string // sourceID -> runID holding the lock
	baseCtx context.Context
}

// New constructs a Scheduler over the configured sources.
func New(
	cfg Config,
	queue scraper.Queue,
	runs scraper.RunStore,
	ids scraper.IDGenerator,
	clock scraper.Clock,
	sources []scraper.Source,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[string]scraper.Source, len(sources))
	for _, src := range sources {
		byID[src.ID] = src
	}
	return &Scheduler{
		cfg:     cfg,
		queue:   queue,
		runs:    runs,
		ids:     ids,
		clock:   clock,
		sources: byID,
		retry:   scraper.NewRetryPolicy(cfg.MaxRunRetries, cfg.RetryBackoffBase, cfg.RetryBackoffMax),
		cron:    cron.New(),
		logger:  logger,
		active:  make(map[string]string),
		baseCtx: context.Background(),
	}
}

// Source returns the configuration for one source.
func (s *Scheduler) Source(sourceID string) (scraper.Source, bool) {
	src, ok := s.sources[sourceID]
	return src, ok
}

// Sources returns every configured source.
func (s *Scheduler) Sources() []scraper.Source {
	out := make([]scraper.Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	return out
}

// ActiveRun reports the run currently holding the source's lock.
func (s *Scheduler) ActiveRun(sourceID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runID, ok := s.active[sourceID]
	return runID, ok
}

// Trigger claims the source lock, persists a pending run and enqueues
// it. Returns scraper.ErrRunActive when the lock is already held and
// scraper.ErrSourceUnknown for unconfigured sources.
func (s *Scheduler) Trigger(ctx context.Context, sourceID string) (scraper.ScrapeRun, error) {
	if _, ok := s.sources[sourceID]; !ok {
		return scraper.ScrapeRun{}, fmt.Errorf("trigger %q: %w", sourceID, scraper.ErrSourceUnknown)
	}

	runID, err := s.ids.NewID()
	if err != nil {
		return scraper.ScrapeRun{}, fmt.Errorf("new run id: %w", err)
	}

	s.mu.Lock()
	if held, ok := s.active[sourceID]; ok {
		s.mu.Unlock()
		return scraper.ScrapeRun{}, fmt.Errorf("run %s: %w", held, scraper.ErrRunActive)
	}
	s.active[sourceID] = runID
	s.mu.Unlock()

	run := scraper.ScrapeRun{
		ID:        runID,
		SourceID:  sourceID,
		Attempt:   1,
		Status:    scraper.RunPending,
		Submitted: s.clock.Now(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		s.Release(sourceID, runID)
		return scraper.ScrapeRun{}, fmt.Errorf("create run: %w", err)
	}
	if err := s.enqueue(ctx, run); err != nil {
		s.Release(sourceID, runID)
		return scraper.ScrapeRun{}, err
	}
	return run, nil
}

// Release frees the source lock once its run is terminal. Stale
// releases (a different run holds the lock) are ignored.
func (s *Scheduler) Release(sourceID, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.active[sourceID]; ok && held == runID {
		delete(s.active, sourceID)
	}
}

// RetryLater schedules a failed run for re-execution after a backoff,
// keeping the source lock held so no competing run can start in the
// gap. Returns false when the retry budget is exhausted and the caller
// should leave the run terminal.
func (s *Scheduler) RetryLater(run scraper.ScrapeRun) bool {
	if run.Attempt > s.cfg.MaxRunRetries {
		return false
	}
	delay := s.retry.Backoff(run.Attempt)
	next := run
	next.Attempt++
	s.logger.Info("scheduling run retry",
		zap.String("run_id", run.ID),
		zap.String("source_id", run.SourceID),
		zap.Int("attempt", next.Attempt),
		zap.Duration("backoff", delay),
	)
	time.AfterFunc(delay, func() {
		if err := s.enqueue(s.baseCtx, next); err != nil {
			s.logger.Error("run retry enqueue failed",
				zap.String("run_id", next.ID),
				zap.Error(err),
			)
			s.Release(next.SourceID, next.ID)
		}
	})
	return true
}

func (s *Scheduler) enqueue(ctx context.Context, run scraper.ScrapeRun) error {
	req := scraper.RunRequest{
		RunID:     run.ID,
		SourceID:  run.SourceID,
		Attempt:   run.Attempt,
		Submitted: s.clock.Now().Unix(),
	}
	if err := s.queue.Enqueue(ctx, req); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Start registers cron entries for sources with a schedule and begins
// periodic triggering. The context bounds retry enqueues as well.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx = ctx
	for _, src := range s.sources {
		if src.Schedule == "" {
			continue
		}
		sourceID := src.ID
		if _, err := s.cron.AddFunc(src.Schedule, func() {
			if _, err := s.Trigger(s.baseCtx, sourceID); err != nil {
				// An overlapping schedule is routine; anything else is not.
				s.logger.Warn("scheduled trigger skipped",
					zap.String("source_id", sourceID),
					zap.Error(err),
				)
			}
		}); err != nil {
			return fmt.Errorf("cron schedule for %q: %w", sourceID, err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts periodic triggering; in-flight runs finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
