// Package worker implements the scrape run execution loop.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/vacancy-scraper/internal/dedup"
	"github.com/jobradar/vacancy-scraper/internal/extractor"
	"github.com/jobradar/vacancy-scraper/internal/metrics"
	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Completer is the scheduler surface a worker needs to finish a run:
// releasing the per-source lock or scheduling a bounded retry.
type Completer interface {
	Release(sourceID, runID string)
	RetryLater(run scraper.ScrapeRun) bool
}

// Resolver classifies candidates against stored identity.
type Resolver interface {
	Resolve(ctx context.Context, candidate scraper.VacancyRecord) (dedup.Outcome, scraper.VacancyRecord, error)
}

// StatsRecorder receives run lifecycle notifications.
type StatsRecorder interface {
	RunStarted(sourceID, runID string)
	RunFinished(run scraper.ScrapeRun)
}

// Config controls Worker behavior.
type Config struct {
	// MaxRunDuration bounds one run; on expiry no further pages are
	// fetched and partial counts are committed.
	MaxRunDuration time.Duration
	// Topic receives record-change events; empty disables publishing.
	Topic string
	// ArchivePrefix prefixes raw-page snapshot object names.
	ArchivePrefix string
}

// Worker consumes run requests and executes the fetch, extract and
// dedup pipeline end to end, one run at a time.
type Worker struct {
	queue     scraper.Queue
	runs      scraper.RunStore
	resolver  Resolver
	fetcher   scraper.Fetcher
	extractor *extractor.Extractor
	publisher scraper.Publisher
	archive   scraper.Archive
	clock     scraper.Clock
	completer Completer
	stats     StatsRecorder
	sources   map[string]scraper.Source
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue scraper.Queue,
	runs scraper.RunStore,
	resolver Resolver,
	fetcher scraper.Fetcher,
	ext *extractor.Extractor,
	publisher scraper.Publisher,
	archive scraper.Archive,
	clock scraper.Clock,
	completer Completer,
	stats StatsRecorder,
	sources []scraper.Source,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	byID := make(map[string]scraper.Source, len(sources))
	for _, src := range sources {
		byID[src.ID] = src
	}
	return &Worker{
		queue:     queue,
		runs:      runs,
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: ext,
		publisher: publisher,
		archive:   archive,
		clock:     clock,
		completer: completer,
		stats:     stats,
		sources:   byID,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming run requests until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		req, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.processRun(ctx, req)
	}
}

func (w *Worker) processRun(ctx context.Context, req scraper.RunRequest) {
	src, ok := w.sources[req.SourceID]
	if !ok {
		w.logger.Error("run references unknown source",
			zap.String("run_id", req.RunID),
			zap.String("source_id", req.SourceID),
		)
		w.completer.Release(req.SourceID, req.RunID)
		return
	}

	run, err := w.runs.GetRun(ctx, req.RunID)
	if err != nil {
		w.logger.Error("load run failed", zap.String("run_id", req.RunID), zap.Error(err))
		w.completer.Release(req.SourceID, req.RunID)
		return
	}

	started := w.clock.Now()
	run.Attempt = req.Attempt
	run.Status = scraper.RunRunning
	run.Started = &started
	if err := w.runs.UpdateRun(ctx, run); err != nil {
		w.logger.Error("mark run running failed", zap.String("run_id", run.ID), zap.Error(err))
		w.completer.Release(run.SourceID, run.ID)
		return
	}
	w.stats.RunStarted(run.SourceID, run.ID)
	metrics.WorkerActive(1)
	defer metrics.WorkerActive(-1)

	runCtx := ctx
	if w.cfg.MaxRunDuration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.cfg.MaxRunDuration)
		defer cancel()
	}

	counters, runErrs, fatal := w.walkPages(runCtx, src, run)

	status := scraper.RunCompleted
	if fatal != nil || counters.Extracted() == 0 {
		status = scraper.RunFailed
		if fatal == nil {
			runErrs = append(runErrs, "no listings were extracted")
		}
	}

	finished := w.clock.Now()
	run.Status = status
	run.Finished = &finished
	run.Counters = counters
	run.Errors = runErrs

	// Partial counts must land even when the run deadline or the worker
	// context has already expired.
	commitCtx, commitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer commitCancel()
	if err := w.runs.UpdateRun(commitCtx, run); err != nil {
		w.logger.Error("final run update failed", zap.String("run_id", run.ID), zap.Error(err))
	}
	metrics.ObserveRun(run.SourceID, string(status))

	if status == scraper.RunFailed && w.completer.RetryLater(run) {
		// The lock stays held; the run re-executes after its backoff.
		return
	}
	w.stats.RunFinished(run)
	w.completer.Release(run.SourceID, run.ID)

	w.logger.Info("run finished",
		zap.String("run_id", run.ID),
		zap.String("source_id", run.SourceID),
		zap.String("status", string(status)),
		zap.Int("fetched", counters.Fetched),
		zap.Int("created", counters.Created),
		zap.Int("updated", counters.Updated),
		zap.Int("unchanged", counters.Unchanged),
		zap.Int("skipped", counters.Skipped),
		zap.Int("failed", counters.Failed),
	)
}

// walkPages fetches pages in pagination order; page N+1 is not fetched
// until page N's listings are dispatched. A first-page fetch failure is
// fatal for the run; later page failures surface as run errors only.
func (w *Worker) walkPages(
	ctx context.Context,
	src scraper.Source,
	run scraper.ScrapeRun,
) (scraper.RunCounters, []string, error) {
	var (
		counters scraper.RunCounters
		runErrs  []string
		fatal    error
	)

	maxPages := src.Pagination.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	page := src.Pagination.Start

	for fetched := 0; fetched < maxPages; fetched, page = fetched+1, page+1 {
		if ctx.Err() != nil {
			runErrs = append(runErrs, fmt.Sprintf("run deadline reached after page %d", page-1))
			break
		}

		pageAddr, err := pageURL(src.BaseURL, src.Pagination, page)
		if err != nil {
			runErrs = append(runErrs, err.Error())
			if fetched == 0 {
				fatal = err
			}
			break
		}

		resp, err := w.fetcher.Fetch(ctx, scraper.FetchRequest{
			SourceID: src.ID,
			URL:      pageAddr,
			Headers:  sourceHeaders(src),
		})
		if err != nil {
			metrics.ObservePage(src.ID, "error")
			runErrs = append(runErrs, err.Error())
			if fetched == 0 {
				fatal = err
				break
			}
			continue
		}
		metrics.ObservePage(src.ID, "ok")

		w.archivePage(ctx, src, run, page, resp.Body)

		pageRes, err := w.extractor.ExtractPage(src.ID, resp.Body, src.Profile)
		if err != nil {
			runErrs = append(runErrs, fmt.Sprintf("page %d: %v", page, err))
			continue
		}
		if len(pageRes.Listings) == 0 && pageRes.SkippedNodes == 0 {
			// No containers matched: the board ran out of pages.
			break
		}

		for _, listing := range pageRes.Listings {
			w.handleListing(ctx, src, run, listing, &counters, &runErrs)
		}
	}
	return counters, runErrs, fatal
}

func (w *Worker) handleListing(
	ctx context.Context,
	src scraper.Source,
	run scraper.ScrapeRun,
	listing extractor.Result,
	counters *scraper.RunCounters,
	runErrs *[]string,
) {
	counters.Fetched++
	metrics.ObserveConfidence(src.ID, listing.Confidence)

	if listing.MandatoryMissing {
		counters.Failed++
		metrics.ObserveListing(src.ID, "failed")
		w.logger.Debug("listing rejected, mandatory field missing",
			zap.String("source_id", src.ID),
			zap.Strings("missing", listing.MissingFields),
		)
		return
	}
	if redFlagged(src.RedFlags, listing.Record) {
		counters.Skipped++
		metrics.ObserveListing(src.ID, "skipped")
		return
	}

	outcome, record, err := w.resolver.Resolve(ctx, listing.Record)
	if err != nil {
		counters.Failed++
		metrics.ObserveListing(src.ID, "failed")
		*runErrs = append(*runErrs, fmt.Sprintf("persist %q: %v", listing.Record.Title, err))
		return
	}

	switch outcome {
	case dedup.OutcomeNew:
		counters.Created++
	case dedup.OutcomeUpdated:
		counters.Updated++
	case dedup.OutcomeUnchanged:
		counters.Unchanged++
	}
	metrics.ObserveListing(src.ID, string(outcome))

	if outcome != dedup.OutcomeUnchanged {
		w.publishChange(ctx, run, string(outcome), record)
	}
}

func (w *Worker) archivePage(ctx context.Context, src scraper.Source, run scraper.ScrapeRun, page int, body []byte) {
	if w.archive == nil {
		return
	}
	name := w.cfg.ArchivePrefix
	if name != "" && !strings.HasSuffix(name, "/") {
		name += "/"
	}
	name += src.ID + "/" + run.ID + "/page-" + strconv.Itoa(page) + ".html"
	if err := w.archive.Save(ctx, name, body); err != nil {
		// Snapshots are best effort; losing one never fails the run.
		w.logger.Warn("page archive failed",
			zap.String("run_id", run.ID),
			zap.String("object", name),
			zap.Error(err),
		)
	}
}

func (w *Worker) publishChange(ctx context.Context, run scraper.ScrapeRun, event string, record scraper.VacancyRecord) {
	if w.publisher == nil || w.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"event":     event,
		"run_id":    run.ID,
		"source_id": record.SourceID,
		"record":    record,
		"timestamp": w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		// The record is already persisted; a lost event is log-worthy only.
		w.logger.Warn("record event publish failed",
			zap.String("run_id", run.ID),
			zap.String("record_id", record.ID),
			zap.Error(err),
		)
	}
}

// pageURL renders the address of one listing page. Sources without a
// pagination parameter expose a single page at the base URL.
func pageURL(base string, p scraper.Pagination, page int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if p.Param != "" {
		q := u.Query()
		q.Set(p.Param, strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func sourceHeaders(src scraper.Source) http.Header {
	if len(src.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(src.Headers))
	for k, v := range src.Headers {
		h.Set(k, v)
	}
	return h
}

// redFlagged reports whether the listing matches the source's keyword
// blocklist.
func redFlagged(flags []string, record scraper.VacancyRecord) bool {
	if len(flags) == 0 {
		return false
	}
	haystack := strings.ToLower(record.Title + " " + record.Company)
	for _, flag := range flags {
		if flag == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(flag)) {
			return true
		}
	}
	return false
}
