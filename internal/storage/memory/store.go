// Package memory provides map-backed store implementations for local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// VacancyStore keeps vacancy records in memory keyed by
// (sourceID, identityKey).
type VacancyStore struct {
	mu      sync.RWMutex
	records map[string]scraper.VacancyRecord
}

// NewVacancyStore constructs an empty VacancyStore.
func NewVacancyStore() *VacancyStore {
	return &VacancyStore{records: make(map[string]scraper.VacancyRecord)}
}

func storeKey(sourceID, identityKey string) string {
	return sourceID + "/" + identityKey
}

// FindByIdentity looks a record up by identity key.
func (s *VacancyStore) FindByIdentity(_ context.Context, sourceID, identityKey string) (scraper.VacancyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[storeKey(sourceID, identityKey)]
	if !ok {
		return scraper.VacancyRecord{}, scraper.ErrNotFound
	}
	return record, nil
}

// Insert stores a new record.
func (s *VacancyStore) Insert(_ context.Context, identityKey string, record scraper.VacancyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(record.SourceID, identityKey)
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("insert vacancy %s: already exists", key)
	}
	s.records[key] = record
	return nil
}

// Update replaces an existing record.
func (s *VacancyStore) Update(_ context.Context, identityKey string, record scraper.VacancyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := storeKey(record.SourceID, identityKey)
	if _, exists := s.records[key]; !exists {
		return scraper.ErrNotFound
	}
	s.records[key] = record
	return nil
}

// Len reports how many records are stored.
func (s *VacancyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RunStore keeps scrape runs in memory.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]scraper.ScrapeRun
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]scraper.ScrapeRun)}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run scraper.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("create run %s: already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRun replaces a stored run.
func (s *RunStore) UpdateRun(_ context.Context, run scraper.ScrapeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return scraper.ErrNotFound
	}
	s.runs[run.ID] = run
	return nil
}

// GetRun loads one run.
func (s *RunStore) GetRun(_ context.Context, runID string) (scraper.ScrapeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return scraper.ScrapeRun{}, scraper.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs for a source, most recently submitted first.
func (s *RunStore) ListRuns(_ context.Context, sourceID string, limit int) ([]scraper.ScrapeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scraper.ScrapeRun
	for _, run := range s.runs {
		if run.SourceID == sourceID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Submitted.After(out[j].Submitted)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
