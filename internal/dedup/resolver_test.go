package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

type fakeStore struct {
	records map[string]scraper.VacancyRecord
	inserts int
	updates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]scraper.VacancyRecord)}
}

func (s *fakeStore) key(sourceID, identityKey string) string {
	return sourceID + "/" + identityKey
}

func (s *fakeStore) FindByIdentity(_ context.Context, sourceID, identityKey string) (scraper.VacancyRecord, error) {
	rec, ok := s.records[s.key(sourceID, identityKey)]
	if !ok {
		return scraper.VacancyRecord{}, scraper.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) Insert(_ context.Context, identityKey string, record scraper.VacancyRecord) error {
	s.inserts++
	s.records[s.key(record.SourceID, identityKey)] = record
	return nil
}

func (s *fakeStore) Update(_ context.Context, identityKey string, record scraper.VacancyRecord) error {
	s.updates++
	s.records[s.key(record.SourceID, identityKey)] = record
	return nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeIDs struct{ next int }

func (g *fakeIDs) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

func candidate() scraper.VacancyRecord {
	return scraper.VacancyRecord{
		SourceID:  "src-1",
		Title:     "Go Developer",
		Company:   "Acme",
		Location:  "Berlin",
		SalaryMin: 4000,
		SalaryMax: 6000,
		Currency:  "EUR",
	}
}

func TestResolver_NewRecord(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewResolver(store, clock, &fakeIDs{})

	outcome, record, err := r.Resolve(context.Background(), candidate())
	require.NoError(t, err)
	require.Equal(t, OutcomeNew, outcome)
	require.Equal(t, "id-1", record.ID)
	require.Equal(t, clock.now, record.FirstSeenAt)
	require.Equal(t, clock.now, record.UpdatedAt)
	require.NotEmpty(t, record.RawContentHash)
	require.Equal(t, 1, store.inserts)
}

func TestResolver_UnchangedOnSecondPass(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewResolver(store, clock, &fakeIDs{})

	_, first, err := r.Resolve(context.Background(), candidate())
	require.NoError(t, err)

	clock.now = time.Unix(2000, 0)
	outcome, second, err := r.Resolve(context.Background(), candidate())
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, outcome)
	// The stored record is returned as-is; timestamps do not move.
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.UpdatedAt, second.UpdatedAt)
	require.Zero(t, store.updates)
}

func TestResolver_UpdatedKeepsIdentity(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewResolver(store, clock, &fakeIDs{})

	_, first, err := r.Resolve(context.Background(), candidate())
	require.NoError(t, err)

	clock.now = time.Unix(2000, 0)
	changed := candidate()
	changed.SalaryMax = 7000
	outcome, second, err := r.Resolve(context.Background(), changed)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.FirstSeenAt, second.FirstSeenAt)
	require.Equal(t, clock.now, second.UpdatedAt)
	require.Equal(t, 7000, second.SalaryMax)
	require.Equal(t, 1, store.updates)
}

func TestResolver_ExternalIDIdentitySurvivesTitleChange(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewResolver(store, clock, &fakeIDs{})

	withExt := candidate()
	withExt.ExternalID = "offer-42"
	_, first, err := r.Resolve(context.Background(), withExt)
	require.NoError(t, err)

	renamed := withExt
	renamed.Title = "Senior Go Developer"
	outcome, second, err := r.Resolve(context.Background(), renamed)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)
	require.Equal(t, first.ID, second.ID)
}
