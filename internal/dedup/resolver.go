// Package dedup resolves extracted vacancy candidates against stored
// record identity, classifying each as new, updated or unchanged.
package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Outcome classifies one resolution.
type Outcome string

// Resolution outcomes.
const (
	OutcomeNew       Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Resolver looks candidates up by identity key and applies
// additive-only upserts. Records absent from the current run are never
// touched; pruning is someone else's concern.
type Resolver struct {
	store scraper.VacancyStore
	clock scraper.Clock
	ids   scraper.IDGenerator
}

// NewResolver constructs a Resolver.
func NewResolver(store scraper.VacancyStore, clock scraper.Clock, ids scraper.IDGenerator) *Resolver {
	return &Resolver{store: store, clock: clock, ids: ids}
}

// Resolve classifies the candidate and persists the outcome. The
// returned record carries the stable internal identity: a fresh ID for
// new records, the original ID and FirstSeenAt for updates.
func (r *Resolver) Resolve(ctx context.Context, candidate scraper.VacancyRecord) (Outcome, scraper.VacancyRecord, error) {
	key := IdentityKey(candidate)
	candidate.RawContentHash = ContentHash(candidate)

	existing, err := r.store.FindByIdentity(ctx, candidate.SourceID, key)
	switch {
	case errors.Is(err, scraper.ErrNotFound):
		id, idErr := r.ids.NewID()
		if idErr != nil {
			return "", scraper.VacancyRecord{}, fmt.Errorf("new record id: %w", idErr)
		}
		now := r.clock.Now()
		candidate.ID = id
		candidate.FirstSeenAt = now
		candidate.UpdatedAt = now
		if insErr := r.store.Insert(ctx, key, candidate); insErr != nil {
			return "", scraper.VacancyRecord{}, fmt.Errorf("insert vacancy: %w", insErr)
		}
		return OutcomeNew, candidate, nil

	case err != nil:
		return "", scraper.VacancyRecord{}, fmt.Errorf("lookup vacancy: %w", err)
	}

	if existing.RawContentHash == candidate.RawContentHash {
		return OutcomeUnchanged, existing, nil
	}

	updated := candidate
	updated.ID = existing.ID
	updated.FirstSeenAt = existing.FirstSeenAt
	updated.UpdatedAt = r.clock.Now()
	if updErr := r.store.Update(ctx, key, updated); updErr != nil {
		return "", scraper.VacancyRecord{}, fmt.Errorf("update vacancy: %w", updErr)
	}
	return OutcomeUpdated, updated, nil
}
