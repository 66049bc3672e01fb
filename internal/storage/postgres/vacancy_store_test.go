package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

func sampleRecord(now time.Time) scraper.VacancyRecord {
	return scraper.VacancyRecord{
		ID:             "rec-1",
		SourceID:       "src-1",
		ExternalID:     "offer-42",
		Title:          "Go Developer",
		Company:        "Acme",
		Location:       "Berlin",
		WorkModel:      "remote",
		SalaryMin:      4000,
		SalaryMax:      6000,
		Currency:       "EUR",
		Technologies:   []string{"Go", "Postgres"},
		Requirements:   []string{"5y experience"},
		Confidence:     90,
		RawContentHash: "hash-1",
		FirstSeenAt:    now,
		UpdatedAt:      now,
	}
}

func TestVacancyStore_FindByIdentity(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewVacancyStoreWithPool(mock)
	now := time.Unix(1700000000, 0).UTC()
	rec := sampleRecord(now)

	rows := pgxmock.NewRows([]string{
		"id", "source_id", "external_id", "title", "company", "location", "work_model",
		"salary_min", "salary_max", "currency", "technologies", "responsibilities",
		"requirements", "benefits", "confidence", "raw_content_hash", "first_seen_at", "updated_at",
	}).AddRow(
		rec.ID, rec.SourceID, rec.ExternalID, rec.Title, rec.Company, rec.Location, rec.WorkModel,
		rec.SalaryMin, rec.SalaryMax, rec.Currency, rec.Technologies, rec.Responsibilities,
		rec.Requirements, rec.Benefits, rec.Confidence, rec.RawContentHash, rec.FirstSeenAt, rec.UpdatedAt,
	)

	mock.ExpectQuery("SELECT (.+) FROM vacancies WHERE source_id").
		WithArgs("src-1", "ext:offer-42").
		WillReturnRows(rows)

	got, err := store.FindByIdentity(context.Background(), "src-1", "ext:offer-42")
	require.NoError(t, err)
	require.Equal(t, rec, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacancyStore_FindByIdentityNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewVacancyStoreWithPool(mock)

	mock.ExpectQuery("SELECT (.+) FROM vacancies WHERE source_id").
		WithArgs("src-1", "ext:ghost").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = store.FindByIdentity(context.Background(), "src-1", "ext:ghost")
	require.ErrorIs(t, err, scraper.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacancyStore_Insert(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewVacancyStoreWithPool(mock)
	now := time.Unix(1700000000, 0).UTC()
	rec := sampleRecord(now)

	mock.ExpectExec("INSERT INTO vacancies").
		WithArgs(
			"ext:offer-42",
			rec.ID, rec.SourceID, rec.ExternalID, rec.Title, rec.Company,
			rec.Location, rec.WorkModel, rec.SalaryMin, rec.SalaryMax,
			rec.Currency, rec.Technologies, rec.Responsibilities,
			rec.Requirements, rec.Benefits, rec.Confidence,
			rec.RawContentHash, rec.FirstSeenAt, rec.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Insert(context.Background(), "ext:offer-42", rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVacancyStore_Update(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewVacancyStoreWithPool(mock)
	now := time.Unix(1700000000, 0).UTC()
	rec := sampleRecord(now)

	mock.ExpectExec("UPDATE vacancies SET").
		WithArgs(
			rec.SourceID, "ext:offer-42",
			rec.ExternalID, rec.Title, rec.Company, rec.Location,
			rec.WorkModel, rec.SalaryMin, rec.SalaryMax, rec.Currency,
			rec.Technologies, rec.Responsibilities, rec.Requirements,
			rec.Benefits, rec.Confidence, rec.RawContentHash, rec.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.Update(context.Background(), "ext:offer-42", rec))

	// Zero rows affected surfaces as not found.
	mock.ExpectExec("UPDATE vacancies SET").
		WithArgs(
			rec.SourceID, "ext:offer-42",
			rec.ExternalID, rec.Title, rec.Company, rec.Location,
			rec.WorkModel, rec.SalaryMin, rec.SalaryMax, rec.Currency,
			rec.Technologies, rec.Responsibilities, rec.Requirements,
			rec.Benefits, rec.Confidence, rec.RawContentHash, rec.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, store.Update(context.Background(), "ext:offer-42", rec), scraper.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
