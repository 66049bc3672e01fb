// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// dbconn is the narrow pool surface the stores need; pgxpool.Pool and
// pgxmock both satisfy it.
type dbconn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

func newPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// VacancyStore persists vacancy records in the vacancies table:
//
//	CREATE TABLE vacancies (
//	    id UUID PRIMARY KEY,
//	    source_id TEXT NOT NULL,
//	    identity_key TEXT NOT NULL,
//	    external_id TEXT,
//	    title TEXT NOT NULL,
//	    company TEXT NOT NULL,
//	    location TEXT,
//	    work_model TEXT,
//	    salary_min INT,
//	    salary_max INT,
//	    currency TEXT,
//	    technologies TEXT[],
//	    responsibilities TEXT[],
//	    requirements TEXT[],
//	    benefits TEXT[],
//	    confidence INT NOT NULL,
//	    raw_content_hash TEXT NOT NULL,
//	    first_seen_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL,
//	    UNIQUE (source_id, identity_key)
//	);
type VacancyStore struct {
	pool dbconn
}

// NewVacancyStore connects a pool and returns the store.
func NewVacancyStore(ctx context.Context, cfg Config) (*VacancyStore, error) {
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &VacancyStore{pool: pool}, nil
}

// NewVacancyStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewVacancyStoreWithPool(pool dbconn) *VacancyStore {
	return &VacancyStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *VacancyStore) Close() {
	s.pool.Close()
}

const vacancyColumns = `id, source_id, external_id, title, company, location, work_model,
	salary_min, salary_max, currency, technologies, responsibilities, requirements,
	benefits, confidence, raw_content_hash, first_seen_at, updated_at`

// FindByIdentity loads one record by identity key.
func (s *VacancyStore) FindByIdentity(ctx context.Context, sourceID, identityKey string) (scraper.VacancyRecord, error) {
	query := `SELECT ` + vacancyColumns + `
		FROM vacancies WHERE source_id = $1 AND identity_key = $2`
	row := s.pool.QueryRow(ctx, query, sourceID, identityKey)

	var rec scraper.VacancyRecord
	err := row.Scan(
		&rec.ID, &rec.SourceID, &rec.ExternalID, &rec.Title, &rec.Company,
		&rec.Location, &rec.WorkModel, &rec.SalaryMin, &rec.SalaryMax,
		&rec.Currency, &rec.Technologies, &rec.Responsibilities,
		&rec.Requirements, &rec.Benefits, &rec.Confidence,
		&rec.RawContentHash, &rec.FirstSeenAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scraper.VacancyRecord{}, scraper.ErrNotFound
	}
	if err != nil {
		return scraper.VacancyRecord{}, fmt.Errorf("find vacancy by identity: %w", err)
	}
	return rec, nil
}

// Insert stores a new record under its identity key.
func (s *VacancyStore) Insert(ctx context.Context, identityKey string, rec scraper.VacancyRecord) error {
	query := `INSERT INTO vacancies (identity_key, ` + vacancyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := s.pool.Exec(ctx, query,
		identityKey,
		rec.ID, rec.SourceID, rec.ExternalID, rec.Title, rec.Company,
		rec.Location, rec.WorkModel, rec.SalaryMin, rec.SalaryMax,
		rec.Currency, rec.Technologies, rec.Responsibilities,
		rec.Requirements, rec.Benefits, rec.Confidence,
		rec.RawContentHash, rec.FirstSeenAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vacancy: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of an existing record; the
// identity key and first_seen_at stay untouched.
func (s *VacancyStore) Update(ctx context.Context, identityKey string, rec scraper.VacancyRecord) error {
	query := `UPDATE vacancies SET
		external_id = $3, title = $4, company = $5, location = $6,
		work_model = $7, salary_min = $8, salary_max = $9, currency = $10,
		technologies = $11, responsibilities = $12, requirements = $13,
		benefits = $14, confidence = $15, raw_content_hash = $16, updated_at = $17
		WHERE source_id = $1 AND identity_key = $2`
	tag, err := s.pool.Exec(ctx, query,
		rec.SourceID, identityKey,
		rec.ExternalID, rec.Title, rec.Company, rec.Location,
		rec.WorkModel, rec.SalaryMin, rec.SalaryMax, rec.Currency,
		rec.Technologies, rec.Responsibilities, rec.Requirements,
		rec.Benefits, rec.Confidence, rec.RawContentHash, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update vacancy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scraper.ErrNotFound
	}
	return nil
}
