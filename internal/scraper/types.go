// Package scraper defines core types shared across subsystems.
package scraper

import (
	"net/http"
	"time"
)

// RunStatus represents the lifecycle state of a scrape run.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunCounters tracks per-run listing outcomes.
type RunCounters struct {
	Fetched   int `json:"fetched"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Extracted counts the listings that produced a usable record.
func (c RunCounters) Extracted() int {
	return c.Created + c.Updated + c.Unchanged + c.Skipped
}

// ScrapeRun is the metadata persisted for one execution against one source.
type ScrapeRun struct {
	ID         string      `json:"id"`
	SourceID   string      `json:"source_id"`
	Attempt    int         `json:"attempt"`
	Status     RunStatus   `json:"status"`
	Submitted  time.Time   `json:"submitted_at"`
	Started    *time.Time  `json:"started_at,omitempty"`
	Finished   *time.Time  `json:"finished_at,omitempty"`
	Counters   RunCounters `json:"counters"`
	Errors     []string    `json:"errors,omitempty"`
}

// VacancyRecord is the normalized representation of one job posting.
// The identity key (ExternalID when the source exposes one, otherwise a
// fingerprint of title/company/location) never changes after creation.
type VacancyRecord struct {
	ID               string    `json:"id"`
	SourceID         string    `json:"source_id"`
	ExternalID       string    `json:"external_id,omitempty"`
	Title            string    `json:"title"`
	Company          string    `json:"company"`
	Location         string    `json:"location,omitempty"`
	WorkModel        string    `json:"work_model,omitempty"`
	SalaryMin        int       `json:"salary_min,omitempty"`
	SalaryMax        int       `json:"salary_max,omitempty"`
	Currency         string    `json:"currency,omitempty"`
	Technologies     []string  `json:"technologies,omitempty"`
	Responsibilities []string  `json:"responsibilities,omitempty"`
	Requirements     []string  `json:"requirements,omitempty"`
	Benefits         []string  `json:"benefits,omitempty"`
	Confidence       int       `json:"extraction_confidence"`
	RawContentHash   string    `json:"raw_content_hash"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Pagination describes how a source paginates its listing pages.
type Pagination struct {
	// Param is the query parameter carrying the page number (e.g. "page").
	Param string `mapstructure:"param"`
	// Start is the number of the first page (some boards start at 0).
	Start int `mapstructure:"start"`
	// MaxPages bounds how many pages one run will walk.
	MaxPages int `mapstructure:"max_pages"`
}

// SelectorRule is one candidate extraction rule inside a cascade.
// An empty Attr extracts trimmed text content; otherwise the named
// attribute of the first matching element is used.
type SelectorRule struct {
	Selector string `mapstructure:"selector"`
	Attr     string `mapstructure:"attr"`
}

// Cascade is an ordered list of rules; the first rule yielding a
// non-empty normalized value wins.
type Cascade []SelectorRule

// SelectorProfile configures per-field cascades for one source.
type SelectorProfile struct {
	// Listing selects the per-posting container; entries after the first
	// are fallbacks tried only when the primary matches zero elements.
	Listing []string `mapstructure:"listing"`

	Title      Cascade `mapstructure:"title"`
	Company    Cascade `mapstructure:"company"`
	Location   Cascade `mapstructure:"location"`
	WorkModel  Cascade `mapstructure:"work_model"`
	Salary     Cascade `mapstructure:"salary"`
	ExternalID Cascade `mapstructure:"external_id"`

	// Multi-value cascades collect every match of the winning rule.
	Technologies     Cascade `mapstructure:"technologies"`
	Responsibilities Cascade `mapstructure:"responsibilities"`
	Requirements     Cascade `mapstructure:"requirements"`
	Benefits         Cascade `mapstructure:"benefits"`
}

// Source is one configured external site/category. Immutable during a run.
type Source struct {
	ID         string            `mapstructure:"id"`
	Name       string            `mapstructure:"name"`
	BaseURL    string            `mapstructure:"base_url"`
	Schedule   string            `mapstructure:"schedule"`
	RateRPS    float64           `mapstructure:"rate_rps"`
	RateBurst  int               `mapstructure:"rate_burst"`
	Headers    map[string]string `mapstructure:"headers"`
	RedFlags   []string          `mapstructure:"red_flags"`
	Pagination Pagination        `mapstructure:"pagination"`
	Profile    SelectorProfile   `mapstructure:"profile"`
}

// RunRequest wraps a scheduled run ready for a worker to claim.
type RunRequest struct {
	RunID     string
	SourceID  string
	Attempt   int
	Submitted int64
}

// FetchRequest captures everything needed to fetch a listing page.
type FetchRequest struct {
	SourceID string
	URL      string
	Headers  http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
