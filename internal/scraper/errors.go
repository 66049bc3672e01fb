package scraper

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRunActive signals that a pending or running run already holds the
// per-source lock.
var ErrRunActive = errors.New("a run for this source is already active")

// ErrSourceUnknown signals a trigger for a source that is not configured.
var ErrSourceUnknown = errors.New("source is not configured")

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// FetchErrorKind classifies fetch failures for retry decisions.
type FetchErrorKind string

// Fetch failure classes.
const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchNetwork    FetchErrorKind = "network"
)

// FetchError wraps a page fetch failure with its classification.
// RetryAfter carries the server's Retry-After hint on throttled
// responses, zero otherwise.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth another attempt.
// Non-429 4xx responses are deterministic and never retried.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchTimeout, FetchNetwork:
		return true
	case FetchHTTPStatus:
		if e.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return e.StatusCode >= 500
	default:
		return false
	}
}

// Throttled reports whether the server asked us to slow down; the retry
// policy extends its backoff for these.
func (e *FetchError) Throttled() bool {
	return e.Kind == FetchHTTPStatus &&
		(e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable)
}
