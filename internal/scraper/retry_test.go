package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, 100*time.Millisecond, time.Second)

	cases := []struct {
		name    string
		err     error
		attempt int
		want    bool
	}{
		{"nil error", nil, 1, false},
		{"budget exhausted", errors.New("boom"), 3, false},
		{"context canceled", context.Canceled, 1, false},
		{"deadline exceeded", context.DeadlineExceeded, 1, false},
		{"timeout fetch error", &FetchError{Kind: FetchTimeout}, 1, true},
		{"network fetch error", &FetchError{Kind: FetchNetwork}, 1, true},
		{"http 500", &FetchError{Kind: FetchHTTPStatus, StatusCode: 500}, 1, true},
		{"http 429", &FetchError{Kind: FetchHTTPStatus, StatusCode: http.StatusTooManyRequests}, 1, true},
		{"http 404 never retried", &FetchError{Kind: FetchHTTPStatus, StatusCode: 404}, 1, false},
		{"http 403 never retried", &FetchError{Kind: FetchHTTPStatus, StatusCode: 403}, 1, false},
		{"plain error", errors.New("boom"), 1, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, p.ShouldRetry(tc.err, tc.attempt))
		})
	}
}

func TestRetryPolicy_BackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, time.Second)

	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		require.Positive(t, d)
		require.LessOrEqual(t, d, time.Second)
	}

	// A late attempt lands in the capped band regardless of jitter.
	require.GreaterOrEqual(t, p.Backoff(10), 500*time.Millisecond)
}

func TestRetryPolicy_BackoffThrottledHonorsRetryAfter(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, 100*time.Millisecond, time.Second)

	// A server hint beyond the doubled cap must win.
	require.Equal(t, 30*time.Second, p.BackoffThrottled(0, 30*time.Second))

	// Without a hint the throttled backoff still waits something.
	require.Positive(t, p.BackoffThrottled(0, 0))
}

func TestFetchError_Throttled(t *testing.T) {
	t.Parallel()

	require.True(t, (&FetchError{Kind: FetchHTTPStatus, StatusCode: 429}).Throttled())
	require.True(t, (&FetchError{Kind: FetchHTTPStatus, StatusCode: 503}).Throttled())
	require.False(t, (&FetchError{Kind: FetchHTTPStatus, StatusCode: 500}).Throttled())
	require.False(t, (&FetchError{Kind: FetchTimeout}).Throttled())
}

func TestRunCounters_Extracted(t *testing.T) {
	t.Parallel()

	c := RunCounters{Fetched: 10, Created: 3, Updated: 2, Unchanged: 1, Skipped: 1, Failed: 3}
	require.Equal(t, 7, c.Extracted())
	require.True(t, RunCompleted.Terminal())
	require.True(t, RunFailed.Terminal())
	require.False(t, RunRunning.Terminal())
}
