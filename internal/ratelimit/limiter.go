// Package ratelimit implements per-source token bucket limiting for
// listing-page fetches.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jobradar/vacancy-scraper/internal/metrics"
)

// Limiter holds one token bucket per source. All fetches issued under a
// source's run lock share its bucket.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds limiter defaults for sources without an explicit rate.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Configure installs a source-specific rate, overriding the defaults.
func (l *Limiter) Configure(sourceID string, rps float64, burst int) {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = l.defaultRate
	}
	if burst <= 0 {
		burst = l.defaultBurst
	}
	l.mu.Lock()
	l.limiters[sourceID] = rate.NewLimiter(r, burst)
	l.mu.Unlock()
}

// Wait blocks until a token is available for the source, respecting the
// context deadline threaded through the run.
func (l *Limiter) Wait(ctx context.Context, sourceID string) error {
	l.mu.Lock()
	limiter, exists := l.limiters[sourceID]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[sourceID] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(sourceID, waited)
	}
	return nil
}
