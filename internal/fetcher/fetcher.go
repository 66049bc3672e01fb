// Package fetcher retrieves listing pages over HTTP using gocolly,
// with retry, backoff and per-source rate limiting.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/jobradar/vacancy-scraper/internal/ratelimit"
	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Config controls collector and retry behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Fetcher implements scraper.Fetcher using a Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	retry         *scraper.RetryPolicy
	logger        *zap.Logger
}

// New builds a Fetcher. The limiter is shared with every fetch issued
// under a source's run lock.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// Scheduled runs revisit the same listing URLs, and so do retries.
	c.AllowURLRevisit = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		limiter:       limiter,
		retry:         scraper.NewRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		logger:        logger,
	}
}

// Fetch executes a GET with retries. Timeouts, network errors, 429 and
// 5xx responses are retried with jittered exponential backoff; throttled
// responses (429/503) extend the backoff, honoring Retry-After when the
// server's hint is the more conservative delay. Other 4xx responses fail
// immediately.
func (f *Fetcher) Fetch(ctx context.Context, request scraper.FetchRequest) (scraper.FetchResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retry.MaxAttempts(); attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, request.SourceID); err != nil {
				return scraper.FetchResponse{}, err
			}
		}

		resp, err := f.fetchOnce(ctx, request)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !f.retry.ShouldRetry(err, attempt+1) {
			break
		}
		delay := f.retry.Backoff(attempt)
		var fe *scraper.FetchError
		if errors.As(err, &fe) && fe.Throttled() {
			delay = f.retry.BackoffThrottled(attempt, fe.RetryAfter)
		}
		f.logger.Warn("fetch attempt failed, backing off",
			zap.String("source_id", request.SourceID),
			zap.String("url", request.URL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return scraper.FetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return scraper.FetchResponse{}, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, request scraper.FetchRequest) (scraper.FetchResponse, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	var (
		result      scraper.FetchResponse
		errStatus   int
		errHeaders  http.Header
		responseErr error
	)
	start := time.Now()

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range request.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = scraper.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		responseErr = err
		if r != nil {
			errStatus = r.StatusCode
			if r.Headers != nil {
				errHeaders = r.Headers.Clone()
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(request.URL)
	}()

	select {
	case <-ctx.Done():
		return scraper.FetchResponse{}, &scraper.FetchError{
			Kind: scraper.FetchTimeout,
			URL:  request.URL,
			Err:  ctx.Err(),
		}
	case visitErr := <-done:
		if responseErr == nil && visitErr != nil {
			responseErr = visitErr
		}
		if responseErr != nil {
			return scraper.FetchResponse{}, classify(request.URL, errStatus, errHeaders, responseErr)
		}
		return result, nil
	}
}

// classify maps a transport-level failure onto the fetch error taxonomy.
func classify(url string, status int, headers http.Header, err error) *scraper.FetchError {
	if status > 0 {
		return &scraper.FetchError{
			Kind:       scraper.FetchHTTPStatus,
			URL:        url,
			StatusCode: status,
			RetryAfter: parseRetryAfter(headers),
			Err:        err,
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &scraper.FetchError{Kind: scraper.FetchTimeout, URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &scraper.FetchError{Kind: scraper.FetchTimeout, URL: url, Err: err}
	}
	return &scraper.FetchError{Kind: scraper.FetchNetwork, URL: url, Err: err}
}

// parseRetryAfter understands the delay-seconds form of Retry-After.
func parseRetryAfter(headers http.Header) time.Duration {
	if headers == nil {
		return 0
	}
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
