// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scraperPagesTotal            *prometheus.CounterVec
	scraperListingsTotal         *prometheus.CounterVec
	scraperRunsTotal             *prometheus.CounterVec
	scraperActiveWorkers         prometheus.Gauge
	scraperRateLimitDelaySeconds *prometheus.HistogramVec
	scraperExtractionConfidence  *prometheus.HistogramVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		scraperPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pages_total",
				Help: "Total listing pages fetched, labeled by source and result.",
			},
			[]string{"source", "result"},
		)

		scraperListingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_listings_total",
				Help: "Total listings processed, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		scraperRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Total scrape runs finished, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		scraperActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_workers",
				Help: "Number of workers currently processing a run.",
			},
		)

		scraperRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations per source.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		scraperExtractionConfidence = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_extraction_confidence",
				Help:    "Histogram of extraction confidence scores per source.",
				Buckets: []float64{10, 25, 50, 75, 90, 100},
			},
			[]string{"source"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP API request latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// ObservePage records the result of one page fetch.
func ObservePage(source, result string) {
	if scraperPagesTotal == nil {
		return
	}
	scraperPagesTotal.WithLabelValues(source, result).Inc()
}

// ObserveListing records one listing outcome (created/updated/unchanged/skipped/failed).
func ObserveListing(source, outcome string) {
	if scraperListingsTotal == nil {
		return
	}
	scraperListingsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveRun records a finished run.
func ObserveRun(source, status string) {
	if scraperRunsTotal == nil {
		return
	}
	scraperRunsTotal.WithLabelValues(source, status).Inc()
}

// WorkerActive adjusts the active-worker gauge.
func WorkerActive(delta float64) {
	if scraperActiveWorkers == nil {
		return
	}
	scraperActiveWorkers.Add(delta)
}

// ObserveRateLimitDelay records time spent waiting on a source limiter.
func ObserveRateLimitDelay(source string, d time.Duration) {
	if scraperRateLimitDelaySeconds == nil {
		return
	}
	scraperRateLimitDelaySeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObserveConfidence records one extraction confidence score.
func ObserveConfidence(source string, confidence int) {
	if scraperExtractionConfidence == nil {
		return
	}
	scraperExtractionConfidence.WithLabelValues(source).Observe(float64(confidence))
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
