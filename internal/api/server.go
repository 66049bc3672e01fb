// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobradar/vacancy-scraper/internal/config"
	"github.com/jobradar/vacancy-scraper/internal/metrics"
	"github.com/jobradar/vacancy-scraper/internal/scraper"
	"github.com/jobradar/vacancy-scraper/internal/stats"
)

// Trigger starts a manual run for one source.
type Trigger interface {
	Trigger(ctx context.Context, sourceID string) (scraper.ScrapeRun, error)
	Sources() []scraper.Source
	ActiveRun(sourceID string) (string, bool)
}

// StatsReader serves rolling per-source statistics.
type StatsReader interface {
	Snapshot() []stats.SourceStats
	SourceSnapshot(sourceID string) (stats.SourceStats, bool)
}

// Server wires HTTP handlers to the scheduler and stores.
type Server struct {
	router  chi.Router
	trigger Trigger
	stats   StatsReader
	runs    scraper.RunStore
	logger  *zap.Logger
	cfg     config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	trigger Trigger,
	statsReader StatsReader,
	runs scraper.RunStore,
	logger *zap.Logger,
	cfg config.Config,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		trigger: trigger,
		stats:   statsReader,
		runs:    runs,
		logger:  logger,
		cfg:     cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/scraper", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/{source}/manual", s.triggerManualRun)
		r.Get("/stats", s.getStats)
		r.Get("/stats/{source}", s.getSourceStats)
		r.Get("/sources", s.listSources)
		r.Get("/runs/{run_id}", s.getRun)
		r.Get("/sources/{source}/runs", s.listSourceRuns)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

func (s *Server) triggerManualRun(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source")
	run, err := s.trigger.Trigger(r.Context(), sourceID)
	switch {
	case errors.Is(err, scraper.ErrSourceUnknown):
		writeError(w, http.StatusNotFound, "unknown source", s.logger)
		return
	case errors.Is(err, scraper.ErrRunActive):
		activeID, _ := s.trigger.ActiveRun(sourceID)
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":         "a run is already active for this source",
			"active_run_id": activeID,
		}, s.logger)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": run.ID,
		"status": string(run.Status),
	}, s.logger)
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sources": s.stats.Snapshot()}, s.logger)
}

func (s *Server) getSourceStats(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source")
	snap, ok := s.stats.SourceSnapshot(sourceID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, snap, s.logger)
}

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	sources := s.trigger.Sources()
	out := make([]map[string]any, 0, len(sources))
	for _, src := range sources {
		entry := map[string]any{
			"id":       src.ID,
			"name":     src.Name,
			"base_url": src.BaseURL,
			"schedule": src.Schedule,
		}
		if runID, active := s.trigger.ActiveRun(src.ID); active {
			entry["active_run_id"] = runID
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": out}, s.logger)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, scraper.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found", s.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load run", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, run, s.logger)
}

func (s *Server) listSourceRuns(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source")
	runs, err := s.runs.ListRuns(r.Context(), sourceID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs}, s.logger)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)
			metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, elapsed)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", elapsed.Milliseconds()),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error", logger)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized", zap.NewNop())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
