// Package server implements the HTTP server that exposes the question
// answering and ingestion pipelines via a REST API.
// The server is started by the `oraculo serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oraculo-labs/oraculo-go/internal/answer"
	"github.com/oraculo-labs/oraculo-go/internal/logging"
	"github.com/oraculo-labs/oraculo-go/internal/rag"
)

// New constructs a Server from the provided dependencies and config.
// The ingester may be nil; POST /api/ingest then returns 501.
func New(ask asker, ing ingester, cfg *Config) (*Server, error) {
	return newWithRegistry(ask, ing, cfg, prometheus.NewRegistry())
}

// newWithRegistry is New with an injectable Prometheus registry so tests can
// assert on metrics without touching the global default registry.
func newWithRegistry(ask asker, ing ingester, cfg *Config, reg *prometheus.Registry) (*Server, error) {
	if ask == nil {
		return nil, fmt.Errorf("server: asker must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full synchronous ingestion run.
		cfg.WriteTimeout = 30 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		asker:    ask,
		ingester: ing,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: ORACULO_API_KEY not set, API authentication is disabled")
	}

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", protect("ask", s.handleAsk))
	mux.Handle("POST /api/ingest", protect("ingest", s.handleIngest))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleAsk handles POST /api/ask. A question that finds no relevant indexed
// content is a normal outcome, not an error: the response carries
// found=false so clients can render "not in the library" distinctly from a
// failure.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	record, err := s.asker.Ask(r.Context(), req.Question)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		s.observeAsk("ok", elapsed)
		writeJSON(w, http.StatusOK, askResponse{
			Found:     true,
			Answer:    record.Answer,
			Retrieved: record.Retrieved,
			Citations: record.Citations,
		})

	case errors.Is(err, answer.ErrNoRelevantContent):
		s.observeAsk("not_found", elapsed)
		writeJSON(w, http.StatusOK, askResponse{
			Found:   false,
			Message: "no relevant content found in the document library",
		})

	case errors.Is(err, rag.ErrEmptyIndex):
		s.observeAsk("empty_index", elapsed)
		writeJSON(w, http.StatusConflict, askResponse{
			Found:   false,
			Message: "the index is empty, run an ingestion first",
		})

	default:
		s.observeAsk("error", elapsed)
		logging.FromContext(r.Context()).Error("ask failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// handleIngest handles POST /api/ingest. The run is synchronous and at most
// one run may be active at a time; concurrent requests receive 409.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		http.Error(w, "ingestion is not configured on this server", http.StatusNotImplemented)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	driveID := req.DriveID
	if driveID == "" {
		driveID = s.cfg.DefaultDrive
	}
	if driveID == "" {
		http.Error(w, "drive_id is required", http.StatusBadRequest)
		return
	}

	if !s.ingestBusy.CompareAndSwap(false, true) {
		http.Error(w, "an ingestion run is already in progress", http.StatusConflict)
		return
	}
	defer s.ingestBusy.Store(false)

	log := logging.FromContext(r.Context())
	report, err := s.ingester.Ingest(r.Context(), driveID, func(msg string) {
		log.Debug("ingest progress", slog.String("msg", msg))
	})
	if err != nil {
		s.metrics.ingestRunsTotal.WithLabelValues("error").Inc()
		log.Error("ingestion failed", slog.Any("error", err))
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}

	s.metrics.ingestRunsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestDocumentsTotal.Add(float64(report.Ingested))
	writeJSON(w, http.StatusOK, report)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observeAsk records the outcome and latency of one /api/ask request.
func (s *Server) observeAsk(outcome string, elapsed time.Duration) {
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
