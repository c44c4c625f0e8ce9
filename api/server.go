// Package api provides the HTTP API server for the reconciliation service.
// It wraps the engine stages behind a single reconcile endpoint; the engine
// itself performs no I/O.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"booking-recon/db/clickhouse"
	"booking-recon/internal/aggregate"
	"booking-recon/internal/classify"
	"booking-recon/internal/match"
	"booking-recon/internal/normalize"
	"booking-recon/pkg/api"
	recerrors "booking-recon/pkg/errors"
)

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	warehouse  *clickhouse.Store // optional; nil disables persistence
	config     *Config
	logger     *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 32 * 1024 * 1024, // raw record sets can be large
		CORSOrigins:    []string{"*"},
	}
}

// NewServer creates a new API server. The warehouse may be nil, in which
// case runs are not persisted.
func NewServer(warehouse *clickhouse.Store, config *Config, logger *slog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		warehouse: warehouse,
		config:    config,
		logger:    logger,
	}
}

// ReconcileRequest carries both raw record sets plus engine options.
type ReconcileRequest struct {
	AnalyticsEvents   []api.AnalyticsRawEvent `json:"analytics_events"`
	CrmOpportunities  []api.CrmRawOpportunity `json:"crm_opportunities"`
	Strict            bool                    `json:"strict"`
	LowValueThreshold string                  `json:"low_value_threshold,omitempty"`
	TrendDays         int                     `json:"trend_days,omitempty"`
	Persist           bool                    `json:"persist,omitempty"`
}

// ReconcileResponse is the engine output plus run metadata.
type ReconcileResponse struct {
	RunID   uuid.UUID                  `json:"run_id"`
	Summary *api.ReconciliationSummary `json:"summary"`
	Quality normalize.QualityReport    `json:"quality"`
	Rows    int                        `json:"rows"`
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/api/v1/reconcile", s.handleReconcile)

	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("reconciliation API starting", "port", s.config.Port)
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains on SIGINT/SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.warehouse != nil {
		if err := s.warehouse.Ping(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("warehouse unavailable: %v", err))
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req ReconcileRequest
	body := http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.AnalyticsEvents == nil || req.CrmOpportunities == nil {
		s.writeError(w, http.StatusBadRequest, "both analytics_events and crm_opportunities are required (empty arrays allowed)")
		return
	}

	classifyOpts := classify.Options{}
	if req.LowValueThreshold != "" {
		threshold, err := decimal.NewFromString(req.LowValueThreshold)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid low_value_threshold: %v", err))
			return
		}
		classifyOpts.LowValueThreshold = threshold
	}

	normalized, err := normalize.Normalize(req.AnalyticsEvents, req.CrmOpportunities, normalize.Options{Strict: req.Strict})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	joined, err := match.Match(normalized.Analytics, normalized.Crm)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	rows := classify.ClassifyAll(joined, classifyOpts)

	summary, err := aggregate.Aggregate(rows, aggregate.Options{TrendDays: req.TrendDays})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	runID := uuid.New()
	if req.Persist && s.warehouse != nil {
		if err := s.persistRun(r.Context(), runID, normalized, rows, summary); err != nil {
			s.logger.Error("persist run failed", "run_id", runID, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to persist run")
			return
		}
	}

	s.writeJSON(w, http.StatusOK, ReconcileResponse{
		RunID:   runID,
		Summary: summary,
		Quality: normalized.Quality,
		Rows:    len(rows),
	})
}

func (s *Server) persistRun(ctx context.Context, runID uuid.UUID, normalized *normalize.Result, rows []api.ReconciledRow, summary *api.ReconciliationSummary) error {
	if err := s.warehouse.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := s.warehouse.InsertAnalyticsRecords(ctx, runID, normalized.Analytics); err != nil {
		return err
	}
	if err := s.warehouse.InsertCrmRecords(ctx, runID, normalized.Crm); err != nil {
		return err
	}
	if err := s.warehouse.InsertReconciledRows(ctx, runID, rows); err != nil {
		return err
	}
	return s.warehouse.SaveSummary(ctx, runID, summary)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"remote", r.RemoteAddr, "duration", time.Since(start).String())
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine error codes to HTTP statuses: caller
// contract violations and malformed records are 4xx, the rest 500.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case recerrors.IsCode(err, recerrors.ErrCodeInvalidInput),
		recerrors.IsCode(err, recerrors.ErrCodeMalformedRecord):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
