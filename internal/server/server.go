// =============================================================================
// Invoice Dashboard - HTTP API
// =============================================================================
//
// This module exposes sessions, filters and analytics over JSON.
//
// ROUTES:
//   POST   /api/sessions                        upload a file, start a session
//   GET    /api/sessions/{id}                   session summary
//   DELETE /api/sessions/{id}
//   POST   /api/sessions/{id}/dataset           replace the dataset
//   GET    /api/sessions/{id}/filters           state and full-extent options
//   PUT    /api/sessions/{id}/filters/{field}   set one filter
//   POST   /api/sessions/{id}/filters/reset
//   GET    /api/sessions/{id}/view              filtered records
//   GET    /api/sessions/{id}/kpis
//   GET    /api/sessions/{id}/series            ?dimension=&metric=&agg=&top=
//   GET    /api/sessions/{id}/charts
//   GET    /api/sessions/{id}/export            ?format=xlsx|xml
//   POST   /api/sessions/{id}/ask               assistant question
//   GET    /api/health
//
// RESPONSES:
//   Every JSON body carries "success". Failures add "error"; an empty view
//   adds "warning" and still answers 200.
//
// =============================================================================

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ginjaninja78/invoice-dashboard/internal/assistant"
	"github.com/ginjaninja78/invoice-dashboard/internal/converter"
	"github.com/ginjaninja78/invoice-dashboard/internal/filter"
	"github.com/ginjaninja78/invoice-dashboard/internal/kpi"
	"github.com/ginjaninja78/invoice-dashboard/internal/session"
)

// ErrAssistantDisabled is returned by the ask route when no model is
// configured.
var ErrAssistantDisabled = errors.New("assistant is not configured")

// DefaultMaxUploadBytes caps uploads when Options leaves it unset.
const DefaultMaxUploadBytes = 25 << 20

// Options wires the server's dependencies.
type Options struct {
	Store     *session.Store
	Converter *converter.Converter

	// Assistant may be nil; the ask route then answers 503.
	Assistant *assistant.Assistant

	KPI            kpi.Options
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Server handles the HTTP API.
type Server struct {
	store     *session.Store
	conv      *converter.Converter
	assistant *assistant.Assistant
	kpiOpts   kpi.Options
	maxUpload int64
	logger    *zap.Logger
	router    *mux.Router
}

// New builds a Server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Store == nil {
		opts.Store = session.NewStore(0)
	}

	s := &Server{
		store:     opts.Store,
		conv:      opts.Converter,
		assistant: opts.Assistant,
		kpiOpts:   opts.KPI,
		maxUpload: opts.MaxUploadBytes,
		logger:    opts.Logger,
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests)

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleCreateSession).Methods(http.MethodPost)

	const base = "/api/sessions/{id}"
	r.HandleFunc(base, s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc(base, s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc(base+"/dataset", s.handleReplaceDataset).Methods(http.MethodPost)
	r.HandleFunc(base+"/filters", s.handleGetFilters).Methods(http.MethodGet)
	r.HandleFunc(base+"/filters/reset", s.handleResetFilters).Methods(http.MethodPost)
	r.HandleFunc(base+"/filters/{field}", s.handleSetFilter).Methods(http.MethodPut)
	r.HandleFunc(base+"/view", s.handleView).Methods(http.MethodGet)
	r.HandleFunc(base+"/kpis", s.handleKPIs).Methods(http.MethodGet)
	r.HandleFunc(base+"/series", s.handleSeries).Methods(http.MethodGet)
	r.HandleFunc(base+"/charts", s.handleCharts).Methods(http.MethodGet)
	r.HandleFunc(base+"/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc(base+"/ask", s.handleAsk).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Store returns the session store, for the eviction job.
func (s *Server) Store() *session.Store { return s.store }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// respondWithPayload writes {"success": true, "data": payload}.
func respondWithPayload(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, map[string]any{"success": true, "data": payload})
}

// respondWithWarning writes a successful response carrying a warning.
func respondWithWarning(w http.ResponseWriter, warning string, payload any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "warning": warning, "data": payload})
}

// respondWithError maps err onto a status code and writes
// {"success": false, "error": msg}.
func (s *Server) respondWithError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]any{"success": false, "error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// badRequest marks an error as the client's fault.
type badRequest struct{ error }

func (e badRequest) Unwrap() error { return e.error }

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, filter.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, filter.ErrNotFilterable), errors.Is(err, filter.ErrFilterType),
		errors.Is(err, assistant.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, converter.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, kpi.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrAssistantDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &br):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
