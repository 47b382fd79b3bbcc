// Package api serves the listing records and scrape controls over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/internal/orchestrator"
	"github.com/jmylchreest/rentwatch/internal/store"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// Runner is the part of the orchestrator the scrape routes drive.
type Runner interface {
	Run(ctx context.Context, indexURL, model string) orchestrator.RunResult
	ProcessedCount(strategy listing.Strategy) int64
	ResetProcessedCount(strategy listing.Strategy)
	History() []orchestrator.ScrapeAttemptRecord
	RequestStop()
	ClearStop()
	StopRequested() bool
}

// Options wires the server's collaborators.
type Options struct {
	Store  store.Store
	Runner Runner
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
}

// Server routes HTTP requests to the store and the orchestrator.
type Server struct {
	store    store.Store
	runner   Runner
	validate *validator.Validate
	log      *slog.Logger
	router   *mux.Router
}

// New creates the server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		store:    opts.Store,
		runner:   opts.Runner,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.Component("api"),
		router:   mux.NewRouter(),
	}

	r := s.router
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	r.HandleFunc("/listings", s.handleListListings).Methods(http.MethodGet)
	r.HandleFunc("/listings", s.handleCreateListing).Methods(http.MethodPost)
	r.HandleFunc("/listings/{id:[0-9]+}", s.handleGetListing).Methods(http.MethodGet)
	r.HandleFunc("/listings/{id:[0-9]+}", s.handleUpdateListing).Methods(http.MethodPut)

	if s.runner != nil {
		r.HandleFunc("/scrape", s.handleScrape).Methods(http.MethodPost)
		r.HandleFunc("/scrape/history", s.handleHistory).Methods(http.MethodGet)
		r.HandleFunc("/scrape/counters/{strategy}", s.handleGetCounter).Methods(http.MethodGet)
		r.HandleFunc("/scrape/counters/{strategy}", s.handleResetCounter).Methods(http.MethodDelete)
		r.HandleFunc("/scrape/stop", s.handleStop).Methods(http.MethodPost)
		r.HandleFunc("/scrape/stop", s.handleResume).Methods(http.MethodDelete)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusRecorder captures the response code for request logging.
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
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
