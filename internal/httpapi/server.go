// Package httpapi is the read-only HTTP surface: scored-market queries,
// deep-scan lookups, the event audit trail, health, and Prometheus
// metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sawpanic/kalshirun/internal/metrics"
	"github.com/sawpanic/kalshirun/internal/persistence"
)

// Server serves the read-only API.
type Server struct {
	router *mux.Router
	server *http.Server
	h      *handlers
	logger zerolog.Logger
}

// New wires the HTTP server. cache may be nil; reads then always go to
// the repository.
func New(addr string, repo persistence.Repository, cache MarketCache, reg *metrics.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		h:      &handlers{repo: repo, cache: cache, reg: reg},
		logger: logger.With().Str("component", "http").Logger(),
	}
	s.setupRoutes(reg)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(reg *metrics.Registry) {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.h.health).Methods("GET")
	s.router.HandleFunc("/status", s.h.status).Methods("GET")
	s.router.HandleFunc("/markets/top", s.h.topMarkets).Methods("GET")
	s.router.HandleFunc("/markets/{ticker}", s.h.market).Methods("GET")
	s.router.HandleFunc("/markets/{ticker}/orderbook", s.h.orderbook).Methods("GET")
	s.router.HandleFunc("/events", s.h.recentEvents).Methods("GET")

	if reg != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(reg.Prometheus(), promhttp.HandlerOpts{})).Methods("GET")
	}

	s.router.NotFoundHandler = http.HandlerFunc(s.h.notFound)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains with a short grace
// period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("http server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
