// Package server exposes the annotation store as a read-only HTTP API.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/pulse/schedule"
	"github.com/teranos/softwaremap/store"
)

const (
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 5 * time.Second
)

// Server serves entity records over HTTP
type Server struct {
	store  *store.Store
	runs   *schedule.RunStore
	logger *zap.SugaredLogger
	mux    *http.ServeMux
}

// New creates a server over st. runs may be nil, which disables /api/runs.
func New(st *store.Store, runs *schedule.RunStore, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.Logger
	}
	s := &Server{
		store:  st,
		runs:   runs,
		logger: log.Named("server"),
		mux:    http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler with logging applied
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.HandleHealth)
	s.mux.HandleFunc("/api/entity", s.HandleEntity)
	s.mux.HandleFunc("/api/entities", s.HandleEntities)
	s.mux.HandleFunc("/api/stats", s.HandleStats)
	s.mux.HandleFunc("/api/runs", s.HandleRuns)
	s.mux.HandleFunc("/node", s.HandleNode) // uri=<entity URI>, kept for older consumers
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Infow("Server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	s.logger.Infow("Server stopped")
	return nil
}

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
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.requestLogger(r).Debugw("Request",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, rec.status,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	})
}

// requestLogger carries the request ID set by logRequests
func (s *Server) requestLogger(r *http.Request) *zap.SugaredLogger {
	return s.logger.With(logger.FieldsFromContext(r.Context())...)
}
