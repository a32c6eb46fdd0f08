// Package api provides the HTTP surface of the routines engine.
//
// It exposes RESTful endpoints for routine CRUD plus the two reactive
// evaluation entry points producers call when they observe an event.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lifekit/routines/internal/engine"
)

// Default server configuration constants
const (
	// DefaultAddr is the default API listen address
	DefaultAddr = ":8080"
	// DefaultRequestTimeout bounds a single API request
	DefaultRequestTimeout = 60 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds API server configuration.
type Opts struct {
	Addr string
}

// Option configures API server construction.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the routines HTTP API.
type Server struct {
	eng    *engine.Engine
	addr   string
	router chi.Router
	srv    *http.Server
}

// NewServer creates an API server over the given engine.
func NewServer(eng *engine.Engine, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{eng: eng, addr: cfg.Addr}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(DefaultRequestTimeout))

	r.Get("/api/v1/health", s.healthHandler)

	r.Route("/api/v1/routines", func(r chi.Router) {
		r.Post("/", s.createRoutineHandler)
		r.Get("/", s.listRoutinesHandler)
		r.Post("/check", s.checkRoutinesHandler)

		r.Route("/{routineID}", func(r chi.Router) {
			r.Get("/", s.getRoutineHandler)
			r.Patch("/", s.updateRoutineHandler)
			r.Delete("/", s.deleteRoutineHandler)
			r.Post("/trigger", s.triggerRoutineHandler)
		})
	})

	s.router = r
}

// Handler returns the server's HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests. It blocks until the listener fails or
// Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.router}
	slog.Info("API server listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
