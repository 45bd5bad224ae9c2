package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gva-control/gvc/internal/auth"
	"github.com/gva-control/gvc/internal/events"
	"github.com/gva-control/gvc/internal/hal"
	"github.com/gva-control/gvc/internal/sequence"
	"github.com/gva-control/gvc/internal/state"
)

// StateReader is the read-side port into the state machine.
type StateReader interface {
	Current() state.State
	History() []state.TransitionRecord
}

// RelayReader exposes the relay position for the status endpoint.
type RelayReader interface {
	Relay() hal.RelayPosition
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server

	sequencer sequence.SequencerPort
	machine   StateReader
	relay     RelayReader
	hub       *events.Hub
	authMW    *auth.Middleware
	metrics   http.Handler

	startTime    time.Time
	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration
}

// Option configures the server.
type Option func(*Server)

// WithRelayReader exposes the relay position on the status endpoint.
func WithRelayReader(r RelayReader) Option {
	return func(s *Server) { s.relay = r }
}

// WithEventHub attaches the SSE event hub.
func WithEventHub(h *events.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithAuth attaches the operator auth middleware.
func WithAuth(mw *auth.Middleware) Option {
	return func(s *Server) { s.authMW = mw }
}

// WithMetricsHandler mounts the Prometheus handler at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithTimeouts overrides the HTTP server timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.idleTimeout = idle
	}
}

// NewServer creates the API server.
func NewServer(sequencer sequence.SequencerPort, machine StateReader, opts ...Option) *Server {
	s := &Server{
		sequencer:    sequencer,
		machine:      machine,
		authMW:       auth.NewMiddleware(nil),
		startTime:    time.Now(),
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router assembles the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMW.Require(auth.RoleOperator))
			r.Post("/safety/trigger", s.handleTrigger)
			r.Post("/safety/reset", s.handleReset)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMW.Require(auth.RoleViewer))
			r.Get("/safety/status", s.handleStatus)
			r.Get("/safety/history", s.handleHistory)
			r.Get("/events", s.handleEvents)
		})
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

// Start runs the HTTP server on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
