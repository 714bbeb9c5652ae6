// Package server provides the HTTP server and its middleware stack.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options configures the server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	Throttle       *Throttle
}

type Server struct {
	Router *chi.Mux
	port   int
	logger *slog.Logger
	http   *http.Server
}

// New builds the router with the standard middleware stack: request ids,
// structured logging, CORS, the admission throttle, request timeouts,
// panic recovery, and OpenTelemetry instrumentation.
func New(opts Options, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Api-Key", "X-Amz-Date", "X-Amz-Security-Token"},
	}))
	if opts.Throttle != nil {
		r.Use(opts.Throttle.Middleware)
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r.Use(TimeoutMiddleware(timeout))
	r.Use(middleware.Recoverer)

	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "prodlens")
	})

	return &Server{
		Router: r,
		port:   opts.Port,
		logger: logger,
	}
}

// Start blocks serving HTTP until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router,
	}
	s.logger.Info("starting server", slog.Int("port", s.port))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
