// Package core provides the HTTP chassis for the zonetime read API: a chi
// router with the cross-cutting middleware (recovery, request IDs, logging,
// compression, metrics, admin authentication) applied before requests reach
// the handlers registered by the entry point.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zonetime/internal/config"
)

// RouteRegistrar mounts a group of handlers on the /v1 router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the dependencies of the HTTP API.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// Metrics wraps every request when set.
	Metrics func(http.Handler) http.Handler
	// MetricsHandler is served at /metrics when set.
	MetricsHandler http.Handler

	HealthProbes []HealthProbe

	// V1RouteRegistrars are applied in order by MountRoutes.
	V1RouteRegistrars []RouteRegistrar

	closers []func() error
	router  *chi.Mux
}

// NewServer prepares a server for route mounting. Routes are mounted by
// MountRoutes so tests can register their own.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in registration order.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases resources registered with OnShutdown. Every closer runs;
// the first error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	var first error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			s.Logger.ErrorContext(ctx, "error releasing server resource", "error", err)
			if first == nil {
				first = err
			}
		}
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return first
}
