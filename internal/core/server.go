// Package core provides the API chassis for the onboarding service. It
// creates the chi router, enforces cross-cutting concerns -- panic recovery,
// request correlation, logging, security headers, CORS, session resolution --
// and provides the response envelope and decoding utilities shared by all
// domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboard/internal/config"
	"onboard/internal/session"
)

// Server encapsulates all dependencies for the onboarding API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Sessions  *session.Manager
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars are populated by the application entry point with
	// the domain handler registration functions. This indirection avoids
	// import cycles between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// HealthProbes are the subsystem checks executed by GET /health.
	HealthProbes []HealthProbe

	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes or
// equivalent) after construction. This separation allows tests to customize
// route registration.
func NewServer(
	cfg *config.Config,
	sessions *session.Manager,
	logger *slog.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Sessions:  sessions,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
// 1. Closes the session store backend (if it supports closing).
// 2. Flushes any buffered logs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	// Close the session store connection pool if the backend supports it.
	if closer, ok := s.Sessions.Store().(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.Logger.Error("error closing session store", "error", err)
			return fmt.Errorf("closing session store: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
