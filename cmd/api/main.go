// Package main is the entry point for the onboarding API server.
//
// It loads configuration, builds the session store for the configured
// backend, wires the billing engine, upstream clients, and autosave
// orchestrator, and starts the HTTP server with the core chassis
// (middleware, routing, health checks).
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM):
// the HTTP listener drains first, then in-flight autosaves, then the
// session store backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"onboard/internal/api/handlers"
	"onboard/internal/autosave"
	"onboard/internal/billing"
	"onboard/internal/config"
	"onboard/internal/core"
	"onboard/internal/external"
	"onboard/internal/session"
	"onboard/internal/wizard"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	// Secret references resolve from mounted files (Docker/Kubernetes
	// secrets). Local development has no refs, so the provider sits idle.
	cfg, err := config.LoadConfig(config.NewFileProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("onboarding API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"session_backend", cfg.Session.Backend,
	)

	startupCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, storeProbe, closeStore, err := buildSessionStore(startupCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building session store: %w", err)
	}
	defer closeStore()

	srv, teardown, err := buildServer(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	if storeProbe != nil {
		srv.HealthProbes = append(srv.HealthProbes, storeProbe)
	}
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger, teardown)
}

// buildServer wires the billing engine, upstream clients, autosave
// orchestrator, and handlers onto the core chassis. Routes are not mounted;
// the caller appends health probes first and then calls MountRoutes. The
// returned teardown drains in-flight autosaves; call it after the HTTP
// listener stops.
func buildServer(cfg *config.Config, store session.Store, logger *slog.Logger) (*core.Server, func(context.Context) error, error) {
	sessions := session.NewManager(store)

	// Billing engine: static catalog and affiliate registry feed the
	// resolver, the resolver feeds the calculator.
	catalog := billing.NewStaticCatalog()
	affiliates := billing.NewStaticRegistry()
	resolver := billing.NewResolver(catalog, affiliates)
	calc := billing.NewCalculator(resolver)

	// Upstream clients: contact store, payment gateway, provisioner.
	// Stubs in local/test mode, real clients otherwise.
	clients, err := external.NewClientRegistry(cfg, resolver, calc, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing upstream clients: %w", err)
	}

	autosaver := autosave.NewOrchestrator(clients.Persistence, sessions, logger)
	slugCheck := wizard.NewAvailabilityChecker(clients.Persistence, cfg.Wizard.SlugDebounce, logger)

	srv, err := core.NewServer(cfg, sessions, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}

	sessionHandler := handlers.NewSessionHandler(
		sessions,
		autosaver,
		calc,
		resolver,
		slugCheck,
		handlers.SessionCookie{
			Name:   cfg.Session.CookieName,
			TTL:    cfg.Session.TTL,
			Secure: cfg.Session.CookieSecure,
		},
		srv.Validator,
		logger,
	)
	checkoutHandler := handlers.NewCheckoutHandler(
		sessions,
		resolver,
		calc,
		clients.Payment,
		clients.Provisioner,
		autosaver,
		srv.Validator,
		logger,
	)
	planHandler := handlers.NewPlanHandler(catalog, resolver, sessions, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		sessionHandler.RegisterRoutes,
		checkoutHandler.RegisterRoutes,
		planHandler.RegisterRoutes,
	)

	return srv, autosaver.Close, nil
}

// buildSessionStore constructs the store selected by SESSION_BACKEND along
// with an optional health probe and a close function for its backend
// connection. The memory backend has neither.
func buildSessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.Store, core.HealthProbe, func(), error) {
	noop := func() {}

	switch cfg.Session.Backend {
	case config.SessionBackendMemory:
		if cfg.Environment != "local" && !cfg.IsTestMode {
			logger.Warn("memory session backend in a non-local environment; sessions will not survive restarts")
		}
		return session.NewMemoryStore(), nil, noop, nil

	case config.SessionBackendRedis:
		opts, err := redis.ParseURL(cfg.Session.RedisURL.Unmask())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parsing SESSION_REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("pinging redis: %w", err)
		}
		probe := core.ProbeFunc{
			ProbeName: "session-redis",
			Fn:        func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error("closing redis client", "error", err)
			}
		}
		return session.NewRedisStore(client, cfg.Session.TTL), probe, closeFn, nil

	case config.SessionBackendPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Session.PostgresURL.Unmask())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parsing SESSION_POSTGRES_URL: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Session.MaxConns)
		poolCfg.MinConns = int32(cfg.Session.MinConns)
		poolCfg.MaxConnLifetime = cfg.Session.MaxConnLifetime
		poolCfg.HealthCheckPeriod = cfg.Session.HealthCheckPeriod

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating postgres pool: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Session.AcquireTimeout)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("pinging postgres: %w", err)
		}
		store, err := session.NewPostgresStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		probe := core.ProbeFunc{
			ProbeName: "session-postgres",
			Fn:        pool.Ping,
		}
		return store, probe, pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger, drainAutosaves func(context.Context) error) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Drain in-flight autosaves so checkpoints written just before the
	// signal still reach the contact store.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Wizard.AutosaveDrainTimeout)
	defer drainCancel()
	if err := drainAutosaves(drainCtx); err != nil {
		logger.Error("autosave drain incomplete", "error", err)
	}

	// Shutdown server resources (session store backends, etc.).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
