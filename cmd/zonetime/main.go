// Package main is the entry point for the zonetime service.
//
// It loads configuration, wires the refresh pipeline, starts the refresh
// runner in the background and serves the read API until SIGINT or SIGTERM.
// Shutdown stops the runner, drains HTTP requests and then closes the
// database pool and sink connections.
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

	"github.com/go-chi/chi/v5"

	"zonetime/internal/api/handlers"
	"zonetime/internal/app"
	"zonetime/internal/config"
	"zonetime/internal/core"
	"zonetime/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("zonetime starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"entity_id", cfg.Tracker.EntityID,
		"port", cfg.Server.Port,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	components, err := app.New(startCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wiring components: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		_ = components.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(components.Close)
	configureServer(srv, components)
	srv.MountRoutes()

	runCtx, stopRunner := context.WithCancel(context.Background())
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		_ = components.Runner.Run(runCtx)
	}()

	err = runHTTPServer(srv, cfg, logger, func() {
		stopRunner()
		<-runnerDone
	})
	stopRunner()
	return err
}

// configureServer attaches metrics, health probes and the v1 routes.
func configureServer(srv *core.Server, a *app.App) {
	cfg := a.Config

	httpMetrics := telemetry.NewHTTPMetrics(a.Registry)
	srv.Metrics = httpMetrics.Middleware
	srv.MetricsHandler = telemetry.Handler(a.Registry)

	if a.Pool != nil {
		pool := a.Pool
		timeout := cfg.Database.AcquireTimeout
		srv.HealthProbes = append(srv.HealthProbes, core.NewProbe("database", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return pool.Ping(ctx)
		}))
	}
	srv.HealthProbes = append(srv.HealthProbes, core.FreshnessProbe{
		LastUpdated: a.Store.LastUpdated,
		MaxAge:      cfg.Observability.StaleAfter,
	})

	dwell := handlers.NewDwellHandler(a.Store, a.Runner, cfg.Tracker.EntityID, a.Logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		dwell.RegisterRoutes(r, srv.RequireAdmin)
	})

	if a.ZoneStore != nil {
		zones := handlers.NewZoneAdminHandler(a.ZoneStore, srv.Validator, a.Logger)
		srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(srv.RequireAdmin)
				zones.RegisterRoutes(r)
			})
		})
	}
}

// secretProvider returns the SSM provider for deployed environments. Local
// runs read everything from the environment and .env.
func secretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return nil
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return config.NewSSMProvider(region, os.Getenv("AWS_ENDPOINT_URL"))
}

// runHTTPServer starts the HTTP server and blocks until a shutdown signal is
// received. beforeDrain runs once the signal arrives, before in-flight
// requests are drained.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger, beforeDrain func()) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	beforeDrain()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return errors.Join(runErr, fmt.Errorf("server shutdown: %w", err))
	}

	if runErr != nil {
		return runErr
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
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler).With("service", "zonetime")
}
