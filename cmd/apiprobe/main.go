// Package main provides the apiprobe binary entry point that serves the
// liveness, readiness and metrics endpoints.
//
// The application flow:
//  1. Load defaults, .env and environment variables, then validate.
//  2. Configure the slog default logger.
//  3. Build the metrics registry, the connection provider and the readiness checker.
//  4. Mount the routes and start the HTTP server.
//
// It blocks until SIGINT/SIGTERM, then shuts the server down gracefully. It
// exits with status 2 on configuration errors and 1 on fatal server errors.
// A missing database connection string never prevents startup; it is reported
// by the readiness endpoint instead.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/haukened/apiprobe/internal/config"
	"github.com/haukened/apiprobe/internal/dbconn"
	"github.com/haukened/apiprobe/internal/health"
	"github.com/haukened/apiprobe/internal/httpx"
	"github.com/haukened/apiprobe/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func buildHandler(cfg *config.Config, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	checker := health.NewChecker(dbconn.New(cfg.ConnectTimeout), health.Config{
		DSNEnv:   cfg.DatabaseURLEnv,
		Recorder: metrics.NewProbeMetrics(reg),
		Logger:   logger,
	})
	h := httpx.New(checker, metrics.Handler(reg, logger), logger)
	h.Instrumenter = metrics.NewHTTPMetrics(reg)
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{Addr: cfg.Addr, Handler: handler, ReadTimeout: cfg.ReadTimeout, WriteTimeout: cfg.WriteTimeout, IdleTimeout: cfg.IdleTimeout}
}

// serve runs srv on ln until ctx is done, then shuts down within the configured budget.
func serve(ctx context.Context, cfg *config.Config, srv *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down", "reason", context.Cause(ctx))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := metrics.NewRegistry()
	srv := newServer(cfg, buildHandler(cfg, reg, logger))
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	if _, ok := os.LookupEnv(cfg.DatabaseURLEnv); !ok {
		logger.Warn("database connection string not set; readiness will report db=false", "env", cfg.DatabaseURLEnv)
	}
	logger.Info("starting server", "addr", ln.Addr().String(), "pid", os.Getpid())
	return serve(ctx, cfg, srv, ln, logger)
}

func main() {
	cfg := loadConfig()
	logger := newLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, logger)
	stop()
	if err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
