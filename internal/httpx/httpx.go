// Package httpx contains the HTTP delivery layer (net/http handlers) for the apiprobe service.
// It maps probe and metrics requests onto the health and metrics packages while applying
// correlation IDs, access logging, instrumentation and cache/security headers.
// Handlers are split across files (health.go, middleware.go, render.go).
package httpx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/haukened/apiprobe/internal/health"
)

// Route paths served by Router.
const (
	PathLiveness  = "/healthz"
	PathReadiness = "/healthz/db"
	PathMetrics   = "/metrics"
)

// ReadinessChecker abstracts health.Checker for the HTTP layer.
// It is satisfied by *health.Checker in production and mocked in tests.
type ReadinessChecker interface {
	Check(ctx context.Context) health.Result
}

// Instrumenter wraps a handler with request metrics under a name.
// It is satisfied by *metrics.HTTPMetrics.
type Instrumenter interface {
	Wrap(name string, next http.Handler) http.Handler
}

// Handler wires HTTP endpoints to the probes and the metrics exposition.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Readiness    ReadinessChecker // readiness probe for /healthz/db
	Metrics      http.Handler     // exposition handler; nil leaves /metrics unmounted
	Instrumenter Instrumenter     // optional per-route request metrics
	Logger       *slog.Logger
}

// New returns a configured Handler.
// readiness: checker backing /healthz/db.
// metricsHandler: exposition handler for /metrics (nil => not mounted).
// logger: nil => slog.Default().
func New(readiness ReadinessChecker, metricsHandler http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Readiness: readiness, Metrics: metricsHandler, Logger: logger}
}

// Router constructs and returns an http.Handler with all routes mounted and
// the middleware chain applied.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+PathLiveness, h.instrument("liveness", http.HandlerFunc(h.handleHealth)))
	mux.Handle("GET "+PathReadiness, h.instrument("readiness", http.HandlerFunc(h.handleReady)))
	if h.Metrics != nil {
		mux.Handle("GET "+PathMetrics, h.instrument("metrics", h.Metrics))
	}
	return CorrelationIDMiddleware(h.accessLog(h.secureHeaders(mux)))
}

func (h *Handler) instrument(name string, next http.Handler) http.Handler {
	if h.Instrumenter == nil {
		return next
	}
	return h.Instrumenter.Wrap(name, next)
}

// secureHeaders middleware adds standard security & cache control headers.
// Probe answers describe a single instant and must never be cached.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}
