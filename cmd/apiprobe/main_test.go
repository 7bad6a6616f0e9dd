package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/haukened/apiprobe/internal/config"
	"github.com/haukened/apiprobe/internal/metrics"
)

func testConfig() *config.Config {
	cfg := config.DefaultAppConfig
	cfg.Addr = "127.0.0.1:0"
	cfg.DatabaseURLEnv = "APIPROBE_TEST_DSN"
	cfg.ShutdownTimeout = 2 * time.Second
	return &cfg
}

func TestNewLoggerFormats(t *testing.T) {
	cfg := testConfig()

	var buf bytes.Buffer
	cfg.LogFormat = "json"
	newLogger(cfg, &buf).Info("hello")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected json output, got %q", buf.String())
	}

	buf.Reset()
	cfg.LogFormat = "text"
	newLogger(cfg, &buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = slog.LevelWarn
	var buf bytes.Buffer
	l := newLogger(cfg, &buf)
	l.Info("dropped")
	l.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("level filtering wrong: %q", buf.String())
	}
}

// TestNewServer validates config propagation to http.Server.
func TestNewServer(t *testing.T) {
	cfg := testConfig()
	srv := newServer(cfg, http.NotFoundHandler())
	if srv.Addr != cfg.Addr {
		t.Fatalf("addr mismatch got %s", srv.Addr)
	}
	if srv.ReadTimeout != cfg.ReadTimeout || srv.WriteTimeout != cfg.WriteTimeout || srv.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("timeouts not propagated: %+v", srv)
	}
}

// TestBuildHandler exercises every mounted route against a live in-memory database.
func TestBuildHandler(t *testing.T) {
	t.Setenv("APIPROBE_TEST_DSN", "sqlite://:memory:")
	cfg := testConfig()
	h := buildHandler(cfg, metrics.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := map[string]string{
		"/healthz":    `{"ok":true}`,
		"/healthz/db": `{"db":true}`,
	}
	for path, want := range cases {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s status %d", path, w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != want {
			t.Fatalf("%s body %q want %q", path, got, want)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if ct := w.Header().Get("Content-Type"); ct != metrics.ContentType {
		t.Fatalf("metrics content-type %q", ct)
	}
	if !strings.Contains(w.Body.String(), `apiprobe_db_checks_total{result="ok"} 1`) {
		t.Fatalf("expected recorded readiness check in metrics output")
	}
}

// TestRunGracefulShutdown starts the server, hits it, then cancels the context.
func TestRunGracefulShutdown(t *testing.T) {
	cfg := testConfig()
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := newServer(cfg, buildHandler(cfg, metrics.NewRegistry(), logger))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, srv, ln, logger) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}

func TestRunListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	cfg := testConfig()
	cfg.Addr = busy.Addr().String()
	if err := run(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected listen error")
	}
}
