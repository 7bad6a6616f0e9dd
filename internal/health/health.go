// Package health implements the liveness and readiness probes. Readiness opens
// a fresh database connection per call, runs a single validation query and
// converts every anticipated failure into a Result instead of an error, so the
// HTTP layer can always answer with a parseable payload.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/haukened/apiprobe/internal/dbconn"
)

// ValidationQuery is issued on every readiness check; it must yield the single
// integer column ok = 1.
const ValidationQuery = "select 1 as ok"

// LivenessResult is the fixed liveness payload.
type LivenessResult struct {
	OK bool `json:"ok"`
}

// Liveness reports that the process is running. It has no side effects.
func Liveness() LivenessResult { return LivenessResult{OK: true} }

// Result is the outcome of one readiness check. Error is set only when DB is false.
type Result struct {
	DB    bool   `json:"db"`
	Error string `json:"error,omitempty"`
}

// Recorder receives the outcome of every readiness check.
type Recorder interface {
	ObserveDBCheck(ok bool, d time.Duration)
}

// Config controls a Checker.
type Config struct {
	// DSNEnv names the environment variable holding the connection string.
	DSNEnv string
	// Lookup resolves DSNEnv; defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
	// Recorder is optional.
	Recorder Recorder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Checker runs readiness checks. It is safe for concurrent use: each Check
// owns its own connection and shares no mutable state.
type Checker struct {
	opener dbconn.Opener
	cfg    Config
}

// NewChecker constructs a Checker opening connections through opener.
func NewChecker(opener dbconn.Opener, cfg Config) *Checker {
	if cfg.DSNEnv == "" {
		cfg.DSNEnv = "DATABASE_URL"
	}
	if cfg.Lookup == nil {
		cfg.Lookup = os.LookupEnv
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Checker{opener: opener, cfg: cfg}
}

// Check performs a single readiness attempt: connect, query, release. The
// connection is closed exactly once on every path; a close failure does not
// change the result. There is no retry.
func (c *Checker) Check(ctx context.Context) Result {
	start := time.Now()
	res := c.check(ctx)
	d := time.Since(start)
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.ObserveDBCheck(res.DB, d)
	}
	log := c.cfg.Logger.With("domain", "health", "action", "db_check")
	if res.DB {
		log.DebugContext(ctx, "db ready", "ms", d.Milliseconds())
	} else {
		log.WarnContext(ctx, "db not ready", "error", res.Error, "ms", d.Milliseconds())
	}
	return res
}

func (c *Checker) check(ctx context.Context) Result {
	// Resolved per call; the environment is the source of truth.
	dsn, _ := c.cfg.Lookup(c.cfg.DSNEnv)
	conn := c.opener.Open(dsn)
	defer func() {
		if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
			c.cfg.Logger.DebugContext(ctx, "db close", "domain", "health", "error", err)
		}
	}()

	if err := conn.Connect(ctx); err != nil {
		return failure(err)
	}
	var ok int64
	if err := conn.QueryRow(ctx, ValidationQuery, &ok); err != nil {
		return failure(err)
	}
	if ok != 1 {
		return failure(fmt.Errorf("validation query returned %d, want 1", ok))
	}
	return Result{DB: true}
}

func failure(err error) Result {
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	return Result{DB: false, Error: msg}
}
