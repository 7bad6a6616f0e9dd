// Package dbconn provides the connection-provider port used by readiness checks.
// A Provider turns a connection string into a single, unpooled Conn whose
// lifecycle (connect, query, close) is owned entirely by the caller. The DSN
// scheme selects the driver: PostgreSQL via pgx, MySQL via go-sql-driver and
// SQLite via go-sqlite3.
package dbconn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoDSN is returned by Connect when the connection string is empty.
	ErrNoDSN = errors.New("no database connection string configured")
	// ErrUnsupportedScheme is returned by Connect when no driver handles the DSN scheme.
	ErrUnsupportedScheme = errors.New("unsupported database scheme")
	// ErrNotConnected is returned by QueryRow when Connect has not succeeded.
	ErrNotConnected = errors.New("connection not established")
)

// Driver names reported by DriverOf.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Conn is a single database connection. Connect, QueryRow and Close may each
// fail independently. Close must be safe to call after a failed Connect and
// releases whatever Connect managed to acquire.
type Conn interface {
	Connect(ctx context.Context) error
	QueryRow(ctx context.Context, query string, dest ...any) error
	Close(ctx context.Context) error
}

// Opener yields an unconnected Conn for a DSN. *Provider satisfies it.
type Opener interface {
	Open(dsn string) Conn
}

// Provider opens connections by DSN scheme. The zero value is usable and
// applies no dial deadline.
type Provider struct {
	// ConnectTimeout bounds Connect; 0 leaves the caller's context in charge.
	ConnectTimeout time.Duration
}

var _ Opener = (*Provider)(nil)

// New returns a Provider with the given dial deadline.
func New(connectTimeout time.Duration) *Provider {
	return &Provider{ConnectTimeout: connectTimeout}
}

// Open never fails: problems with the DSN surface from Connect so the caller
// handles every failure on the same path.
func (p *Provider) Open(dsn string) Conn {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return failedConn{err: ErrNoDSN}
	}
	switch DriverOf(dsn) {
	case DriverPostgres:
		return &pgConn{dsn: dsn, timeout: p.ConnectTimeout}
	case DriverMySQL:
		return newMySQLConn(strings.TrimPrefix(dsn, "mysql://"), p.ConnectTimeout)
	case DriverSQLite:
		return newSQLiteConn(sqliteDSN(dsn), p.ConnectTimeout)
	default:
		return failedConn{err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, schemeOf(dsn))}
	}
}

// DriverOf reports which driver handles dsn, or "" when none does.
func DriverOf(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(dsn, "mysql://"):
		return DriverMySQL
	case strings.HasPrefix(dsn, "sqlite://"), strings.HasPrefix(dsn, "sqlite3://"), strings.HasPrefix(dsn, "file:"):
		return DriverSQLite
	case !strings.Contains(dsn, "://") && isKeywordValue(dsn):
		// libpq keyword/value form: "host=db user=app dbname=app"
		return DriverPostgres
	}
	return ""
}

// isKeywordValue reports whether the first token of dsn is a libpq
// "keyword=value" pair. A go-sql-driver DSN such as
// "user:pass@tcp(h:3306)/db?parseTime=true" is not.
func isKeywordValue(dsn string) bool {
	fields := strings.Fields(dsn)
	if len(fields) == 0 {
		return false
	}
	key, _, ok := strings.Cut(fields[0], "=")
	if !ok || key == "" {
		return false
	}
	for _, r := range key {
		if (r < 'a' || r > 'z') && r != '_' {
			return false
		}
	}
	return true
}

func schemeOf(dsn string) string {
	if i := strings.Index(dsn, "://"); i > 0 {
		return dsn[:i]
	}
	return dsn
}

// sqliteDSN turns a sqlite DSN into a go-sqlite3 URI that opens an existing
// database read-write and never creates one. In-memory databases and URIs
// that already set a mode are left alone.
func sqliteDSN(dsn string) string {
	path := dsn
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if strings.HasPrefix(dsn, prefix) {
			path = strings.TrimPrefix(dsn, prefix)
			break
		}
	}
	if path == ":memory:" || strings.HasPrefix(path, "file::memory:") {
		return path
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	_, query, _ := strings.Cut(path, "?")
	for _, kv := range strings.Split(query, "&") {
		if strings.HasPrefix(kv, "mode=") {
			return path
		}
	}
	switch {
	case !strings.Contains(path, "?"):
		return path + "?mode=rw"
	case strings.HasSuffix(path, "?"), strings.HasSuffix(path, "&"):
		return path + "mode=rw"
	default:
		return path + "&mode=rw"
	}
}

// withTimeout applies d to ctx when positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// failedConn carries an error detected at Open time. It holds no resources.
type failedConn struct{ err error }

func (f failedConn) Connect(context.Context) error                  { return f.err }
func (f failedConn) QueryRow(context.Context, string, ...any) error { return ErrNotConnected }
func (f failedConn) Close(context.Context) error                    { return nil }
