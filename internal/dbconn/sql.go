package dbconn

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	// database/sql SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// sqlConn adapts database/sql drivers to Conn. The pool is capped at a single
// connection so one readiness call maps to one physical connection.
type sqlConn struct {
	open    func() (*sql.DB, error)
	timeout time.Duration
	db      *sql.DB
}

// newSQLiteConn expects a DSN already normalized by sqliteDSN.
func newSQLiteConn(dsn string, timeout time.Duration) *sqlConn {
	return &sqlConn{
		open:    func() (*sql.DB, error) { return sql.Open("sqlite3", dsn) },
		timeout: timeout,
	}
}

// newMySQLConn expects the go-sql-driver DSN form, e.g. "user:pass@tcp(host:3306)/db".
func newMySQLConn(dsn string, timeout time.Duration) *sqlConn {
	return &sqlConn{
		open: func() (*sql.DB, error) {
			cfg, err := mysql.ParseDSN(dsn)
			if err != nil {
				return nil, err
			}
			if timeout > 0 {
				cfg.Timeout = timeout
			}
			connector, err := mysql.NewConnector(cfg)
			if err != nil {
				return nil, err
			}
			return sql.OpenDB(connector), nil
		},
		timeout: timeout,
	}
}

func (c *sqlConn) Connect(ctx context.Context) error {
	db, err := c.open()
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	// Held before the ping so Close releases it even when the ping fails.
	c.db = db
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	return db.PingContext(ctx)
}

func (c *sqlConn) QueryRow(ctx context.Context, query string, dest ...any) error {
	if c.db == nil {
		return ErrNotConnected
	}
	return c.db.QueryRowContext(ctx, query).Scan(dest...)
}

func (c *sqlConn) Close(context.Context) error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
