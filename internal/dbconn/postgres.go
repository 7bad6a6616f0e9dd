package dbconn

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// pgConn wraps a single pgx.Conn; no pool is involved.
type pgConn struct {
	dsn     string
	timeout time.Duration
	conn    *pgx.Conn
}

func (c *pgConn) Connect(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	conn, err := pgx.Connect(ctx, c.dsn)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *pgConn) QueryRow(ctx context.Context, query string, dest ...any) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.QueryRow(ctx, query).Scan(dest...)
}

func (c *pgConn) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(ctx)
	c.conn = nil
	return err
}
