package source

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryConn is a dedicated connection for one load-generator worker.
// It is never shared across goroutines; each worker dials its own.
type QueryConn struct {
	db *sql.DB
}

// Dial opens a single-connection pool against the configured server and
// verifies it is usable.
func Dial(ctx context.Context, cfg Config) (*QueryConn, error) {
	s := New(cfg, nil)
	db, err := sql.Open("sqlserver", s.dsn())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return &QueryConn{db: db}, nil
}

// Exec runs one synthetic query and drains its result set, mirroring what
// a real client would do with the rows.
func (c *QueryConn) Exec(ctx context.Context, query string) error {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func (c *QueryConn) Close() error {
	return c.db.Close()
}
