package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PoolOption tunes the connection pool opened by Connect.
type PoolOption func(*sql.DB)

// WithMaxOpenConns caps concurrent connections. Sweeps with many workers
// hitting one dataset may need more than the default.
func WithMaxOpenConns(n int) PoolOption {
	return func(db *sql.DB) { db.SetMaxOpenConns(n) }
}

// WithConnMaxIdleTime closes idle connections after d.
func WithConnMaxIdleTime(d time.Duration) PoolOption {
	return func(db *sql.DB) { db.SetConnMaxIdleTime(d) }
}

// pingTimeout bounds the reachability check in Connect.
const pingTimeout = 5 * time.Second

// Connect opens a pool to a statistics or results database and checks that
// it answers.
func Connect(databaseURL string, opts ...PoolOption) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	for _, opt := range opts {
		opt(db)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}
