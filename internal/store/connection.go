package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock
// satisfies it in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// NewPool connects to Postgres and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return pool, nil
}

// beginTx opens a transaction on a freshly acquired connection,
// retrying acquisition up to s.retries times with a fixed delay.
func (s *Store) beginTx(ctx context.Context) (pgx.Tx, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		tx, err := s.db.Begin(ctx)
		if err == nil {
			return tx, nil
		}
		lastErr = err
		s.logger.Warn("database connection attempt failed",
			"attempt", attempt,
			"max_attempts", s.retries,
			"error", err)
		if attempt < s.retries {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("store: begin after %d attempts: %w", s.retries, lastErr)
}
