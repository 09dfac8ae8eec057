package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// AdvisoryLocker implements ports.Locker with transaction-scoped advisory
// locks. A connection is only held while the lock is held; contended
// attempts roll back and poll.
type AdvisoryLocker struct {
	pool  Pool
	retry time.Duration
}

// NewAdvisoryLocker creates a locker on pool.
func NewAdvisoryLocker(pool Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool, retry: 20 * time.Millisecond}
}

// Lock acquires the advisory lock for key, releasing it when the returned
// func rolls the holding transaction back.
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		tx, acquired, err := l.try(ctx, key)
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() { _ = tx.Rollback(context.Background()) }, nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *AdvisoryLocker) try(ctx context.Context, key string) (pgx.Tx, bool, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("lock %s: begin: %w", key, err)
	}

	var acquired bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, key).Scan(&acquired); err != nil {
		_ = tx.Rollback(ctx)
		return nil, false, fmt.Errorf("lock %s: %w", key, err)
	}
	if !acquired {
		_ = tx.Rollback(ctx)
		return nil, false, nil
	}
	return tx, true, nil
}
