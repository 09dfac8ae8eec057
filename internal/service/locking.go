package service

import (
	"context"
	"errors"
	"time"

	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"
)

// BoundedLocker caps how long a caller waits for a key.
type BoundedLocker struct {
	inner ports.Locker
	wait  time.Duration
}

// NewBoundedLocker wraps inner; a zero wait only honours the caller's context.
func NewBoundedLocker(inner ports.Locker, wait time.Duration) *BoundedLocker {
	return &BoundedLocker{inner: inner, wait: wait}
}

func (l *BoundedLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.wait <= 0 {
		return l.inner.Lock(ctx, key)
	}
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	return l.inner.Lock(waitCtx, key)
}

func walletLockKey(accountID string) string    { return "wallet:" + accountID }
func deliveryLockKey(deliveryID string) string { return "delivery:" + deliveryID }

// acquire takes key and maps lock failures to AppErrors.
func acquire(ctx context.Context, locker ports.Locker, key string) (func(), error) {
	unlock, err := locker.Lock(ctx, key)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperror.ErrLockTimeout(err)
		}
		return nil, apperror.InternalError(err)
	}
	return unlock, nil
}
