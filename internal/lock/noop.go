package lock

import (
	"context"
	"time"
)

// NullLocker grants every lock unconditionally. It backs single-process
// runs such as the admin CLI and tests, where no concurrent holder exists
// and the serialization the lock keys describe is already given.
type NullLocker struct{}

// NewNullLocker creates a locker that never blocks.
func NewNullLocker() *NullLocker {
	return &NullLocker{}
}

// Acquire grants the lock immediately.
func (NullLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// AcquireWithRetry grants the lock on the first attempt.
func (l NullLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return l.Acquire(ctx, key, ttl)
}

// Release reports the lock as released.
func (NullLocker) Release(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Extend reports the lock as extended.
func (NullLocker) Extend(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// IsHeld reports no contention: a null lock is never held against anyone.
func (NullLocker) IsHeld(ctx context.Context, key string) (bool, error) {
	return false, ctx.Err()
}

var _ Locker = NullLocker{}
