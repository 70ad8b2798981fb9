package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	ok, err := l.Acquire(ctx, "daemon", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "daemon", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock cannot be re-acquired")

	held, err := l.IsHeld(ctx, "daemon")
	require.NoError(t, err)
	assert.True(t, held)

	released, err := l.Release(ctx, "daemon")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = l.Release(ctx, "daemon")
	require.NoError(t, err)
	assert.False(t, released, "double release reports nothing held")

	ok, err = l.Acquire(ctx, "daemon", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	ok, err := l.Acquire(ctx, "stale", time.Nanosecond)
	require.NoError(t, err)
	require.True(t, ok)
	time.Sleep(time.Millisecond)

	held, err := l.IsHeld(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, held)

	ok, err = l.Acquire(ctx, "stale", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is up for grabs")
}

func TestMemoryLocker_Extend(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	ok, err := l.Extend(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)

	ok, err = l.Extend(ctx, "job", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("expired lock cannot be extended", func(t *testing.T) {
		_, err := l.Acquire(ctx, "gone", time.Nanosecond)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)

		ok, err := l.Extend(ctx, "gone", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemoryLocker_AcquireWithRetry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	t.Run("eventually wins after the holder expires", func(t *testing.T) {
		_, err := l.Acquire(ctx, "busy", 5*time.Millisecond)
		require.NoError(t, err)

		ok, err := l.AcquireWithRetry(ctx, "busy", time.Minute, 10, 2*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		_, err := l.Acquire(ctx, "held", time.Minute)
		require.NoError(t, err)

		ok, err := l.AcquireWithRetry(ctx, "held", time.Minute, 2, time.Millisecond)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("honours context cancellation", func(t *testing.T) {
		_, err := l.Acquire(ctx, "forever", time.Minute)
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = l.AcquireWithRetry(cancelled, "forever", time.Minute, 5, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
