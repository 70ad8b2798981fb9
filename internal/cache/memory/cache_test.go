package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serik1987/corefacility/internal/repository"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := NewCache()
	t.Cleanup(c.Stop)
	return c
}

func TestCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	t.Run("miss on unknown key", func(t *testing.T) {
		_, err := c.Get(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrCacheMiss)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", []byte("value"), 0))
		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), got)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "copy", []byte("abc"), 0))
		got, err := c.Get(ctx, "copy")
		require.NoError(t, err)
		got[0] = 'X'

		again, err := c.Get(ctx, "copy")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})

	t.Run("expired entry misses", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "ttl", []byte("v"), time.Nanosecond))
		time.Sleep(time.Millisecond)
		_, err := c.Get(ctx, "ttl")
		assert.ErrorIs(t, err, repository.ErrCacheMiss)
	})
}

func TestCache_SetNX(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	ok, err := c.SetNX(ctx, "k", []byte("first"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "k", []byte("second"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	t.Run("expired key can be re-set", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "gone", []byte("v"), time.Nanosecond))
		time.Sleep(time.Millisecond)
		ok, err := c.SetNX(ctx, "gone", []byte("fresh"), 0)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCache_ExistsDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	ok, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "a"))
	ok, err = c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.DeleteMulti(ctx, "a", "b", "c"))
	ok, err = c.Exists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expire(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Expire(ctx, "k", time.Nanosecond))
	time.Sleep(time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrCacheMiss)

	// Expiring a missing key is a no-op.
	assert.NoError(t, c.Expire(ctx, "missing", time.Second))
}

func TestCache_Increment(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	n, err := c.Increment(ctx, "counter", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Increment(ctx, "counter", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = c.Increment(ctx, "counter", -10)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), n)
}
