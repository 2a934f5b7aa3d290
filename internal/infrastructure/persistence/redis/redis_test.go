package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/spectrum/internal/domain/student"
)

// newTestCache connects to REDIS_TEST_URL and skips otherwise. The test
// database is flushed before use.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	cfg := DefaultConfig()
	cfg.URL = url
	c, err := NewCache(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Client().FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "redis://:secret@cache.internal:6380/2"
	opts, err := cfg.options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 10, opts.PoolSize)

	cfg.URL = "http://nope"
	_, err = cfg.options()
	assert.Error(t, err)
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	type stats struct{ Total int }
	require.NoError(t, c.Set(ctx, StatsKey("dept"), stats{Total: 3}, time.Minute))

	var got stats
	require.NoError(t, c.Get(ctx, StatsKey("dept"), &got))
	assert.Equal(t, 3, got.Total)

	assert.ErrorIs(t, c.Get(ctx, StatsKey("missing"), &got), ErrCacheMiss)

	require.NoError(t, c.Delete(ctx, StatsKey("dept"), StatsKey("missing")))
	assert.ErrorIs(t, c.Get(ctx, StatsKey("dept"), &got), ErrCacheMiss)
	assert.NoError(t, c.Delete(ctx))
}

func TestCache_TryLock(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	release, ok, err := c.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = c.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRatingBoard(t *testing.T) {
	b := NewRatingBoard(newTestCache(t))
	ctx := context.Background()

	require.NoError(t, b.Rebuild(ctx, []student.Standing{
		{StudentID: "a", FullName: "A", Rating: 1000},
		{StudentID: "b", FullName: "B", Rating: 1200},
		{StudentID: "c", FullName: "C", Rating: 900},
	}))
	require.NoError(t, b.Upsert(ctx, student.Standing{StudentID: "c", FullName: "C", Rating: 1300}))

	top, err := b.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].StudentID)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "b", top[1].StudentID)

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
