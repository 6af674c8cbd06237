package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newMini(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(Options{Addr: mr.Addr(), Prefix: "test:"})
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNilCacheLoadsThrough(t *testing.T) {
	var c *Cache
	calls := 0
	got, err := GetOrLoadJSON(c, context.Background(), "k", time.Minute, func(context.Context) (*item, error) {
		calls++
		return &item{ID: "1", Name: "a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, 1, calls)

	assert.NoError(t, c.Invalidate(context.Background(), "k"))
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
}

func TestUnreachableRedisFallsBackToLoad(t *testing.T) {
	c := New(Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, Prefix: "test:"})
	defer c.Close()

	ctx := context.Background()
	assert.Error(t, c.Ping(ctx))

	got, err := GetOrLoadJSON(c, ctx, "story:1", time.Minute, func(context.Context) (*item, error) {
		return &item{ID: "1", Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
}

func TestLoadErrorPropagates(t *testing.T) {
	c, mr := newMini(t)

	boom := errors.New("boom")
	_, err := GetOrLoadJSON(c, context.Background(), "k", time.Minute, func(context.Context) (*item, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:k"))
}

func TestHitAndInvalidate(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	name, calls := "v1", 0
	load := func(context.Context) (*item, error) {
		calls++
		return &item{ID: "1", Name: name}, nil
	}

	got, err := GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Name)
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	// 命中缓存，不回源
	name = "v2"
	got, err = GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Name)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Invalidate(ctx, "k"))
	assert.False(t, mr.Exists("test:k"))

	got, err = GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
	assert.Equal(t, 2, calls)
}

func TestInvalidateDuringLoadIsNotCached(t *testing.T) {
	c, mr := newMini(t)
	ctx := context.Background()

	calls := 0
	// 第一次回源读到旧值后，另一个写者提交并失效
	load := func(ctx context.Context) (*item, error) {
		calls++
		if calls == 1 {
			require.NoError(t, c.Invalidate(ctx, "k"))
			return &item{ID: "1", Name: "stale"}, nil
		}
		return &item{ID: "1", Name: "fresh"}, nil
	}

	got, err := GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "stale", got.Name)
	assert.False(t, mr.Exists("test:k"))

	got, err = GetOrLoadJSON(c, ctx, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
	assert.Equal(t, 2, calls)
	assert.True(t, mr.Exists("test:k"))
}

func TestLoadIgnoresCallerCancellation(t *testing.T) {
	c, mr := newMini(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := GetOrLoadJSON(c, ctx, "k", time.Minute, func(ctx context.Context) (*item, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &item{ID: "1", Name: "ok"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Name)
	assert.True(t, mr.Exists("test:k"))
}
