package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()

	ctx := context.Background()
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestMemoryZeroTTLIsNoop(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()

	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), 0))
	assert.Equal(t, 0, m.Len())
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(time.Hour)
	defer m.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))

	now = now.Add(999 * time.Millisecond)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Millisecond)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)

	m.sweep()
	assert.Equal(t, 0, m.Len())
}

func TestMemoryCloseIsIdempotent(t *testing.T) {
	m := NewMemory(time.Millisecond)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestOpenWithoutAddrUsesMemory(t *testing.T) {
	c := Open(context.Background(), "", zap.NewNop())
	defer c.Close()
	_, ok := c.(*Memory)
	assert.True(t, ok)
}

func TestOpenUnreachableRedisFallsBackToMemory(t *testing.T) {
	c := Open(context.Background(), "127.0.0.1:1", zap.NewNop())
	defer c.Close()
	_, ok := c.(*Memory)
	assert.True(t, ok)
}

func TestOpenReachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	c := Open(context.Background(), mr.Addr(), zap.NewNop())
	defer c.Close()
	_, ok := c.(*Redis)
	assert.True(t, ok)
}

func TestRedisGetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer r.Close()

	ctx := context.Background()
	_, ok, err := r.Get(ctx, "/samehadaku/home")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "/samehadaku/home", []byte(`{"data":{}}`), time.Minute))
	assert.True(t, mr.Exists(keyPrefix+"/samehadaku/home"))

	v, ok, err := r.Get(ctx, "/samehadaku/home")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"data":{}}`), v)

	mr.FastForward(time.Minute)
	_, ok, err = r.Get(ctx, "/samehadaku/home")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisZeroTTLIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer r.Close()

	require.NoError(t, r.Set(context.Background(), "k", []byte("v"), 0))
	assert.False(t, mr.Exists(keyPrefix+"k"))
}

func TestRedisGetError(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer r.Close()

	mr.SetError("ERR cache offline")
	_, ok, err := r.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, ok)
}
