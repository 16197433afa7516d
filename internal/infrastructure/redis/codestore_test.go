package redisinfra

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCodeStore_SetThenGet(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewCodeStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "verification:code:alice", "482913", 5*time.Minute))

	v, ok, err := s.Get(ctx, "verification:code:alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "482913", v)

	ttl, ok, err := s.TTL(ctx, "verification:code:alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Greater(t, ttl, 4*time.Minute)
	assert.LessOrEqual(t, ttl, 5*time.Minute)
}

func TestCodeStore_PhysicalExpiryIncludesRetention(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewCodeStore(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "482913", 5*time.Minute))

	assert.Equal(t, time.Hour+5*time.Minute, mr.TTL("k"))
}

func TestCodeStore_ExpiredButRetained(t *testing.T) {
	mr, client := newTestRedis(t)
	now := time.Now()
	s := NewCodeStore(client, time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "482913", 5*time.Minute))

	now = now.Add(6 * time.Minute)
	mr.FastForward(6 * time.Minute)

	ttl, ok, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.LessOrEqual(t, ttl, time.Duration(0))

	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Hour)
	_, ok, err = s.TTL(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeStore_MissingKey(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewCodeStore(client, time.Hour)
	ctx := context.Background()

	_, ok, err := s.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	existed, err := s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestCodeStore_ConcurrentDeleteHasOneWinner(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewCodeStore(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "482913", time.Minute))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.Delete(ctx, "k"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestCodeStore_ConsumeMatchingCode(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewCodeStore(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "482913", time.Minute))

	ok, err := s.Consume(ctx, "k", "000000")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("k"))

	ok, err = s.Consume(ctx, "k", "482913")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mr.Exists("k"))

	ok, err = s.Consume(ctx, "k", "482913")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeStore_ConsumeAfterOverwrite(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewCodeStore(client, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "111111", time.Minute))
	require.NoError(t, s.Set(ctx, "k", "222222", time.Minute))

	ok, err := s.Consume(ctx, "k", "111111")
	require.NoError(t, err)
	assert.False(t, ok)

	v, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "222222", v)
}

func TestCodeStore_ConsumeExpiredButRetained(t *testing.T) {
	mr, client := newTestRedis(t)
	now := time.Now()
	s := NewCodeStore(client, time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "k", "482913", 5*time.Minute))

	now = now.Add(6 * time.Minute)

	ok, err := s.Consume(ctx, "k", "482913")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, mr.Exists("k"))
}
