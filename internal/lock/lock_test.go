package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopLocker(t *testing.T) {
	var l Locker = NopLocker{}
	token, err := l.TryLock(context.Background(), "k", time.Second)
	require.NoError(t, err)
	assert.NoError(t, l.Unlock(context.Background(), "k", token))
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return s, cli
}

func testLockRoundTrip(t *testing.T, cli *redis.Client) {
	ctx := context.Background()
	key := "test:lock:" + uuid.NewString()
	l := NewRedisLocker(cli)
	l.attempts = 2
	l.wait = time.Millisecond

	token, err := l.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = l.TryLock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, l.Unlock(ctx, key, "someone-else"))
	_, err = l.TryLock(ctx, key, 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, l.Unlock(ctx, key, token))
	token, err = l.TryLock(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Unlock(ctx, key, token))
}

func TestRedisLocker(t *testing.T) {
	_, cli := newMiniRedis(t)
	testLockRoundTrip(t, cli)
}

func TestRedisLocker_ExternalServer(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	cli := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = cli.Close() })
	testLockRoundTrip(t, cli)
}

func TestRedisLocker_TokenAndTTL(t *testing.T) {
	s, cli := newMiniRedis(t)
	ctx := context.Background()
	l := NewRedisLocker(cli)
	l.attempts = 1

	token, err := l.TryLock(ctx, "paypal:refund:S1", 10*time.Second)
	require.NoError(t, err)

	got, err := s.Get("paypal:refund:S1")
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.Equal(t, 10*time.Second, s.TTL("paypal:refund:S1"))

	s.FastForward(11 * time.Second)
	assert.False(t, s.Exists("paypal:refund:S1"))

	// the stale holder must not release a lock taken after expiry
	next, err := l.TryLock(ctx, "paypal:refund:S1", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Unlock(ctx, "paypal:refund:S1", token))
	got, err = s.Get("paypal:refund:S1")
	require.NoError(t, err)
	assert.Equal(t, next, got)
}

func TestRedisLocker_RetriesUntilReleased(t *testing.T) {
	s, cli := newMiniRedis(t)
	ctx := context.Background()
	l := NewRedisLocker(cli)
	l.wait = 5 * time.Millisecond

	require.NoError(t, s.Set("k", "holder"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Del("k")
	}()

	token, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, "holder", token)
}

func TestRedisLocker_GivesUpAfterAttempts(t *testing.T) {
	s, cli := newMiniRedis(t)
	l := NewRedisLocker(cli)
	l.attempts = 3
	l.wait = time.Millisecond

	require.NoError(t, s.Set("k", "holder"))
	_, err := l.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
	got, _ := s.Get("k")
	assert.Equal(t, "holder", got)
}

func TestRedisLocker_HonoursContext(t *testing.T) {
	s, cli := newMiniRedis(t)
	l := NewRedisLocker(cli)
	l.wait = time.Second

	require.NoError(t, s.Set("k", "holder"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := l.TryLock(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker_SingleHolder(t *testing.T) {
	_, cli := newMiniRedis(t)
	ctx := context.Background()

	var holders, maxHolders int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := NewRedisLocker(cli)
			l.attempts = 200
			l.wait = time.Millisecond

			token, err := l.TryLock(ctx, "paypal:refund:S1", time.Second)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&holders, 1)
			for {
				m := atomic.LoadInt32(&maxHolders)
				if n <= m || atomic.CompareAndSwapInt32(&maxHolders, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&holders, -1)
			assert.NoError(t, l.Unlock(ctx, "paypal:refund:S1", token))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxHolders)
}
