package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstore/auth-service/internal/persistence"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestRedisKV(t *testing.T) (*miniredis.Miniredis, *persistence.RedisKV) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, persistence.NewRedisKV(client, "test")
}

func TestRevokedUntilNaturalExpiry(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	clock := newTestClock(issuedAt)
	store := persistence.NewMemoryKV(persistence.WithClock(clock.Now))
	registry := NewRevocationRegistry(store, codec)

	token, exp, err := codec.Issue("alice", []string{"EMPLOYEE"}, issuedAt)
	require.NoError(t, err)

	revokeAt := issuedAt.Add(20 * time.Minute)
	clock.Set(revokeAt)
	require.NoError(t, registry.Revoke(ctx, token, revokeAt))

	ttl, err := store.TTL(ctx, revocationKey(token))
	require.NoError(t, err)
	require.Equal(t, exp.Sub(revokeAt), ttl)

	for _, at := range []time.Time{revokeAt, revokeAt.Add(time.Minute), exp.Add(-time.Nanosecond)} {
		clock.Set(at)
		revoked, err := registry.IsRevoked(ctx, token)
		require.NoError(t, err)
		require.True(t, revoked, "at %s", at)
	}

	// After natural expiry the entry is gone and the codec rejects the token
	// on its own.
	clock.Set(exp)
	revoked, err := registry.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, revoked)
	_, err = codec.Verify(token, exp)
	require.ErrorIs(t, err, ErrExpired)
	require.Equal(t, 1, store.Sweep())
}

func TestRevokeDoesNotStoreRawToken(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	mr, kv := newTestRedisKV(t)
	registry := NewRevocationRegistry(kv, codec)

	token, _, err := codec.Issue("alice", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, registry.Revoke(ctx, token, time.Now()))

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.NotContains(t, keys[0], token)
	require.Contains(t, keys[0], revocationPrefix)
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	store := persistence.NewMemoryKV()
	registry := NewRevocationRegistry(store, codec)

	token, exp, err := codec.Issue("alice", nil, issuedAt)
	require.NoError(t, err)

	require.NoError(t, registry.Revoke(ctx, token, exp))
	require.Equal(t, 0, store.Len())
}

func TestRevokeRejectsForgedToken(t *testing.T) {
	ctx := context.Background()
	registry := NewRevocationRegistry(persistence.NewMemoryKV(), newTestCodec(t))

	err := registry.Revoke(ctx, "a.b.c", issuedAt)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestRedisRevocationExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	mr, kv := newTestRedisKV(t)
	registry := NewRevocationRegistry(kv, codec)

	now := time.Now()
	token, exp, err := codec.Issue("alice", []string{"ADMIN"}, now)
	require.NoError(t, err)
	require.NoError(t, registry.Revoke(ctx, token, now))

	revoked, err := registry.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, revoked)

	mr.FastForward(exp.Sub(now))
	revoked, err = registry.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestIsRevokedFailsClosed(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	mr, kv := newTestRedisKV(t)
	registry := NewRevocationRegistry(kv, codec)

	token, _, err := codec.Issue("alice", nil, time.Now())
	require.NoError(t, err)

	mr.Close()

	revoked, err := registry.IsRevoked(ctx, token)
	require.True(t, revoked)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	err = registry.Revoke(ctx, token, time.Now())
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestConcurrentIssueAndRevoke(t *testing.T) {
	ctx := context.Background()
	codec := newTestCodec(t)
	registry := NewRevocationRegistry(persistence.NewMemoryKV(), codec)
	now := time.Now()

	const n = 200
	tokens := make([]string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, _, err := codec.Issue(fmt.Sprintf("user-%d", i), []string{"EMPLOYEE"}, now)
			assert.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				assert.NoError(t, registry.Revoke(ctx, tokens[i], now))
				return
			}
			// Interleave reads of the non-revoked set with the writes.
			_, err := registry.IsRevoked(ctx, tokens[i])
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i, token := range tokens {
		revoked, err := registry.IsRevoked(ctx, token)
		require.NoError(t, err)
		require.Equal(t, i%3 == 0, revoked, "token %d", i)

		claims, err := codec.Verify(token, now)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("user-%d", i), claims.Subject())
	}
}
