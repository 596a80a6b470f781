package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisKVStore_GetSet(t *testing.T) {
	_, client := setupTestRedis(t)
	kv := NewRedisKVStore(client)
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestRedisKVStore_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	kv := NewRedisKVStore(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisLocker_SingleWriterPerTenant(t *testing.T) {
	_, client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Minute)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "t1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "t1")
	assert.ErrorIs(t, err, ErrTenantLocked)

	other, err := locker.Lock(ctx, "t2")
	require.NoError(t, err, "other tenants are independent")
	other()

	unlock()
	again, err := locker.Lock(ctx, "t1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	mr, client := setupTestRedis(t)
	locker := NewRedisLocker(client, time.Second)
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "t1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(ctx, "t1")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("lead-pipeline:lock:t1"), "stale unlock must not drop the new owner's lock")
	fresh()
	assert.False(t, mr.Exists("lead-pipeline:lock:t1"))
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	mr, client := setupTestRedis(t)
	ttl := 90 * time.Millisecond
	locker := NewRedisLocker(client, ttl)
	key := "lead-pipeline:lock:t1"

	unlock, err := locker.Lock(context.Background(), "t1")
	require.NoError(t, err)

	mr.FastForward(60 * time.Millisecond)
	require.Eventually(t, func() bool { return mr.TTL(key) == ttl }, time.Second, 5*time.Millisecond,
		"a held lock must get its expiry pushed forward")

	mr.FastForward(60 * time.Millisecond)
	require.Eventually(t, func() bool { return mr.TTL(key) == ttl }, time.Second, 5*time.Millisecond)
	assert.True(t, mr.Exists(key), "a run longer than the TTL keeps the tenant")

	unlock()
	assert.False(t, mr.Exists(key))
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "t1")
	require.NoError(t, err)
	_, err = l.Lock(ctx, "t1")
	assert.ErrorIs(t, err, ErrTenantLocked)

	unlock()
	unlock()
	again, err := l.Lock(ctx, "t1")
	require.NoError(t, err)
	again()
}
