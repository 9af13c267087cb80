package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestLockIsExclusivePerUser(t *testing.T) {
	_, client := newMiniRedisClient(t)
	locker := NewUserLocker(client, time.Minute, 120*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Lock(ctx, 7)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, 7)
	assert.ErrorIs(t, err, ErrLockBusy)

	other, err := locker.Lock(ctx, 8)
	require.NoError(t, err)
	other()

	release()

	again, err := locker.Lock(ctx, 7)
	require.NoError(t, err)
	again()
}

func TestLockExpiresAfterTTL(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	locker := NewUserLocker(client, time.Second, 0)
	ctx := context.Background()

	_, err := locker.Lock(ctx, 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := locker.Lock(ctx, 1)
	require.NoError(t, err)
	release()
}

func TestStaleReleaseKeepsNewHolder(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	locker := NewUserLocker(client, time.Second, 0)
	ctx := context.Background()

	staleRelease, err := locker.Lock(ctx, 3)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	release, err := locker.Lock(ctx, 3)
	require.NoError(t, err)
	defer release()

	staleRelease()
	assert.True(t, mr.Exists(userKey(3)))
}

func TestNoopLockerWithoutRedis(t *testing.T) {
	locker := NewUserLocker(nil, time.Second, time.Second)

	release, err := locker.Lock(context.Background(), 1)
	require.NoError(t, err)
	release()
}
