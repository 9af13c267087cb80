// Package lock serialises reconciliation requests of a single user.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockBusy = errors.New("another request for this user is in progress")

type UserLocker interface {
	// Lock blocks until the user's lock is held, the wait budget runs out
	// (ErrLockBusy) or ctx is done. The returned func releases the lock.
	Lock(ctx context.Context, userID uint) (func(), error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, uint) (func(), error) {
	return func() {}, nil
}

type redisLocker struct {
	rdb   *redis.Client
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// only the holder's token may delete the key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewUserLocker returns a redis backed locker, or a no-op locker when rdb is
// nil. ttl bounds how long a crashed holder can keep the lock.
func NewUserLocker(rdb *redis.Client, ttl, wait time.Duration) UserLocker {
	if rdb == nil {
		return noopLocker{}
	}
	return &redisLocker{
		rdb:   rdb,
		ttl:   ttl,
		wait:  wait,
		retry: 50 * time.Millisecond,
	}
}

func userKey(userID uint) string {
	return fmt.Sprintf("iap:lock:user:%d", userID)
}

func (l *redisLocker) Lock(ctx context.Context, userID uint) (func(), error) {
	key := userKey(userID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire user lock: %w", err)
		}
		if ok {
			return func() {
				// release even if the request context was cancelled
				_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
