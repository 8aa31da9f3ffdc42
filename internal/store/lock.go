package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrLockHeld = errors.New("lock already held")

// Locker is the advisory lock taken for the duration of a pipeline run so
// two orchestrators never interleave dimension merges.
type Locker interface {
	// Acquire takes the lock for ttl, storing owner for diagnostics.
	// Returns ErrLockHeld when another run owns it.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) error
	// Release frees the lock if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

type RedisLocker struct {
	c *redis.Client
}

func NewRedisLocker(c *redis.Client) *RedisLocker { return &RedisLocker{c: c} }

func (r *RedisLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) error {
	ok, err := r.c.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// releaseScript deletes the key only when it still carries our owner
// value, so an expired lock reacquired by another run is never freed.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (r *RedisLocker) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, r.c, []string{key}, owner).Err()
}

// NewRedisClient builds the client the locker wraps.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
