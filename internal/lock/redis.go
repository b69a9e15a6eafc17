// Package lock provides a Redis-backed mutual exclusion lock for batch runs.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// DefaultTTL bounds how long a crashed holder keeps the lock.
const DefaultTTL = 15 * time.Minute

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = eris.New("lock: held")

// releaseScript deletes the key only while it still carries our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// cmdable is the subset of *redis.Client used by RedisLocker.
type cmdable interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLocker takes SET NX locks with a TTL.
type RedisLocker struct {
	rdb cmdable
	ttl time.Duration
}

// NewRedisLocker wraps an existing client. A non-positive ttl uses DefaultTTL.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return newLocker(rdb, ttl)
}

func newLocker(rdb cmdable, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

// Connect parses a redis:// URL and returns a locker plus the client so
// the caller can close it.
func Connect(url string, ttl time.Duration) (*RedisLocker, *redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, eris.Wrap(err, "lock: parse redis url")
	}
	rdb := redis.NewClient(opt)
	return NewRedisLocker(rdb, ttl), rdb, nil
}

// Acquire sets key to a fresh token if it is absent. The returned func
// releases the lock only if the token still matches.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "lock: setnx %s", key)
	}
	if !ok {
		return nil, eris.Wrapf(ErrHeld, "lock: key %s", key)
	}

	release := func(ctx context.Context) error {
		if err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			return eris.Wrapf(err, "lock: release %s", key)
		}
		return nil
	}
	return release, nil
}
