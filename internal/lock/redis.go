package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries the caller's
// token, so a slow holder cannot drop a lock that expired and was
// re-acquired elsewhere.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker implements Locker on a Redis SET NX with TTL. Ownership
// lives entirely in the token returned by Acquire; the locker itself is
// stateless.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a RedisLocker. prefix is optional
// (e.g. "sentinel:lock:").
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "sentinel:lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	return l.client.Eval(ctx, releaseScript, []string{l.prefix + key}, token).Err()
}
