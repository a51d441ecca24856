package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"sjsage522/dealalert/logger"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock serializes runs across processes sharing one Redis.
// The TTL bounds how long a crashed holder can block later runs.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisLock creates a lock stored at key
func NewRedisLock(client redis.UniversalClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		ttl:    ttl,
		log:    logger.ForWorker().WithField("lock", key),
	}
}

// TryAcquire implements Locker
func (l *RedisLock) TryAcquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Msg("Failed to release run lock")
		}
	}, nil
}
