package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// releaseScript deletes the lock only if the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var errLockHeld = errors.New("lock held by another owner")

// RedisKeyLocker serializes callers per key across processes.
// The lease bounds how long a crashed holder can block a key.
type RedisKeyLocker struct {
	client *redis.Client
	prefix string
	lease  time.Duration
	poll   time.Duration
}

// ConnectRedis opens a client and verifies it with PING
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisKeyLocker creates a locker storing keys under prefix
func NewRedisKeyLocker(client *redis.Client, lease time.Duration) *RedisKeyLocker {
	if lease <= 0 {
		lease = 30 * time.Second
	}
	return &RedisKeyLocker{
		client: client,
		prefix: "settlement:lock:",
		lease:  lease,
		poll:   10 * time.Millisecond,
	}
}

// Lock acquires key with SET NX PX, polling with backoff until ctx is done
func (l *RedisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = l.poll
	exp.MaxInterval = 250 * time.Millisecond
	exp.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.lease).Result()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return backoff.Permanent(fmt.Errorf("failed to acquire redis lock %s: %w", key, err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}, backoff.WithContext(exp, ctx))
	if err != nil {
		if errors.Is(err, errLockHeld) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return func() {
		// release must run even if the caller's context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": err,
			}).Warn("Failed to release redis lock, it will expire with its lease")
		}
	}, nil
}
