package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLocker holds keys as SET NX PX leases, so batches are serialized across
// every process sharing the Redis server. A held lease is renewed every ttl/3
// until released.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

// NewRedisLocker builds a locker. Zero durations fall back to 30s lease and 100ms polling.
func NewRedisLocker(client redis.Cmdable, prefix string, ttl, retry time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retry <= 0 {
		retry = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, retry: retry, logger: logger}
}

var _ Locker = (*RedisLocker)(nil)

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	name := l.prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	go l.renewalLoop(name, token, stopCh, doneCh)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{name}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.logger.Warn("lock release failed", zap.String("key", name), zap.Error(err))
			}
		})
	}, nil
}

func (l *RedisLocker) renewalLoop(name, token string, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			renewed, err := renewScript.Run(ctx, l.client, []string{name}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.logger.Warn("lock renewal failed", zap.String("key", name), zap.Error(err))
				continue
			}
			if renewed == 0 {
				l.logger.Error("lock lease lost", zap.String("key", name))
				return
			}
		}
	}
}
