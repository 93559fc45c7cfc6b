package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func lockers(t *testing.T) map[string]Locker {
	out := map[string]Locker{"local": NewLocal()}
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = client.Close() })
		prefix := "duty-roster-test:" + t.Name() + ":"
		out["redis"] = NewRedisLocker(client, prefix, time.Second, 10*time.Millisecond, nil)
	}
	return out
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var (
				inside  atomic.Int32
				maxSeen atomic.Int32
				wg      sync.WaitGroup
			)
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					release, err := l.Acquire(context.Background(), RosterKey)
					if !assert.NoError(t, err) {
						return
					}
					n := inside.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					time.Sleep(2 * time.Millisecond)
					inside.Add(-1)
					release()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxSeen.Load())
		})
	}
}

func TestLocker_ContextCancelWhileWaiting(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), RosterKey)
			require.NoError(t, err)
			defer release()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			_, err = l.Acquire(ctx, RosterKey)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestLocal_KeysAreIndependentAndReleaseIsIdempotent(t *testing.T) {
	l := NewLocal()
	releaseA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	releaseB, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	assert.True(t, l.Held("a"))

	releaseA()
	releaseA()
	assert.False(t, l.Held("a"))
	releaseB()

	again, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	again()
}
