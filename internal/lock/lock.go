// Package lock serializes mutating roster operations. A single key ("roster")
// guards every batch so two batches never interleave writes.
package lock

import (
	"context"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// RosterKey is held by every operation that mutates duty assignments.
const RosterKey = "roster"

// Locker grants exclusive ownership of a key until release is called.
// Acquire blocks until the key is free or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process Locker. Each key maps to a one-slot semaphore so
// waiting honors context cancellation, which sync.Mutex cannot do.
type Local struct {
	keys *xsync.Map[string, chan struct{}]
}

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{keys: xsync.NewMap[string, chan struct{}]()}
}

var _ Locker = (*Local)(nil)

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	sem, _ := l.keys.LoadOrStore(key, make(chan struct{}, 1))
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-sem })
	}, nil
}

// Held reports whether key is currently owned. Intended for diagnostics.
func (l *Local) Held(key string) bool {
	sem, ok := l.keys.Load(key)
	return ok && len(sem) == 1
}
