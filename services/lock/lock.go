package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when another run holds the lock
var ErrHeld = errors.New("lock: held by another run")

// Locker guards a pipeline run against overlapping runs
type Locker interface {
	// TryAcquire takes the lock without waiting and returns its release function
	TryAcquire(ctx context.Context) (release func(), err error)
}

// LocalLock serializes runs inside one process
type LocalLock struct {
	mu sync.Mutex
}

// NewLocalLock creates an in-process lock
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// TryAcquire implements Locker
func (l *LocalLock) TryAcquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
