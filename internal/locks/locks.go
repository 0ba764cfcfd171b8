// Package locks provides short-lived named locks used to serialize work on a
// single key, such as crediting one payment intent.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned when a lock is held elsewhere.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out named locks.
type Locker interface {
	// TryLock acquires key for at most ttl. It never blocks; a held key yields ErrNotAcquired.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
}

// Unlocker releases a held lock.
type Unlocker interface {
	Unlock(ctx context.Context) error
}

// =============================================================================
// In-process locker
// =============================================================================

// MemoryLocker is a Locker scoped to the current process.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]time.Time), clock: time.Now}
}

func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlocker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, ErrNotAcquired
	}
	expires := now.Add(ttl)
	l.held[key] = expires
	return &memoryLock{locker: l, key: key, expires: expires}, nil
}

// Held reports how many keys are currently locked.
func (l *MemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	n := 0
	for _, expires := range l.held {
		if now.Before(expires) {
			n++
		}
	}
	return n
}

type memoryLock struct {
	locker  *MemoryLocker
	key     string
	expires time.Time
}

func (m *memoryLock) Unlock(ctx context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	// Only release our own acquisition; an expired lock may have been re-taken.
	if current, ok := m.locker.held[m.key]; ok && current.Equal(m.expires) {
		delete(m.locker.held, m.key)
	}
	return nil
}
