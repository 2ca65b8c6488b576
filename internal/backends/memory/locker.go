package memory

import (
	"context"
	"sync"
	"time"
)

// Locker is a process-local lock backend with expiring holders.
type Locker struct {
	mu    sync.Mutex
	held  map[string]holder
	clock func() time.Time
}

type holder struct {
	owner string
	exp   time.Time
}

func NewLocker() *Locker {
	return &Locker{held: make(map[string]holder), clock: time.Now}
}

// WithClock replaces the time source, for tests.
func (l *Locker) WithClock(now func() time.Time) *Locker {
	l.mu.Lock()
	l.clock = now
	l.mu.Unlock()
	return l
}

func (l *Locker) TryAcquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if h, ok := l.held[key]; ok && now.Before(h.exp) {
		return false, nil
	}
	l.held[key] = holder{owner: owner, exp: now.Add(ttl)}
	return true, nil
}

func (l *Locker) Release(_ context.Context, key, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.held[key]
	if !ok || h.owner != owner || !l.clock().Before(h.exp) {
		return false, nil
	}
	delete(l.held, key)
	return true, nil
}
