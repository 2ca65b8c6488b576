package cache

import (
	"sync"
	"time"
)

// TTL is a minimal in-process TTL cache. It backs the transient tier (values that live as long
// as the process) and the memory flavour of the lazy tier.
// A ttl <= 0 keeps the entry until Delete or Clear. Lazy expiration on Get.
type TTL[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	now  func() time.Time
}

type entry[V any] struct {
	val V
	exp time.Time // zero: never expires
}

func NewTTL[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{data: make(map[K]entry[V]), now: time.Now}
}

// WithClock replaces the time source, for tests.
func (t *TTL[K, V]) WithClock(now func() time.Time) *TTL[K, V] {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
	return t
}

// Get returns the value and true if found and not expired; otherwise zero value and false.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	t.mu.RLock()
	e, ok := t.data[k]
	now := t.now()
	t.mu.RUnlock()
	if !ok || (!e.exp.IsZero() && !now.Before(e.exp)) {
		var zero V
		return zero, false
	}
	return e.val, true
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	t.mu.Lock()
	var exp time.Time
	if ttl > 0 {
		exp = t.now().Add(ttl)
	}
	t.data[k] = entry[V]{val: v, exp: exp}
	t.mu.Unlock()
}

func (t *TTL[K, V]) Delete(k K) {
	t.mu.Lock()
	delete(t.data, k)
	t.mu.Unlock()
}

func (t *TTL[K, V]) Clear() {
	t.mu.Lock()
	t.data = make(map[K]entry[V])
	t.mu.Unlock()
}
