package cache

import (
	"context"
	"time"
)

// Memory is a process-local ports.LazyCache. It is used when no shared cache backend is
// configured; entries are then only shared by the goroutines of one worker.
type Memory struct {
	ttl *TTL[string, string]
}

func NewMemory() *Memory {
	return &Memory{ttl: NewTTL[string, string]()}
}

// WithClock replaces the time source, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.ttl.WithClock(now)
	return m
}

func (m *Memory) Fetch(_ context.Context, key string) (string, bool, error) {
	v, ok := m.ttl.Get(key)
	return v, ok, nil
}

func (m *Memory) Save(_ context.Context, key, value string, ttl time.Duration) error {
	m.ttl.Set(key, value, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.ttl.Delete(key)
	return nil
}
