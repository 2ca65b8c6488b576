package ports

import (
	"context"
	"time"
)

// LazyCache is the shared, cross-process cache tier. A zero ttl keeps the entry until it is
// deleted. An entry MUST NOT be returned once its ttl elapsed.
type LazyCache interface {
	Fetch(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
