package ports

import (
	"context"
	"time"
)

// Locker is the lock backend of the archiving status. A key has at most one holder; ttl
// bounds how long a crashed holder can keep it.
type Locker interface {
	// TryAcquire returns (true, nil) when this call obtained the lock for key. owner
	// identifies the holder and is required to release.
	TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)

	// Release frees key only if owner still holds it. It returns (false, nil) when the lock
	// was lost meanwhile (expired or taken over).
	Release(ctx context.Context, key, owner string) (bool, error)
}
