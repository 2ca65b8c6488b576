package ports

import (
	"context"
	"time"
)

// InvalidationLedger is the durable set of remembered invalidations: "re-archive data of
// this date for these sites".
type InvalidationLedger interface {
	// Pending returns every remembered invalidation keyed by civil date (YYYY-MM-DD).
	Pending(ctx context.Context) (map[string][]int, error)

	// Remember adds the sites to the date's entry.
	Remember(ctx context.Context, date time.Time, siteIDs ...int) error

	// Forget removes the sites from the date's entry; an emptied date disappears.
	Forget(ctx context.Context, date time.Time, siteIDs ...int) error
}
