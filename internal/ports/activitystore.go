package ports

import (
	"archivist/internal/types"
	"context"
	"time"
)

// ActivityStore is the source of truth for raw tracked activity.
type ActivityStore interface {
	// MinActivityTime returns the earliest activity instant of the site; ok is false when the
	// site has never recorded any activity.
	MinActivityTime(ctx context.Context, siteID int) (t time.Time, ok bool, err error)

	// HasActivityBetween reports whether any activity exists in [from, to).
	HasActivityBetween(ctx context.Context, siteID int, from, to time.Time) (bool, error)
}

// VisitLog is an ActivityStore that can also record and scan visits. The reference
// aggregation engine reads from it.
type VisitLog interface {
	ActivityStore

	RecordVisit(ctx context.Context, v types.Visit) error

	// Visits returns the visits of the site whose first action lies in [from, to).
	Visits(ctx context.Context, siteID int, from, to time.Time) ([]types.Visit, error)
}

// SiteStore resolves site metadata.
// MUST return types.ErrNotFound if the site does not exist.
type SiteStore interface {
	GetSite(ctx context.Context, siteID int) (types.Site, error)
	PutSite(ctx context.Context, site types.Site) error
}
