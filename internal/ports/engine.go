package ports

import (
	"archivist/internal/types"
	"context"
	"time"
)

// Aggregator is the external aggregation engine. One Session builds one archive of the given
// group (done flag) for params.
type Aggregator interface {
	Open(params types.Params, group string) Session

	// ArchivesWithoutVisits reports whether some plugin produces output even with zero visits.
	ArchivesWithoutVisits() bool
}

type Session interface {
	AggregateCoreMetrics(ctx context.Context) (types.CoreMetrics, error)
	AggregateAllPlugins(ctx context.Context, core types.CoreMetrics, forceWithoutVisits bool) error
	Finalize(ctx context.Context) (types.ArchiveID, error)
}

// InProgressPolicy returns the minimum acceptable archived-at instant for a period that has
// not ended yet.
type InProgressPolicy interface {
	MinArchivedAt(ctx context.Context, params types.Params, now time.Time) (time.Time, error)
}
