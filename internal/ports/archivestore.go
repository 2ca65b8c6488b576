package ports

import (
	"archivist/internal/types"
	"context"
	"time"
)

// ArchiveStore persists archive metadata. Implementations MUST wrap persistence failures with
// types.ErrStore.
type ArchiveStore interface {
	// FindArchive answers the existence lookup for q: the newest complete archive of the exact
	// group archived at or after minArchivedAt, the visit counts of the newest usable archive of
	// the same (site, period, segment) in any group, and whether any archive of the exact group
	// exists at all.
	FindArchive(ctx context.Context, q types.ArchiveQuery, minArchivedAt time.Time) (types.Lookup, error)

	// HasFinerArchives reports whether an archive of a finer granularity than period exists
	// inside period for the site (e.g. a day archive inside a requested month).
	HasFinerArchives(ctx context.Context, siteID int, period types.Period) (bool, error)

	// Invalidate marks the archives of sites covering each date as invalidated.
	// See types.ShouldInvalidate for cascade semantics.
	Invalidate(ctx context.Context, siteIDs []int, dates []time.Time, cascade bool, segment string) error

	// SaveArchive stores a new archive and returns its id. The store assigns the id.
	SaveArchive(ctx context.Context, a types.Archive) (types.ArchiveID, error)

	// GetArchive returns a stored archive or types.ErrNotFound.
	GetArchive(ctx context.Context, id types.ArchiveID) (types.Archive, error)
}
