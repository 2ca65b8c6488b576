package archiving

import (
	"archivist/internal/cache"
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"errors"
	"time"
)

const siteCacheTTL = 5 * time.Minute

// SiteDirectory is a cached view of the site store.
type SiteDirectory struct {
	store ports.SiteStore
	cache *cache.TTL[int, types.Site]
}

func NewSiteDirectory(store ports.SiteStore) *SiteDirectory {
	return &SiteDirectory{store: store, cache: cache.NewTTL[int, types.Site]()}
}

// Site returns the site, or an error matching types.ErrNotFound. A site whose timezone
// cannot be loaded is rejected with types.ErrConfiguration.
func (d *SiteDirectory) Site(ctx context.Context, siteID int) (types.Site, error) {
	if s, ok := d.cache.Get(siteID); ok {
		return s, nil
	}
	s, err := d.store.GetSite(ctx, siteID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.Site{}, err
		}
		return types.Site{}, types.StoreErr(err, "get site %d", siteID)
	}
	// an unloadable timezone would make Location fall back to UTC
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return types.Site{}, types.Err(types.ErrConfiguration, err, "site %d has unknown timezone %q", siteID, s.Timezone)
		}
	}
	d.cache.Set(siteID, s, siteCacheTTL)
	return s, nil
}

// ClearCache drops every cached site.
func (d *SiteDirectory) ClearCache() {
	d.cache.Clear()
}
