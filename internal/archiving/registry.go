package archiving

import (
	"archivist/internal/cache"
	"archivist/internal/types"
	"context"
	"slices"
	"sync"
)

// SiteListProvider contributes site ids to one of the extension lists.
type SiteListProvider func(ctx context.Context) ([]int, error)

// StaticSites is a provider returning a fixed list.
func StaticSites(ids ...int) SiteListProvider {
	return func(context.Context) ([]int, error) { return ids, nil }
}

// Registry collects the extension-provided site lists:
//   - sites not using the standard tracker (they import data, so the activity probe cannot
//     prove them empty);
//   - sites to archive even when they have no visits.
//
// Providers run once; the merged list is kept in the transient cache without expiry until
// Reset.
type Registry struct {
	mu             sync.Mutex
	withoutTracker []SiteListProvider
	withoutVisits  []SiteListProvider
	transient      *cache.TTL[string, []int]
}

func NewRegistry(settings types.Settings, transient *cache.TTL[string, []int]) *Registry {
	if transient == nil {
		transient = cache.NewTTL[string, []int]()
	}
	r := &Registry{transient: transient}
	if len(settings.SitesWithoutTracker) > 0 {
		r.RegisterSitesWithoutTracker(StaticSites(settings.SitesWithoutTracker...))
	}
	if len(settings.SitesArchiveWithoutVisits) > 0 {
		r.RegisterSitesToArchiveWithoutVisits(StaticSites(settings.SitesArchiveWithoutVisits...))
	}
	return r
}

func (r *Registry) RegisterSitesWithoutTracker(p SiteListProvider) {
	r.mu.Lock()
	r.withoutTracker = append(r.withoutTracker, p)
	r.mu.Unlock()
	r.transient.Delete(sitesWithoutTrackerKey)
}

func (r *Registry) RegisterSitesToArchiveWithoutVisits(p SiteListProvider) {
	r.mu.Lock()
	r.withoutVisits = append(r.withoutVisits, p)
	r.mu.Unlock()
	r.transient.Delete(sitesWithoutVisitsKey)
}

// SitesWithoutTracker returns the sites that do not use the standard tracker.
func (r *Registry) SitesWithoutTracker(ctx context.Context) ([]int, error) {
	r.mu.Lock()
	providers := slices.Clone(r.withoutTracker)
	r.mu.Unlock()
	return r.collect(ctx, sitesWithoutTrackerKey, providers)
}

// SitesToArchiveWithoutVisits returns the sites archived even when they had no visits.
func (r *Registry) SitesToArchiveWithoutVisits(ctx context.Context) ([]int, error) {
	r.mu.Lock()
	providers := slices.Clone(r.withoutVisits)
	r.mu.Unlock()
	return r.collect(ctx, sitesWithoutVisitsKey, providers)
}

// UsesTracker reports whether the site records its activity through the standard tracker.
func (r *Registry) UsesTracker(ctx context.Context, siteID int) (bool, error) {
	ids, err := r.SitesWithoutTracker(ctx)
	if err != nil {
		return false, err
	}
	return !slices.Contains(ids, siteID), nil
}

// Reset drops the cached lists; providers run again on next use.
func (r *Registry) Reset() {
	r.transient.Delete(sitesWithoutTrackerKey)
	r.transient.Delete(sitesWithoutVisitsKey)
}

func (r *Registry) collect(ctx context.Context, key string, providers []SiteListProvider) ([]int, error) {
	if ids, ok := r.transient.Get(key); ok {
		return ids, nil
	}
	ids := []int{}
	for _, p := range providers {
		got, err := p(ctx)
		if err != nil {
			return nil, types.Err(types.ErrConfiguration, err, "site list provider for %s", key)
		}
		for _, id := range got {
			if id <= 0 {
				return nil, types.Err(types.ErrConfiguration, nil, "site list provider for %s returned site %d", key, id)
			}
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	r.transient.Set(key, ids, 0)
	return ids, nil
}
