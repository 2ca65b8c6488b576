package memory

import (
	"archivist/internal/types"
	"context"
	"sync"
)

type SiteStore struct {
	mu    sync.RWMutex
	sites map[int]types.Site
}

func NewSiteStore(sites ...types.Site) *SiteStore {
	s := &SiteStore{sites: make(map[int]types.Site, len(sites))}
	for _, site := range sites {
		s.sites[site.ID] = site
	}
	return s
}

func (s *SiteStore) GetSite(_ context.Context, siteID int) (types.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[siteID]
	if !ok {
		return types.Site{}, types.Err(types.ErrNotFound, nil, "site %d", siteID)
	}
	return site, nil
}

func (s *SiteStore) PutSite(_ context.Context, site types.Site) error {
	if site.ID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "site id must be positive, got %d", site.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = site
	return nil
}
