package archiving

import (
	"archivist/internal/backends/memory"
	"archivist/internal/types"
)

func (s *UnitTestSuite) TestSiteDirectoryCachesUntilCleared() {
	store := memory.NewSiteStore(types.Site{ID: 1, Name: "shop", Timezone: "Europe/Paris"})
	d := NewSiteDirectory(store)

	site, err := d.Site(s.ctx, 1)
	s.NoError(err)
	s.Equal("shop", site.Name)

	s.NoError(store.PutSite(s.ctx, types.Site{ID: 1, Name: "renamed"}))
	site, err = d.Site(s.ctx, 1)
	s.NoError(err)
	s.Equal("shop", site.Name)

	d.ClearCache()
	site, err = d.Site(s.ctx, 1)
	s.NoError(err)
	s.Equal("renamed", site.Name)

	_, err = d.Site(s.ctx, 2)
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *UnitTestSuite) TestSiteDirectoryRejectsUnknownTimezone() {
	store := memory.NewSiteStore(types.Site{ID: 4, Timezone: "Mars/Olympus_Mons"})
	d := NewSiteDirectory(store)

	_, err := d.Site(s.ctx, 4)
	s.ErrorIs(err, types.ErrConfiguration)

	s.NoError(store.PutSite(s.ctx, types.Site{ID: 4, Timezone: "Europe/Paris"}))
	site, err := d.Site(s.ctx, 4)
	s.NoError(err)
	s.Equal("Europe/Paris", site.Timezone)
}
