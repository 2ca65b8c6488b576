package archiving

import (
	"archivist/internal/cache"
	"archivist/internal/types"
	"context"
)

func (s *UnitTestSuite) TestRegistryCollectsOnce() {
	st := s.settings()
	st.SitesWithoutTracker = []int{3}
	r := NewRegistry(st, cache.NewTTL[string, []int]())

	calls := 0
	r.RegisterSitesWithoutTracker(func(context.Context) ([]int, error) {
		calls++
		return []int{4, 3}, nil
	})

	ids, err := r.SitesWithoutTracker(s.ctx)
	s.NoError(err)
	s.Equal([]int{3, 4}, ids)
	_, err = r.SitesWithoutTracker(s.ctx)
	s.NoError(err)
	s.Equal(1, calls)

	uses, err := r.UsesTracker(s.ctx, 4)
	s.NoError(err)
	s.False(uses)
	uses, err = r.UsesTracker(s.ctx, 1)
	s.NoError(err)
	s.True(uses)

	r.Reset()
	_, err = r.SitesWithoutTracker(s.ctx)
	s.NoError(err)
	s.Equal(2, calls)

	ids, err = r.SitesToArchiveWithoutVisits(s.ctx)
	s.NoError(err)
	s.Empty(ids)
}

func (s *UnitTestSuite) TestRegistryProviderErrors() {
	r := NewRegistry(s.settings(), nil)
	r.RegisterSitesToArchiveWithoutVisits(func(context.Context) ([]int, error) { return nil, errBoom })
	_, err := r.SitesToArchiveWithoutVisits(s.ctx)
	s.ErrorIs(err, types.ErrConfiguration)
	s.ErrorIs(err, errBoom)

	r = NewRegistry(s.settings(), nil)
	r.RegisterSitesWithoutTracker(StaticSites(0))
	_, err = r.UsesTracker(s.ctx, 1)
	s.ErrorIs(err, types.ErrConfiguration)
}
