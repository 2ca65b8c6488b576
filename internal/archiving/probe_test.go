package archiving

import (
	"archivist/internal/types"
	"time"
)

func (s *UnitTestSuite) TestProbeCachesMinVisitTime() {
	s.recordVisit(1, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	p := NewProbe(s.activity, s.lazy, time.Hour)

	t, ok, err := p.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.True(ok)
	s.Equal(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), t)
	s.Equal(1, s.activity.calls())

	_, _, err = p.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.Equal(1, s.activity.calls())

	s.now = s.now.Add(time.Hour - time.Second)
	_, _, err = p.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.Equal(1, s.activity.calls())

	// the entry is gone once the ttl elapsed
	s.now = s.now.Add(time.Second)
	_, _, err = p.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.Equal(2, s.activity.calls())

	s.NoError(p.Forget(s.ctx, 1))
	_, _, err = p.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.Equal(3, s.activity.calls())
}

func (s *UnitTestSuite) TestProbeCachesAbsenceOfActivity() {
	p := NewProbe(s.activity, s.lazy, time.Hour)
	_, ok, err := p.MinActivityTime(s.ctx, 2)
	s.NoError(err)
	s.False(ok)
	_, ok, err = p.MinActivityTime(s.ctx, 2)
	s.NoError(err)
	s.False(ok)
	s.Equal(1, s.activity.calls())

	v, cached, err := s.lazy.Fetch(s.ctx, "Archiving.minVisitTime.2")
	s.NoError(err)
	s.True(cached)
	s.Equal("", v)
}

func (s *UnitTestSuite) TestProbeIgnoresMalformedCacheValue() {
	s.recordVisit(1, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	s.NoError(s.lazy.Save(s.ctx, "Archiving.minVisitTime.1", "yesterday", 0))
	p := NewProbe(s.activity, s.lazy, time.Hour)

	t, ok, err := p.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.True(ok)
	s.Equal(2024, t.Year())
	s.Equal(1, s.activity.calls())
}

func (s *UnitTestSuite) TestProbeSurvivesBrokenCache() {
	s.recordVisit(1, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	p := NewProbe(s.activity, brokenCache{}, time.Hour)

	has, err := p.HasActivityInRange(s.ctx, 1, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC))
	s.NoError(err)
	s.True(has)
}

func (s *UnitTestSuite) TestHasActivityInRange() {
	s.recordVisit(1, time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC))
	p := NewProbe(s.activity, s.lazy, time.Hour)
	day := func(d int) (time.Time, time.Time) {
		from := time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
		return from, from.Add(24*time.Hour - time.Second)
	}

	from, to := day(10)
	has, err := p.HasActivityInRange(s.ctx, 1, from, to)
	s.NoError(err)
	s.True(has)

	// entirely before the first visit: answered from the cached minimum alone
	from, to = day(8)
	has, err = p.HasActivityInRange(s.ctx, 1, from, to)
	s.NoError(err)
	s.False(has)

	from, to = day(11)
	has, err = p.HasActivityInRange(s.ctx, 1, from, to)
	s.NoError(err)
	s.False(has)

	has, err = p.HasActivityInRange(s.ctx, 9, from, to)
	s.NoError(err)
	s.False(has)
}

func (s *UnitTestSuite) TestProbeDefaultsTTL() {
	p := NewProbe(s.activity, s.lazy, 0)
	s.Equal(types.DefaultMinVisitTimeTTLSeconds*time.Second, p.ttl)
}
