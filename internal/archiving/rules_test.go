package archiving

import (
	"archivist/internal/types"
	"context"
	"time"
)

type fixedPolicy struct{ at time.Time }

func (p fixedPolicy) MinArchivedAt(context.Context, types.Params, time.Time) (time.Time, error) {
	return p.at, nil
}

func (s *UnitTestSuite) TestPermanentPeriodUsesEndInstant() {
	r := NewRules(s.settings(), nil)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	s.True(IsPermanent(p, s.now))
	bound, err := r.MinArchivedAt(s.ctx, p)
	s.NoError(err)
	s.Equal(time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC), bound)

	// later "now" values never move the bound of a permanent period
	s.now = s.now.AddDate(1, 0, 0)
	again, err := r.MinArchivedAt(s.ctx, p)
	s.NoError(err)
	s.Equal(bound, again)
}

func (s *UnitTestSuite) TestInProgressPeriodUsesPolicy() {
	st := s.settings()
	st.TodayArchiveTTLSeconds = 600
	st.PeriodArchiveTTLSeconds = 3600
	r := NewRules(st, nil)

	today := s.params(1, types.PeriodDay, "2024-03-11")
	s.False(IsPermanent(today, s.now))
	bound, err := r.MinArchivedAt(s.ctx, today)
	s.NoError(err)
	s.Equal(s.now.Add(-600*time.Second), bound)

	month := s.params(1, types.PeriodMonth, "2024-03-11")
	bound, err = r.MinArchivedAt(s.ctx, month)
	s.NoError(err)
	s.Equal(s.now.Add(-time.Hour), bound)

	custom := NewRules(st, fixedPolicy{at: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)})
	bound, err = custom.MinArchivedAt(s.ctx, today)
	s.NoError(err)
	s.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), bound)
}

func (s *UnitTestSuite) TestPeriodEndingNowIsInProgress() {
	p := s.params(1, types.PeriodDay, "2024-03-11")
	s.now = p.EndInstant()
	s.False(IsPermanent(p, s.now))
	s.True(IsPermanent(p, s.now.Add(time.Second)))
}

func (s *UnitTestSuite) TestPermanenceFollowsSiteTimezone() {
	// 2024-03-10 ends at 2024-03-11T03:59:59Z in New York (UTC-4 after the DST switch)
	p := s.params(1, types.PeriodDay, "2024-03-10")
	p.Site.Timezone = "America/New_York"
	s.now = time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC)
	s.False(IsPermanent(p, s.now))
	s.now = time.Date(2024, 3, 11, 5, 0, 0, 0, time.UTC)
	s.True(IsPermanent(p, s.now))
}

func (s *UnitTestSuite) TestArchivingForcedPerGranularity() {
	st := s.settings()
	st.Debug.AlwaysArchiveDataDay = true
	r := NewRules(st, nil)
	s.True(r.IsArchivingForced(s.params(1, types.PeriodDay, "2024-03-10").Period))
	s.False(r.IsArchivingForced(s.params(1, types.PeriodWeek, "2024-03-10").Period))
	s.False(r.IsArchivingForced(s.params(1, types.PeriodRange, "2024-03-01,2024-03-10").Period))

	st.Debug = types.DebugSettings{AlwaysArchiveDataPeriod: true, AlwaysArchiveDataRange: true}
	r = NewRules(st, nil)
	s.False(r.IsArchivingForced(s.params(1, types.PeriodDay, "2024-03-10").Period))
	s.True(r.IsArchivingForced(s.params(1, types.PeriodYear, "2024-03-10").Period))
	s.True(r.IsArchivingForced(s.params(1, types.PeriodRange, "2024-03-01,2024-03-10").Period))
}

func (s *UnitTestSuite) TestGroups() {
	st := s.settings()
	r := NewRules(st, nil)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	s.Equal(types.VisitsSummaryPlugin, r.Group(p))
	s.True(r.IncludesVisitsSummary(p))
	s.Equal("Goals", r.Group(p.WithPlugin("Goals")))
	s.False(r.IncludesVisitsSummary(p.WithPlugin("Goals")))

	st.BrowserArchiving = true
	r = NewRules(st, nil)
	s.Equal(types.AllPluginsGroup, r.Group(p.WithPlugin("Goals")))
	s.True(r.IncludesVisitsSummary(p.WithPlugin("Goals")))

	segmented := types.NewParams(p.Site, p.Period, "actions > `1`").WithPlugin("Goals")
	s.False(r.ProcessesAllPlugins(segmented))
	s.Equal("Goals", r.Group(segmented))
}
