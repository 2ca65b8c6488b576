package archiving

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"time"
)

// malformedLedger adds an unparseable date to the pending entries.
type malformedLedger struct {
	ports.InvalidationLedger
}

func (m *malformedLedger) Pending(ctx context.Context) (map[string][]int, error) {
	out, err := m.InvalidationLedger.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out["not-a-date"] = []int{7}
	return out, nil
}

func (s *UnitTestSuite) rememberPending() {
	s.Require().NoError(s.ledger.Remember(s.ctx, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 7, 9))
	s.Require().NoError(s.ledger.Remember(s.ctx, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 7))
}

func (s *UnitTestSuite) TestReportsToInvalidateNarrowsToRequest() {
	s.rememberPending()
	c := NewCoordinator(s.ledger, s.archives, s.sites)

	got, err := c.ReportsToInvalidate(s.ctx, s.params(7, types.PeriodDay, "2024-01-05"))
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {7, 9}}, got)

	got, err = c.ReportsToInvalidate(s.ctx, s.params(9, types.PeriodMonth, "2024-02-01"))
	s.NoError(err)
	s.Empty(got)

	got, err = c.ReportsToInvalidate(s.ctx, s.params(7, types.PeriodYear, "2024-06-01"))
	s.NoError(err)
	s.Len(got, 2)
}

func (s *UnitTestSuite) TestApplyPendingInvalidatesOnlyRequestedSite() {
	s.rememberPending()
	p7 := s.params(7, types.PeriodDay, "2024-01-05")
	p9 := s.params(9, types.PeriodDay, "2024-01-05")
	a7 := s.saveArchive(p7, types.VisitsSummaryPlugin, types.DoneComplete, s.now, 3)
	a9 := s.saveArchive(p9, types.VisitsSummaryPlugin, types.DoneComplete, s.now, 3)
	c := NewCoordinator(s.ledger, s.archives, s.sites)

	s.NoError(c.ApplyPending(s.ctx, p7))
	s.Equal([][]int{{7}}, s.archives.invalidations)
	s.Equal(1, s.sites.count())

	got, err := s.archives.GetArchive(s.ctx, a7)
	s.NoError(err)
	s.Equal(types.DoneInvalidated, got.Done)
	got, err = s.archives.GetArchive(s.ctx, a9)
	s.NoError(err)
	s.Equal(types.DoneComplete, got.Done)

	pending, err := s.ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {9}, "2024-02-01": {7}}, pending)
}

func (s *UnitTestSuite) TestApplyPendingForMonthLeavesOtherDatesPending() {
	s.rememberPending()
	january := s.params(7, types.PeriodMonth, "2024-01-01")
	c := NewCoordinator(s.ledger, s.archives, s.sites)

	got, err := c.ReportsToInvalidate(s.ctx, january)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {7, 9}}, got)

	s.NoError(c.ApplyPending(s.ctx, january))
	s.Equal([][]int{{7}}, s.archives.invalidations)
	s.Equal(1, s.sites.count())

	pending, err := s.ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {9}, "2024-02-01": {7}}, pending)
}

func (s *UnitTestSuite) TestApplyPendingWithoutMatchesTouchesNothing() {
	s.rememberPending()
	c := NewCoordinator(s.ledger, s.archives, s.sites)
	s.NoError(c.ApplyPending(s.ctx, s.params(9, types.PeriodMonth, "2024-02-01")))
	s.Empty(s.archives.invalidations)
	s.Equal(0, s.sites.count())
}

func (s *UnitTestSuite) TestApplyPendingFailureClearsSiteCache() {
	s.rememberPending()
	s.archives.invalidateErr = errBoom
	c := NewCoordinator(s.ledger, s.archives, s.sites)

	err := c.ApplyPending(s.ctx, s.params(7, types.PeriodDay, "2024-01-05"))
	s.ErrorIs(err, types.ErrStore)
	s.ErrorIs(err, errBoom)
	s.Equal(1, s.sites.count())

	pending, err := s.ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal([]int{7, 9}, pending["2024-01-05"])
}

func (s *UnitTestSuite) TestMalformedLedgerDateIsIgnored() {
	s.rememberPending()
	c := NewCoordinator(&malformedLedger{InvalidationLedger: s.ledger}, s.archives, s.sites)
	got, err := c.ReportsToInvalidate(s.ctx, s.params(7, types.PeriodDay, "2024-01-05"))
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {7, 9}}, got)
}

func (s *UnitTestSuite) TestRememberVisitUsesSiteDay() {
	site := types.Site{ID: 4, Timezone: "Asia/Tokyo"}

	// 2024-03-10T16:00Z is already 2024-03-11 in Tokyo, the same day as now
	s.NoError(RememberVisit(s.ctx, s.ledger, site, time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC), s.now))
	pending, err := s.ledger.Pending(s.ctx)
	s.NoError(err)
	s.Empty(pending)

	s.NoError(RememberVisit(s.ctx, s.ledger, site, time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC), s.now))
	pending, err = s.ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-03-10": {4}}, pending)
}
