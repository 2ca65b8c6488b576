package archiving

import (
	"archivist/internal/types"
	"context"
	"sync"
	"time"
)

func (s *UnitTestSuite) withVisits() {
	s.engine.core = types.CoreMetrics{Visits: 3, VisitsConverted: 1}
	s.recordVisit(1, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
}

func (s *UnitTestSuite) TestEndToEndComputesThenReuses() {
	s.withVisits()
	l := s.newLoader(s.settings())
	p := s.params(1, types.PeriodDay, "2024-03-10")

	res, err := l.PrepareArchive(s.ctx, p, "")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)
	s.True(res.Usable())
	s.Equal(int64(3), res.Visits)
	s.Equal([]string{types.VisitsSummaryPlugin}, s.engine.openedGroups())

	again, err := l.PrepareArchive(s.ctx, p, "")
	s.NoError(err)
	s.Equal(types.OutcomeExisting, again.Outcome)
	s.Equal(res.ID, again.ID)
	s.Equal(int64(3), again.Visits)
	s.Len(s.engine.openedGroups(), 1)
}

func (s *UnitTestSuite) TestZeroActivitySiteIsSkipped() {
	l := s.newLoader(s.settings())
	res, err := l.PrepareArchive(s.ctx, s.params(2, types.PeriodDay, "2024-03-10"), "")
	s.NoError(err)
	s.Equal(types.OutcomeSkipped, res.Outcome)
	s.False(res.Usable())
	s.Empty(s.engine.openedGroups())
	s.Empty(s.archives.All(), "skipping must not write an archive")
}

func (s *UnitTestSuite) TestSkipNeedsTrackerNoActivityAndNoFinerArchives() {
	month := s.params(2, types.PeriodMonth, "2024-03-01")
	l := s.newLoader(s.settings())
	skip, err := l.CanSkip(s.ctx, month)
	s.NoError(err)
	s.True(skip)

	s.saveArchive(s.params(2, types.PeriodDay, "2024-03-05"), types.VisitsSummaryPlugin, types.DoneComplete, s.now, 0)
	skip, err = l.CanSkip(s.ctx, month)
	s.NoError(err)
	s.False(skip, "a finer archive inside the period means data may exist")

	st := s.settings()
	st.SitesWithoutTracker = []int{3}
	l = s.newLoader(st)
	skip, err = l.CanSkip(s.ctx, s.params(3, types.PeriodDay, "2024-03-10"))
	s.NoError(err)
	s.False(skip, "sites importing data are never proven empty")

	s.recordVisit(4, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	skip, err = l.CanSkip(s.ctx, s.params(4, types.PeriodDay, "2024-03-10"))
	s.NoError(err)
	s.False(skip)
}

func (s *UnitTestSuite) TestNoDataWhenComputationFindsNoVisits() {
	st := s.settings()
	st.SitesWithoutTracker = []int{2}
	l := s.newLoader(st)

	res, err := l.PrepareArchive(s.ctx, s.params(2, types.PeriodDay, "2024-03-10"), "")
	s.NoError(err)
	s.Equal(types.OutcomeNoData, res.Outcome)
	s.False(res.Usable())
	s.Equal([]bool{false}, s.engine.forced)
}

func (s *UnitTestSuite) TestSitesArchivedWithoutVisits() {
	st := s.settings()
	st.SitesWithoutTracker = []int{2}
	st.SitesArchiveWithoutVisits = []int{2}
	s.engine.withoutVisits = true
	l := s.newLoader(st)

	res, err := l.PrepareArchive(s.ctx, s.params(2, types.PeriodDay, "2024-03-10"), "")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)
	s.True(res.Usable())
	s.Equal(int64(0), res.Visits)
	s.Equal([]bool{true}, s.engine.forced)
}

func (s *UnitTestSuite) TestForcedArchivingBypassesLookup() {
	s.withVisits()
	p := s.params(1, types.PeriodDay, "2024-03-10")
	existing := s.saveArchive(p, types.VisitsSummaryPlugin, types.DoneComplete, s.now, 3)

	st := s.settings()
	st.Debug.AlwaysArchiveDataDay = true
	l := s.newLoader(st)

	lookup, err := l.LoadExisting(s.ctx, p)
	s.NoError(err)
	s.Equal(types.Lookup{}, lookup)

	res, err := l.PrepareArchive(s.ctx, p, "")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)
	s.NotEqual(existing, res.ID)
	s.Equal(0, s.archives.findCount())
}

func (s *UnitTestSuite) TestInProgressArchiveFreshness() {
	s.engine.core = types.CoreMetrics{Visits: 1}
	s.recordVisit(1, time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC))
	today := s.params(1, types.PeriodDay, "2024-03-11")
	stale := s.saveArchive(today, types.VisitsSummaryPlugin, types.DoneComplete, s.now.Add(-2*time.Hour), 1)
	l := s.newLoader(s.settings())

	res, err := l.PrepareArchive(s.ctx, today, "")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)
	s.NotEqual(stale, res.ID)

	// the fresh archive is served until the in-progress ttl elapses
	s.now = s.now.Add(10 * time.Minute)
	again, err := l.PrepareArchive(s.ctx, today, "")
	s.NoError(err)
	s.Equal(types.OutcomeExisting, again.Outcome)
	s.Equal(res.ID, again.ID)

	s.now = s.now.Add(6 * time.Minute)
	third, err := l.PrepareArchive(s.ctx, today, "")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, third.Outcome)
}

func (s *UnitTestSuite) TestPluginRequestComputesCoreArchiveFirst() {
	s.withVisits()
	l := s.newLoader(s.settings())
	p := s.params(1, types.PeriodDay, "2024-03-10")

	res, err := l.PrepareArchive(s.ctx, p, "Goals")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)
	s.Equal(int64(3), res.Visits)
	s.Equal([]string{types.VisitsSummaryPlugin, "Goals"}, s.engine.openedGroups())
	s.Equal(1, s.engine.coreCalls)

	// the core archive now provides the visits, so no core aggregation runs again
	res, err = l.PrepareArchive(s.ctx, p, "Actions")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)
	s.Equal(int64(3), res.Visits)
	s.Equal([]string{types.VisitsSummaryPlugin, "Goals", "Actions"}, s.engine.openedGroups())
	s.Equal(1, s.engine.coreCalls)
}

func (s *UnitTestSuite) TestBrowserArchivingUsesSharedGroup() {
	s.withVisits()
	st := s.settings()
	st.BrowserArchiving = true
	l := s.newLoader(st)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	res, err := l.PrepareArchive(s.ctx, p, "Goals")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)

	res, err = l.PrepareArchive(s.ctx, p, "Actions")
	s.NoError(err)
	s.Equal(types.OutcomeExisting, res.Outcome)
	s.Equal([]string{types.AllPluginsGroup}, s.engine.openedGroups())
}

func (s *UnitTestSuite) TestInvalidateBeforeArchiving() {
	s.rememberPending()
	s.engine.core = types.CoreMetrics{Visits: 2}
	s.recordVisit(7, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
	p := s.params(7, types.PeriodDay, "2024-01-05")
	s.saveArchive(p, types.VisitsSummaryPlugin, types.DoneInvalidated, s.now, 1)

	st := s.settings()
	st.InvalidateBeforeArchiving = true
	l := s.newLoader(st)
	res, err := l.PrepareArchive(s.ctx, p, "")
	s.NoError(err)
	s.Equal(types.OutcomeComputed, res.Outcome)
	s.Equal(int64(2), res.Visits)

	pending, err := s.ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {9}, "2024-02-01": {7}}, pending)
	s.Equal(1, s.sites.count())
}

func (s *UnitTestSuite) TestInvalidationNeedsAnExistingArchive() {
	s.rememberPending()
	s.engine.core = types.CoreMetrics{Visits: 2}
	s.recordVisit(7, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))

	st := s.settings()
	st.InvalidateBeforeArchiving = true
	l := s.newLoader(st)
	_, err := l.PrepareArchive(s.ctx, s.params(7, types.PeriodDay, "2024-01-05"), "")
	s.NoError(err)
	s.Empty(s.archives.invalidations)
}

func (s *UnitTestSuite) TestInvalidationFailureAbortsArchiving() {
	s.rememberPending()
	s.recordVisit(7, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
	p := s.params(7, types.PeriodDay, "2024-01-05")
	s.saveArchive(p, types.VisitsSummaryPlugin, types.DoneInvalidated, s.now, 1)
	s.archives.invalidateErr = errBoom

	st := s.settings()
	st.InvalidateBeforeArchiving = true
	l := s.newLoader(st)
	_, err := l.PrepareArchive(s.ctx, p, "")
	s.ErrorIs(err, types.ErrStore)
	s.Equal(1, s.sites.count())
	s.Empty(s.engine.openedGroups())
}

func (s *UnitTestSuite) TestConcurrentRequestsComputeOnce() {
	s.withVisits()
	s.engine.started = make(chan struct{})
	s.engine.proceed = make(chan struct{})
	l := s.newLoader(s.settings())
	p := s.params(1, types.PeriodDay, "2024-03-10")

	var wg sync.WaitGroup
	var first types.Result
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = l.PrepareArchive(s.ctx, p, "")
	}()
	<-s.engine.started

	var mu sync.Mutex
	outcomes := map[types.Outcome]int{}
	var others sync.WaitGroup
	for range 5 {
		others.Add(1)
		go func() {
			defer others.Done()
			res, err := l.PrepareArchive(s.ctx, p, "")
			s.NoError(err)
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}()
	}
	others.Wait()
	s.Equal(map[types.Outcome]int{types.OutcomeBusy: 5}, outcomes)

	close(s.engine.proceed)
	wg.Wait()
	s.NoError(firstErr)
	s.Equal(types.OutcomeComputed, first.Outcome)
	s.Len(s.engine.openedGroups(), 1)
}

func (s *UnitTestSuite) TestWaitPolicyReusesArchiveOfOtherWorker() {
	s.withVisits()
	s.engine.started = make(chan struct{})
	s.engine.proceed = make(chan struct{})
	st := s.settings()
	st.Lock.Policy = types.LockPolicyWait
	l := s.newLoader(st)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	var wg sync.WaitGroup
	var first, second types.Result
	var firstErr, secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = l.PrepareArchive(s.ctx, p, "")
	}()
	<-s.engine.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = l.PrepareArchive(s.ctx, p, "")
	}()
	time.Sleep(50 * time.Millisecond)
	close(s.engine.proceed)
	wg.Wait()

	s.NoError(firstErr)
	s.NoError(secondErr)
	s.Equal(types.OutcomeComputed, first.Outcome)
	s.Equal(types.OutcomeExisting, second.Outcome)
	s.Equal(first.ID, second.ID)
	s.Len(s.engine.openedGroups(), 1)
}

func (s *UnitTestSuite) TestWaitPolicyGivesUp() {
	s.withVisits()
	st := s.settings()
	st.Lock.Policy = types.LockPolicyWait
	l := s.newLoader(st)
	p := s.params(1, types.PeriodDay, "2024-03-10")
	ok, err := s.locker.TryAcquire(s.ctx, LockKey(p, types.VisitsSummaryPlugin), "stuck-worker", time.Hour)
	s.Require().NoError(err)
	s.Require().True(ok)

	res, err := l.PrepareArchive(s.ctx, p, "")
	s.NoError(err)
	s.Equal(types.OutcomeBusy, res.Outcome)
	s.Empty(s.engine.openedGroups())

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = l.PrepareArchive(ctx, p, "")
	s.ErrorIs(err, context.Canceled)
}

func (s *UnitTestSuite) TestEngineErrorReleasesLock() {
	s.withVisits()
	s.engine.aggErr = errBoom
	l := s.newLoader(s.settings())
	p := s.params(1, types.PeriodDay, "2024-03-10")

	_, err := l.PrepareArchive(s.ctx, p, "")
	s.ErrorIs(err, errBoom)

	ok, err := s.locker.TryAcquire(s.ctx, LockKey(p, types.VisitsSummaryPlugin), "probe", time.Minute)
	s.NoError(err)
	s.True(ok)
}

func (s *UnitTestSuite) TestInvalidParamsAreRejected() {
	l := s.newLoader(s.settings())
	_, err := l.PrepareArchive(s.ctx, s.params(0, types.PeriodDay, "2024-03-10"), "")
	s.ErrorIs(err, types.ErrInvalidParams)
	s.Empty(s.engine.openedGroups())
}
