package archiving

import (
	"archivist/internal/types"
	"context"
	"time"
)

func (s *UnitTestSuite) TestLockKey() {
	p := s.params(1, types.PeriodDay, "2024-03-10")
	s.Equal("archiving.1.day.2024-03-10.-.VisitsSummary", LockKey(p, types.VisitsSummaryPlugin))

	r := s.params(1, types.PeriodRange, "2024-03-01,2024-03-10")
	seg := types.NewParams(r.Site, r.Period, "actions > `1`")
	s.Equal("archiving.1.range.2024-03-01,2024-03-10."+seg.SegmentKey()+".Goals", LockKey(seg, "Goals"))
	s.NotEqual(LockKey(seg, "Goals"), LockKey(r, "Goals"))
}

func (s *UnitTestSuite) TestAcquireIsExclusive() {
	st := NewStatus(s.locker, time.Minute)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	lock, held, err := st.Acquire(s.ctx, p, "Goals")
	s.NoError(err)
	s.True(held)

	_, held, err = st.Acquire(s.ctx, p, "Goals")
	s.NoError(err)
	s.False(held)

	// other groups of the same tuple are independent
	other, held, err := st.Acquire(s.ctx, p, "Actions")
	s.NoError(err)
	s.True(held)
	s.NoError(other.Release(s.ctx))

	s.NoError(lock.Release(s.ctx))
	s.NoError(lock.Release(s.ctx), "a second release returns the first result")

	again, held, err := st.Acquire(s.ctx, p, "Goals")
	s.NoError(err)
	s.True(held)
	s.NoError(again.Release(s.ctx))
}

func (s *UnitTestSuite) TestReleaseAfterExpiryReportsLostLock() {
	clock := s.now
	s.locker.WithClock(func() time.Time { return clock })
	st := NewStatus(s.locker, time.Minute)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	lock, held, err := st.Acquire(s.ctx, p, "Goals")
	s.NoError(err)
	s.True(held)

	clock = clock.Add(2 * time.Minute)
	other, held, err := st.Acquire(s.ctx, p, "Goals")
	s.NoError(err)
	s.True(held, "an expired lock can be taken over")

	s.ErrorIs(lock.Release(s.ctx), types.ErrLockLost)
	s.NoError(other.Release(s.ctx))
}

func (s *UnitTestSuite) TestGuardReleasesOnError() {
	st := NewStatus(s.locker, time.Minute)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	held, err := st.Guard(s.ctx, p, "Goals", func(context.Context) error { return errBoom })
	s.True(held)
	s.ErrorIs(err, errBoom)

	ok, err := s.locker.TryAcquire(s.ctx, LockKey(p, "Goals"), "probe", time.Minute)
	s.NoError(err)
	s.True(ok)
}

func (s *UnitTestSuite) TestGuardReleasesOnPanic() {
	st := NewStatus(s.locker, time.Minute)
	p := s.params(1, types.PeriodDay, "2024-03-10")

	s.Panics(func() {
		_, _ = st.Guard(s.ctx, p, "Goals", func(context.Context) error { panic("aggregation crashed") })
	})

	ok, err := s.locker.TryAcquire(s.ctx, LockKey(p, "Goals"), "probe", time.Minute)
	s.NoError(err)
	s.True(ok)
}

func (s *UnitTestSuite) TestGuardSkipsWhenHeldElsewhere() {
	st := NewStatus(s.locker, time.Minute)
	p := s.params(1, types.PeriodDay, "2024-03-10")
	ok, err := s.locker.TryAcquire(s.ctx, LockKey(p, "Goals"), "other-worker", time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	ran := false
	held, err := st.Guard(s.ctx, p, "Goals", func(context.Context) error {
		ran = true
		return nil
	})
	s.NoError(err)
	s.False(held)
	s.False(ran)
}
