// Package storetest holds the behaviour every backend must share. Backend packages run
// StoreSuite with their own factories; a nil factory skips the matching tests.
package storetest

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"time"

	"github.com/stretchr/testify/suite"
)

type StoreSuite struct {
	suite.Suite

	Archives func() ports.ArchiveStore
	Visits   func() ports.VisitLog
	Ledger   func() ports.InvalidationLedger
	Locker   func() ports.Locker
	Cache    func() ports.LazyCache
	Sites    func() ports.SiteStore

	// Advance moves the clock the backend expires entries with. Expiry tests are skipped
	// without it.
	Advance func(d time.Duration)

	ctx context.Context
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
}

var (
	t0 = time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC)

	day10, _   = types.NewPeriod(types.PeriodDay, "2024-03-10")
	day11, _   = types.NewPeriod(types.PeriodDay, "2024-03-11")
	week10, _  = types.NewPeriod(types.PeriodWeek, "2024-03-10")
	month03, _ = types.NewPeriod(types.PeriodMonth, "2024-03-01")
	month04, _ = types.NewPeriod(types.PeriodMonth, "2024-04-01")
)

func (s *StoreSuite) archives() ports.ArchiveStore {
	if s.Archives == nil {
		s.T().Skip("no archive store")
	}
	return s.Archives()
}

func (s *StoreSuite) save(store ports.ArchiveStore, a types.Archive) types.ArchiveID {
	id, err := store.SaveArchive(s.ctx, a)
	s.Require().NoError(err)
	s.Require().NotZero(id)
	return id
}

func (s *StoreSuite) TestFindArchive() {
	store := s.archives()
	q := types.ArchiveQuery{SiteID: 1, Period: day10, Group: "Goals"}

	got, err := store.FindArchive(s.ctx, q, t0)
	s.NoError(err)
	s.Equal(types.Lookup{}, got)

	s.save(store, types.Archive{SiteID: 1, Period: day10, Group: types.VisitsSummaryPlugin, Done: types.DoneComplete, ArchivedAt: t0, Visits: 5, VisitsConverted: 2})
	got, err = store.FindArchive(s.ctx, q, t0)
	s.NoError(err)
	s.False(got.Usable())
	s.False(got.AnyExists)
	s.True(got.VisitsKnown)
	s.Equal(int64(5), got.Visits)
	s.Equal(int64(2), got.VisitsConverted)

	s.save(store, types.Archive{SiteID: 1, Period: day10, Group: "Goals", Done: types.DoneComplete, ArchivedAt: t0.Add(-time.Hour), Visits: 4})
	got, err = store.FindArchive(s.ctx, q, t0)
	s.NoError(err)
	s.False(got.Usable(), "archived before the minimum")
	s.True(got.AnyExists)

	older := s.save(store, types.Archive{SiteID: 1, Period: day10, Group: "Goals", Done: types.DoneComplete, ArchivedAt: t0, Visits: 5})
	newer := s.save(store, types.Archive{SiteID: 1, Period: day10, Group: "Goals", Done: types.DoneComplete, ArchivedAt: t0.Add(time.Minute), Visits: 6})
	s.save(store, types.Archive{SiteID: 1, Period: day10, Group: "Goals", Done: types.DoneInvalidated, ArchivedAt: t0.Add(time.Hour), Visits: 7})
	got, err = store.FindArchive(s.ctx, q, t0)
	s.NoError(err)
	s.Equal(newer, got.ID)
	s.NotEqual(older, got.ID)
	s.Equal(int64(6), got.Visits)

	// segment and site are part of the identity
	got, err = store.FindArchive(s.ctx, types.ArchiveQuery{SiteID: 1, Period: day10, Segment: "actions > `1`", Group: "Goals"}, t0)
	s.NoError(err)
	s.Equal(types.Lookup{}, got)
	got, err = store.FindArchive(s.ctx, types.ArchiveQuery{SiteID: 2, Period: day10, Group: "Goals"}, t0)
	s.NoError(err)
	s.Equal(types.Lookup{}, got)
}

func (s *StoreSuite) TestGetArchive() {
	store := s.archives()
	id := s.save(store, types.Archive{SiteID: 3, Period: week10, Segment: "x", Group: "Actions", Done: types.DoneComplete, ArchivedAt: t0, Visits: 9, Blob: "blob"})

	a, err := store.GetArchive(s.ctx, id)
	s.NoError(err)
	s.Equal(id, a.ID)
	s.Equal(3, a.SiteID)
	s.True(a.Period.Equal(week10))
	s.Equal("x", a.Segment)
	s.Equal("Actions", a.Group)
	s.Equal(types.DoneComplete, a.Done)
	s.True(a.ArchivedAt.Equal(t0))
	s.Equal(int64(9), a.Visits)
	s.Equal("blob", a.Blob)

	_, err = store.GetArchive(s.ctx, id+1000)
	s.ErrorIs(err, types.ErrNotFound)
}

func (s *StoreSuite) TestHasFinerArchives() {
	store := s.archives()
	has, err := store.HasFinerArchives(s.ctx, 1, month03)
	s.NoError(err)
	s.False(has)

	s.save(store, types.Archive{SiteID: 1, Period: month03, Group: types.VisitsSummaryPlugin, Done: types.DoneComplete, ArchivedAt: t0})
	has, err = store.HasFinerArchives(s.ctx, 1, month03)
	s.NoError(err)
	s.False(has, "the same granularity is not finer")

	s.save(store, types.Archive{SiteID: 1, Period: day10, Group: types.VisitsSummaryPlugin, Done: types.DoneComplete, ArchivedAt: t0})
	has, err = store.HasFinerArchives(s.ctx, 1, month03)
	s.NoError(err)
	s.True(has)
	has, err = store.HasFinerArchives(s.ctx, 1, month04)
	s.NoError(err)
	s.False(has)
	has, err = store.HasFinerArchives(s.ctx, 2, month03)
	s.NoError(err)
	s.False(has)
}

func (s *StoreSuite) TestInvalidate() {
	store := s.archives()
	d10 := s.save(store, types.Archive{SiteID: 1, Period: day10, Group: "g", Done: types.DoneComplete, ArchivedAt: t0})
	d11 := s.save(store, types.Archive{SiteID: 1, Period: day11, Group: "g", Done: types.DoneComplete, ArchivedAt: t0})
	w := s.save(store, types.Archive{SiteID: 1, Period: week10, Group: "g", Done: types.DoneComplete, ArchivedAt: t0})
	m := s.save(store, types.Archive{SiteID: 1, Period: month03, Group: "g", Done: types.DoneComplete, ArchivedAt: t0})
	seg := s.save(store, types.Archive{SiteID: 1, Period: day10, Segment: "x", Group: "g", Done: types.DoneComplete, ArchivedAt: t0})
	other := s.save(store, types.Archive{SiteID: 2, Period: day10, Group: "g", Done: types.DoneComplete, ArchivedAt: t0})

	s.NoError(store.Invalidate(s.ctx, []int{1}, []time.Time{day10.Start}, false, ""))
	s.done(store, map[types.ArchiveID]types.DoneState{
		d10: types.DoneInvalidated, w: types.DoneInvalidated, m: types.DoneInvalidated,
		d11: types.DoneComplete, seg: types.DoneComplete, other: types.DoneComplete,
	})

	// 2024-03-10 is a Sunday; its week holds 2024-03-04..2024-03-10, so the 11th is outside it
	// but inside the month
	s.NoError(store.Invalidate(s.ctx, []int{1}, []time.Time{day10.Start}, true, ""))
	s.done(store, map[types.ArchiveID]types.DoneState{d11: types.DoneInvalidated, seg: types.DoneComplete, other: types.DoneComplete})

	s.NoError(store.Invalidate(s.ctx, []int{1, 2}, []time.Time{day10.Start}, false, "x"))
	s.done(store, map[types.ArchiveID]types.DoneState{seg: types.DoneInvalidated, other: types.DoneComplete})
}

func (s *StoreSuite) done(store ports.ArchiveStore, want map[types.ArchiveID]types.DoneState) {
	for id, state := range want {
		a, err := store.GetArchive(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(state, a.Done, "archive %d (%s)", id, a.Period)
	}
}

func (s *StoreSuite) TestVisitLog() {
	if s.Visits == nil {
		s.T().Skip("no visit log")
	}
	log := s.Visits()

	_, ok, err := log.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.False(ok)

	at := []time.Time{
		time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC),
		time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
	}
	for i, t := range at {
		s.NoError(log.RecordVisit(s.ctx, types.Visit{SiteID: 1, VisitorID: "v", FirstActionAt: t, Actions: i + 1, Attributes: map[string]any{"country": "fr"}}))
	}
	// identical visits are kept apart
	s.NoError(log.RecordVisit(s.ctx, types.Visit{SiteID: 1, VisitorID: "v", FirstActionAt: at[1], Actions: 2, Attributes: map[string]any{"country": "fr"}}))
	s.Error(log.RecordVisit(s.ctx, types.Visit{SiteID: 0, FirstActionAt: at[0]}))

	first, ok, err := log.MinActivityTime(s.ctx, 1)
	s.NoError(err)
	s.True(ok)
	s.True(first.Equal(at[1]))

	from := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	has, err := log.HasActivityBetween(s.ctx, 1, from, to)
	s.NoError(err)
	s.True(has)
	has, err = log.HasActivityBetween(s.ctx, 1, to.Add(time.Second), to.Add(time.Hour))
	s.NoError(err)
	s.False(has)
	has, err = log.HasActivityBetween(s.ctx, 2, from, to)
	s.NoError(err)
	s.False(has)

	visits, err := log.Visits(s.ctx, 1, from, to)
	s.NoError(err)
	s.Len(visits, 3, "the end bound is exclusive")
	for _, v := range visits {
		s.Equal("fr", v.Attributes["country"])
		s.Equal(1, v.SiteID)
	}
}

func (s *StoreSuite) TestLedger() {
	if s.Ledger == nil {
		s.T().Skip("no ledger")
	}
	ledger := s.Ledger()
	jan5 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	feb1 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	pending, err := ledger.Pending(s.ctx)
	s.NoError(err)
	s.Empty(pending)

	s.NoError(ledger.Remember(s.ctx, jan5, 9, 7))
	s.NoError(ledger.Remember(s.ctx, jan5, 7))
	s.NoError(ledger.Remember(s.ctx, feb1, 7))
	pending, err = ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {7, 9}, "2024-02-01": {7}}, pending)

	s.NoError(ledger.Forget(s.ctx, jan5, 7))
	s.NoError(ledger.Forget(s.ctx, feb1, 7))
	s.NoError(ledger.Forget(s.ctx, feb1, 3))
	pending, err = ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {9}}, pending)
}

func (s *StoreSuite) TestLocker() {
	if s.Locker == nil {
		s.T().Skip("no locker")
	}
	l := s.Locker()

	ok, err := l.TryAcquire(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "a", time.Minute)
	s.NoError(err)
	s.True(ok)
	ok, err = l.TryAcquire(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "b", time.Minute)
	s.NoError(err)
	s.False(ok)
	ok, err = l.TryAcquire(s.ctx, "archiving.2.day.2024-03-10.-.Goals", "b", time.Minute)
	s.NoError(err)
	s.True(ok)

	released, err := l.Release(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "b")
	s.NoError(err)
	s.False(released, "only the owner releases")
	released, err = l.Release(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "a")
	s.NoError(err)
	s.True(released)
	released, err = l.Release(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "a")
	s.NoError(err)
	s.False(released)

	ok, err = l.TryAcquire(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "b", time.Minute)
	s.NoError(err)
	s.True(ok)

	if s.Advance == nil {
		return
	}
	s.Advance(2 * time.Minute)
	ok, err = l.TryAcquire(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "c", time.Minute)
	s.NoError(err)
	s.True(ok, "an expired holder no longer blocks")
	released, err = l.Release(s.ctx, "archiving.1.day.2024-03-10.-.Goals", "b")
	s.NoError(err)
	s.False(released)
}

func (s *StoreSuite) TestLazyCache() {
	if s.Cache == nil {
		s.T().Skip("no lazy cache")
	}
	c := s.Cache()

	_, ok, err := c.Fetch(s.ctx, "Archiving.minVisitTime.1")
	s.NoError(err)
	s.False(ok)

	s.NoError(c.Save(s.ctx, "Archiving.minVisitTime.1", "1710061200", time.Hour))
	s.NoError(c.Save(s.ctx, "Archiving.minVisitTime.2", "", 0))
	v, ok, err := c.Fetch(s.ctx, "Archiving.minVisitTime.1")
	s.NoError(err)
	s.True(ok)
	s.Equal("1710061200", v)
	v, ok, err = c.Fetch(s.ctx, "Archiving.minVisitTime.2")
	s.NoError(err)
	s.True(ok, "an empty value is still a hit")
	s.Equal("", v)

	s.NoError(c.Delete(s.ctx, "Archiving.minVisitTime.2"))
	_, ok, err = c.Fetch(s.ctx, "Archiving.minVisitTime.2")
	s.NoError(err)
	s.False(ok)

	if s.Advance == nil {
		return
	}
	s.Advance(time.Hour)
	_, ok, err = c.Fetch(s.ctx, "Archiving.minVisitTime.1")
	s.NoError(err)
	s.False(ok)
}

func (s *StoreSuite) TestSites() {
	if s.Sites == nil {
		s.T().Skip("no site store")
	}
	store := s.Sites()

	_, err := store.GetSite(s.ctx, 1)
	s.ErrorIs(err, types.ErrNotFound)

	s.NoError(store.PutSite(s.ctx, types.Site{ID: 1, Name: "shop", Timezone: "Europe/Paris"}))
	s.NoError(store.PutSite(s.ctx, types.Site{ID: 1, Name: "shop.example", Timezone: "Europe/Paris"}))
	site, err := store.GetSite(s.ctx, 1)
	s.NoError(err)
	s.Equal(types.Site{ID: 1, Name: "shop.example", Timezone: "Europe/Paris"}, site)

	s.Error(store.PutSite(s.ctx, types.Site{ID: 0}))
}
