package api

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"errors"
	"time"
)

func (s *APITestSuite) TestRunJob() {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	v := s.visit(1, at, false)
	s.NoError(s.svc.RunJob(s.ctx, Job{Kind: JobVisit, Visit: &v}))
	s.NoError(s.svc.RunJob(s.ctx, Job{Kind: JobPrepare, Prepare: &PrepareRequest{SiteID: 1, Period: "week", Date: "2024-03-10", Plugin: "Actions"}}))
	s.NoError(s.svc.RunJob(s.ctx, Job{Kind: JobInvalidate, Invalidate: &InvalidateRequest{SiteIDs: []int{1}, Dates: []string{"2024-03-10"}, Remember: true}}))

	err := s.svc.RunJob(s.ctx, Job{Kind: JobPrepare})
	s.ErrorIs(err, types.ErrInvalidParams)
	err = s.svc.RunJob(s.ctx, Job{Kind: "reboot"})
	s.ErrorIs(err, types.ErrInvalidParams)
}

func (s *APITestSuite) TestRunJobBusy() {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	v := s.visit(1, at, false)
	s.Require().NoError(s.svc.RunJob(s.ctx, Job{Kind: JobVisit, Visit: &v}))

	p, err := types.NewPeriod(types.PeriodDay, "2024-03-10")
	s.Require().NoError(err)
	params := types.NewParams(types.Site{ID: 1, Timezone: "UTC"}, p, "").WithPlugin("Goals")
	lock, held, err := s.svc.Loader.Status().Acquire(s.ctx, params, s.svc.Loader.Rules().Group(params))
	s.Require().NoError(err)
	s.Require().True(held)
	defer func() { _ = lock.Release(s.ctx) }()

	err = s.svc.RunJob(s.ctx, Job{Kind: JobPrepare, Prepare: &PrepareRequest{SiteID: 1, Period: "day", Date: "2024-03-10", Plugin: "Goals"}})
	s.ErrorIs(err, ErrBusy)
}

// refusingLedger fails every Remember.
type refusingLedger struct {
	ports.InvalidationLedger
}

func (refusingLedger) Remember(context.Context, time.Time, ...int) error {
	return errors.New("ledger unavailable")
}

// refusingCache fails every call.
type refusingCache struct{}

func (refusingCache) Fetch(context.Context, string) (string, bool, error) {
	return "", false, errors.New("cache unavailable")
}
func (refusingCache) Save(context.Context, string, string, time.Duration) error {
	return errors.New("cache unavailable")
}
func (refusingCache) Delete(context.Context, string) error { return errors.New("cache unavailable") }

func (s *APITestSuite) storedVisits(siteID int) []types.Visit {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	visits, err := s.stores.Visits.Visits(s.ctx, siteID, from, from.AddDate(1, 0, 0))
	s.Require().NoError(err)
	return visits
}

func (s *APITestSuite) TestRedeliveredVisitIsStoredOnce() {
	ledger := s.stores.Ledger
	s.stores.Ledger = refusingLedger{InvalidationLedger: ledger}

	v := s.visit(1, time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), false)
	job := Job{Kind: JobVisit, Visit: &v}
	for range 2 {
		err := s.svc.RunJob(s.ctx, job)
		s.ErrorIs(err, types.ErrStore)
	}
	s.Empty(s.storedVisits(1))

	s.stores.Ledger = ledger
	s.NoError(s.svc.RunJob(s.ctx, job))
	s.Len(s.storedVisits(1), 1)
	pending, err := ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-03-09": {1}}, pending)
}

func (s *APITestSuite) TestVisitNotStoredWhenCacheFails() {
	stores := *s.stores
	stores.Lazy = refusingCache{}
	svc := NewService(types.DefaultSettings(), &stores)

	v := s.visit(1, time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), false)
	err := svc.RunJob(s.ctx, Job{Kind: JobVisit, Visit: &v})
	s.ErrorIs(err, types.ErrStore)
	s.Empty(s.storedVisits(1))
}
