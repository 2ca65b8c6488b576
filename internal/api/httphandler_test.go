package api

import (
	"archivist/internal/types"
	"fmt"
	"io"
	"net/http"
	"time"
)

func (s *APITestSuite) TestHealthAndMetrics() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", nil).StatusCode)

	resp := s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	s.NoError(err)
	s.Contains(string(b), "go_goroutines")
}

func (s *APITestSuite) TestPrepareComputesThenReuses() {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s.Equal(http.StatusAccepted, s.do(http.MethodPost, "/visits", s.visit(1, at, true)).StatusCode)
	s.Equal(http.StatusAccepted, s.do(http.MethodPost, "/visits", s.visit(1, at.Add(time.Hour), false)).StatusCode)

	req := PrepareRequest{SiteID: 1, Period: "day", Date: "2024-03-10", Plugin: types.VisitsSummaryPlugin}
	resp := s.do(http.MethodPost, "/archives/prepare", req)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var first PrepareResponse
	s.decode(resp, &first)
	s.Equal("computed", first.Outcome)
	s.Equal(int64(2), first.Visits)
	s.NotZero(first.ArchiveID)

	resp = s.do(http.MethodPost, "/archives/prepare", req)
	var second PrepareResponse
	s.decode(resp, &second)
	s.Equal("existing", second.Outcome)
	s.Equal(first.ArchiveID, second.ArchiveID)

	resp = s.do(http.MethodGet, fmt.Sprintf("/archives/%d", first.ArchiveID), nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var archive ArchiveResponse
	s.decode(resp, &archive)
	s.Equal(1, archive.SiteID)
	s.Equal(types.VisitsSummaryPlugin, archive.Group)
	s.Empty(archive.Blob)
	s.Equal(float64(2), archive.Reports[types.VisitsSummaryPlugin]["nb_visits"])
	s.Equal(float64(1), archive.Reports[types.VisitsSummaryPlugin]["nb_visits_converted"])
}

func (s *APITestSuite) TestPrepareSkipsSiteWithoutActivity() {
	resp := s.do(http.MethodPost, "/archives/prepare", PrepareRequest{SiteID: 2, Period: "month", Date: "2024-02-01", Plugin: "Goals"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var res PrepareResponse
	s.decode(resp, &res)
	s.Equal("skipped", res.Outcome)
	s.Zero(res.ArchiveID)
}

func (s *APITestSuite) TestPrepareErrors() {
	resp := s.do(http.MethodPost, "/archives/prepare", PrepareRequest{SiteID: 99, Period: "day", Date: "2024-03-10", Plugin: "Goals"})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodPost, "/archives/prepare", PrepareRequest{SiteID: 1, Period: "fortnight", Date: "2024-03-10", Plugin: "Goals"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodPost, "/archives/prepare", PrepareRequest{SiteID: 1, Period: "day", Date: "2024-03-10"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodPost, "/archives/prepare", nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp = s.do(http.MethodGet, "/archives/123", nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.do(http.MethodGet, "/archives/abc", nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APITestSuite) TestTrackRemembersPastDays() {
	s.Equal(http.StatusAccepted, s.do(http.MethodPost, "/visits", s.visit(1, time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC), false)).StatusCode)
	s.Equal(http.StatusAccepted, s.do(http.MethodPost, "/visits", s.visit(1, time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC), false)).StatusCode)

	pending, err := s.stores.Ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-03-09": {1}}, pending)

	s.Equal(http.StatusNotFound, s.do(http.MethodPost, "/visits", s.visit(42, s.now, false)).StatusCode)
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/visits", types.Visit{SiteID: 1}).StatusCode)
}

func (s *APITestSuite) TestInvalidateForcesRecompute() {
	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	s.Require().Equal(http.StatusAccepted, s.do(http.MethodPost, "/visits", s.visit(1, at, false)).StatusCode)
	req := PrepareRequest{SiteID: 1, Period: "day", Date: "2024-03-10", Plugin: "Goals"}
	var first PrepareResponse
	s.decode(s.do(http.MethodPost, "/archives/prepare", req), &first)
	s.Require().Equal("computed", first.Outcome)

	resp := s.do(http.MethodPost, "/invalidations", InvalidateRequest{SiteIDs: []int{1}, Dates: []string{"2024-03-10"}})
	s.Equal(http.StatusNoContent, resp.StatusCode)

	var second PrepareResponse
	s.decode(s.do(http.MethodPost, "/archives/prepare", req), &second)
	s.Equal("computed", second.Outcome)
	s.NotEqual(first.ArchiveID, second.ArchiveID)
}

func (s *APITestSuite) TestInvalidateRemember() {
	resp := s.do(http.MethodPost, "/invalidations", InvalidateRequest{SiteIDs: []int{1, 2}, Dates: []string{"2024-01-05"}, Remember: true})
	s.Equal(http.StatusNoContent, resp.StatusCode)

	pending, err := s.stores.Ledger.Pending(s.ctx)
	s.NoError(err)
	s.Equal(map[string][]int{"2024-01-05": {1, 2}}, pending)

	resp = s.do(http.MethodPost, "/invalidations", InvalidateRequest{SiteIDs: []int{1}, Dates: []string{"05/01/2024"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp = s.do(http.MethodPost, "/invalidations", InvalidateRequest{Dates: []string{"2024-01-05"}})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APITestSuite) TestPutSite() {
	resp := s.do(http.MethodPut, "/sites/7", types.Site{Name: "shop", Timezone: "Asia/Tokyo"})
	s.Equal(http.StatusNoContent, resp.StatusCode)

	site, err := s.svc.Sites.Site(s.ctx, 7)
	s.NoError(err)
	s.Equal(types.Site{ID: 7, Name: "shop", Timezone: "Asia/Tokyo"}, site)

	resp = s.do(http.MethodPut, "/sites/8", types.Site{Timezone: "Mars/Olympus"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
