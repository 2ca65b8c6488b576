package api

import (
	"archivist/internal/archiving"
	"archivist/internal/backends"
	"archivist/internal/engine"
	"archivist/internal/types"
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

var timeNow = time.Now

func SetTimeNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}

// Service is the entry point shared by the HTTP server, the CLI and the queue consumer.
type Service struct {
	Loader *archiving.Loader
	Sites  *archiving.SiteDirectory
	Stores *backends.Stores
}

// NewService wires the loader and the reference engine on top of stores.
func NewService(settings types.Settings, stores *backends.Stores, opts ...engine.Option) *Service {
	sites := archiving.NewSiteDirectory(stores.Sites)
	loader := archiving.NewLoader(archiving.Deps{
		Settings: settings,
		Archives: stores.Archives,
		Activity: stores.Visits,
		Ledger:   stores.Ledger,
		Locker:   stores.Locker,
		Lazy:     stores.Lazy,
		Sites:    sites,
		Engine:   engine.New(stores.Visits, stores.Archives, opts...),
	})
	return &Service{Loader: loader, Sites: sites, Stores: stores}
}

type PrepareRequest struct {
	SiteID  int    `json:"site_id"`
	Period  string `json:"period"`
	Date    string `json:"date"`
	Segment string `json:"segment,omitempty"`
	Plugin  string `json:"plugin"`
}

type PrepareResponse struct {
	Outcome   string          `json:"outcome"`
	ArchiveID types.ArchiveID `json:"archive_id,omitempty"`
	Visits    int64           `json:"visits"`
}

// Prepare resolves the request's site and period and runs the loader.
func (s *Service) Prepare(ctx context.Context, req PrepareRequest) (PrepareResponse, error) {
	if req.Plugin == "" {
		return PrepareResponse{}, types.Err(types.ErrInvalidParams, nil, "plugin is required")
	}
	period, err := types.NewPeriod(types.PeriodLabel(req.Period), req.Date)
	if err != nil {
		return PrepareResponse{}, err
	}
	site, err := s.Sites.Site(ctx, req.SiteID)
	if err != nil {
		return PrepareResponse{}, err
	}
	res, err := s.Loader.PrepareArchive(ctx, types.NewParams(site, period, req.Segment), req.Plugin)
	if err != nil {
		return PrepareResponse{}, err
	}
	return PrepareResponse{Outcome: res.Outcome.String(), ArchiveID: res.ID, Visits: res.Visits}, nil
}

// Track records a visit. Visits landing on a day already over in the site's timezone are
// remembered for invalidation, and the cached earliest activity of the site is dropped.
// Those idempotent steps run before the record, so a failed Track stores nothing and can be
// retried.
func (s *Service) Track(ctx context.Context, v types.Visit) error {
	if v.FirstActionAt.IsZero() {
		return types.Err(types.ErrInvalidParams, nil, "first_action_at is required")
	}
	site, err := s.Sites.Site(ctx, v.SiteID)
	if err != nil {
		return err
	}
	if err := archiving.RememberVisit(ctx, s.Stores.Ledger, site, v.FirstActionAt, timeNow()); err != nil {
		return err
	}
	probe := s.Loader.Probe()
	if err := probe.Forget(ctx, site.ID); err != nil {
		return types.StoreErr(err, "forget earliest activity of site %d", site.ID)
	}
	if err := s.Stores.Visits.RecordVisit(ctx, v); err != nil {
		return types.StoreErr(err, "record visit for site %d", site.ID)
	}
	// a probe between the first forget and the record may have cached the old value again
	if err := probe.Forget(ctx, site.ID); err != nil {
		log.WithError(err).WithField("site", site.ID).Warn("failed to drop cached earliest activity after recording a visit")
	}
	return nil
}

type InvalidateRequest struct {
	SiteIDs []int    `json:"site_ids"`
	Dates   []string `json:"dates"`
	Cascade bool     `json:"cascade,omitempty"`
	Segment string   `json:"segment,omitempty"`
	// Remember defers the invalidation to the next archiving of each affected period.
	Remember bool `json:"remember,omitempty"`
}

func (s *Service) Invalidate(ctx context.Context, req InvalidateRequest) error {
	if len(req.SiteIDs) == 0 || len(req.Dates) == 0 {
		return types.Err(types.ErrInvalidParams, nil, "site_ids and dates are required")
	}
	for _, id := range req.SiteIDs {
		if id <= 0 {
			return types.Err(types.ErrInvalidParams, nil, "site id must be positive, got %d", id)
		}
	}
	dates := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		day, err := types.ParseDate(d)
		if err != nil {
			return types.Err(types.ErrInvalidParams, err, "date %q", d)
		}
		dates = append(dates, day)
	}

	if req.Remember {
		for _, day := range dates {
			if err := s.Stores.Ledger.Remember(ctx, day, req.SiteIDs...); err != nil {
				return types.StoreErr(err, "remember invalidation of %s", day.Format(types.DateLayout))
			}
		}
		return nil
	}
	defer s.Sites.ClearCache()
	if err := s.Stores.Archives.Invalidate(ctx, req.SiteIDs, dates, req.Cascade, req.Segment); err != nil {
		return types.StoreErr(err, "invalidate archives")
	}
	log.WithFields(log.Fields{"sites": req.SiteIDs, "dates": req.Dates, "cascade": req.Cascade}).Info("archives invalidated")
	return nil
}

type ArchiveResponse struct {
	types.Archive
	Reports engine.Reports `json:"reports"`
}

// Archive returns a stored archive with its decoded reports.
func (s *Service) Archive(ctx context.Context, id types.ArchiveID) (ArchiveResponse, error) {
	a, err := s.Stores.Archives.GetArchive(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return ArchiveResponse{}, err
		}
		return ArchiveResponse{}, types.StoreErr(err, "get archive %d", id)
	}
	reports, err := engine.DecodeReports(a.Blob)
	if err != nil {
		return ArchiveResponse{}, types.Err(types.ErrStore, err, "decode archive %d", id)
	}
	a.Blob = ""
	return ArchiveResponse{Archive: a, Reports: reports}, nil
}

// RegisterSite stores the site and drops the cached site metadata.
func (s *Service) RegisterSite(ctx context.Context, site types.Site) error {
	if site.ID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "site id must be positive, got %d", site.ID)
	}
	if site.Timezone != "" {
		if _, err := time.LoadLocation(site.Timezone); err != nil {
			return types.Err(types.ErrInvalidParams, err, "site %d timezone", site.ID)
		}
	}
	defer s.Sites.ClearCache()
	return types.StoreErr(s.Stores.Sites.PutSite(ctx, site), "put site %d", site.ID)
}
