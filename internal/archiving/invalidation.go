package archiving

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"slices"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// SiteCache is the site metadata cache that must not outlive an invalidation.
type SiteCache interface {
	ClearCache()
}

// Coordinator applies remembered invalidations that concern the current request.
type Coordinator struct {
	ledger ports.InvalidationLedger
	store  ports.ArchiveStore
	sites  SiteCache
}

func NewCoordinator(ledger ports.InvalidationLedger, store ports.ArchiveStore, sites SiteCache) *Coordinator {
	return &Coordinator{ledger: ledger, store: store, sites: sites}
}

// ReportsToInvalidate returns the remembered invalidations narrowed to the request: only
// dates whose site set contains the request's site and which fall inside the period. All
// other entries stay in the ledger for their own requests.
func (c *Coordinator) ReportsToInvalidate(ctx context.Context, params types.Params) (map[string][]int, error) {
	pending, err := c.ledger.Pending(ctx)
	if err != nil {
		return nil, types.StoreErr(err, "read remembered invalidations")
	}
	out := make(map[string][]int)
	for date, siteIDs := range pending {
		if len(siteIDs) == 0 || !slices.Contains(siteIDs, params.Site.ID) {
			continue
		}
		day, err := types.ParseDate(date)
		if err != nil {
			log.WithError(err).Warnf("ignoring remembered invalidation with malformed date %q", date)
			continue
		}
		if !params.Period.Contains(day) {
			continue
		}
		out[date] = siteIDs
	}
	return out, nil
}

// ApplyPending invalidates the request's site for every matching remembered date and
// forgets those entries. The site cache is cleared once after all dates, or before a failure
// is returned.
func (c *Coordinator) ApplyPending(ctx context.Context, params types.Params) error {
	sitesPerDay, err := c.ReportsToInvalidate(ctx, params)
	if err != nil {
		return err
	}
	if len(sitesPerDay) == 0 {
		return nil
	}
	dates := make([]string, 0, len(sitesPerDay))
	for date := range sitesPerDay {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	siteIDs := []int{params.Site.ID}
	for _, date := range dates {
		day, _ := types.ParseDate(date)
		if err := c.invalidate(ctx, siteIDs, day, params.Segment); err != nil {
			c.sites.ClearCache()
			return err
		}
		invalidationsAppliedTotal.Inc()
		log.WithFields(log.Fields{"site": params.Site.ID, "date": date}).Info("applied remembered invalidation")
	}
	c.sites.ClearCache()
	return nil
}

func (c *Coordinator) invalidate(ctx context.Context, siteIDs []int, day time.Time, segment string) error {
	if err := c.store.Invalidate(ctx, siteIDs, []time.Time{day}, false, segment); err != nil {
		return types.StoreErr(err, "invalidate archives of %s", day.Format(types.DateLayout))
	}
	if err := c.ledger.Forget(ctx, day, siteIDs...); err != nil {
		return types.StoreErr(err, "forget remembered invalidation of %s", day.Format(types.DateLayout))
	}
	return nil
}

// RememberVisit records that the site received activity after the visit's day may have been
// archived. Days before today (in the site's timezone) are remembered for invalidation.
func RememberVisit(ctx context.Context, ledger ports.InvalidationLedger, site types.Site, at, now time.Time) error {
	loc := site.Location()
	day := types.Day(at.In(loc))
	if !day.Before(types.Day(now.In(loc))) {
		return nil
	}
	if err := ledger.Remember(ctx, day, site.ID); err != nil {
		return types.StoreErr(err, "remember invalidation of %s for site %d", day.Format(types.DateLayout), site.ID)
	}
	return nil
}
