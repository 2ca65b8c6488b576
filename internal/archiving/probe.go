package archiving

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// Probe answers "did the site have any activity in this timeframe" while avoiding the raw
// activity store where the cached minimum activity time already proves the answer.
type Probe struct {
	activity ports.ActivityStore
	lazy     ports.LazyCache
	ttl      time.Duration
}

func NewProbe(activity ports.ActivityStore, lazy ports.LazyCache, ttl time.Duration) *Probe {
	if ttl <= 0 {
		ttl = types.DefaultMinVisitTimeTTLSeconds * time.Second
	}
	return &Probe{activity: activity, lazy: lazy, ttl: ttl}
}

// HasActivityInRange reports whether the site recorded any activity between from and the end
// of to's day.
func (p *Probe) HasActivityInRange(ctx context.Context, siteID int, from, to time.Time) (bool, error) {
	minTime, ok, err := p.MinActivityTime(ctx, siteID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	end := types.Day(to).AddDate(0, 0, 1)
	if end.Before(minTime) {
		return false, nil
	}
	has, err := p.activity.HasActivityBetween(ctx, siteID, from, end)
	if err != nil {
		return false, types.StoreErr(err, "activity between %s and %s for site %d", from, end, siteID)
	}
	return has, nil
}

// MinActivityTime returns the site's earliest activity, served from the lazy cache for at
// most the configured ttl.
func (p *Probe) MinActivityTime(ctx context.Context, siteID int) (time.Time, bool, error) {
	key := minVisitTimeKey(siteID)
	v, ok, err := p.lazy.Fetch(ctx, key)
	if err != nil {
		minVisitTimeLookupsTotal.WithLabelValues("error").Inc()
		log.WithError(err).WithField("site", siteID).Warn("min visit time cache read failed")
		ok = false
	}
	if ok {
		if t, known, perr := decodeMinTime(v); perr == nil {
			minVisitTimeLookupsTotal.WithLabelValues("hit").Inc()
			return t, known, nil
		}
		log.WithField("site", siteID).Warnf("discarding malformed min visit time %q", v)
	}
	minVisitTimeLookupsTotal.WithLabelValues("miss").Inc()

	t, known, err := p.activity.MinActivityTime(ctx, siteID)
	if err != nil {
		return time.Time{}, false, types.StoreErr(err, "min activity time for site %d", siteID)
	}
	if err := p.lazy.Save(ctx, key, encodeMinTime(t, known), p.ttl); err != nil {
		log.WithError(err).WithField("site", siteID).Warn("min visit time cache write failed")
	}
	return t, known, nil
}

// Forget drops the cached minimum activity time of the site, e.g. after its first visit.
func (p *Probe) Forget(ctx context.Context, siteID int) error {
	return p.lazy.Delete(ctx, minVisitTimeKey(siteID))
}

func minVisitTimeKey(siteID int) string {
	return minVisitTimeCacheKeyPrefix + strconv.Itoa(siteID)
}

// an empty value records "no activity yet"
func encodeMinTime(t time.Time, known bool) string {
	if !known {
		return ""
	}
	return strconv.FormatInt(t.UTC().Unix(), 10)
}

func decodeMinTime(v string) (time.Time, bool, error) {
	if v == "" {
		return time.Time{}, false, nil
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(sec, 0).UTC(), true, nil
}
