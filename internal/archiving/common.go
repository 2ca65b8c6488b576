package archiving

import "time"

const (
	minVisitTimeCacheKeyPrefix = "Archiving.minVisitTime."
	sitesWithoutTrackerKey     = "Archiving.isWebsiteUsingTheTracker"
	sitesWithoutVisitsKey      = "Archiving.getIdSitesToArchiveWhenNoVisits"
)

var timeNow = time.Now

func now() time.Time {
	return timeNow().UTC()
}

func SetTimeNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}
