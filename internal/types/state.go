package types

import (
	"slices"
	"time"
)

// ArchiveID is the opaque identifier of a persisted archive. Zero means "no archive".
type ArchiveID int64

// DoneState is the validity flag of an archive.
type DoneState int

const (
	DoneComplete    DoneState = 1
	DoneInvalidated DoneState = 4
)

// Archive is a persisted, pre-aggregated result for (site, period, segment, group).
// Blob carries the encoded metric values; the loader never looks inside it.
type Archive struct {
	ID              ArchiveID `json:"id" dynamodbav:"id"`
	SiteID          int       `json:"site_id" dynamodbav:"site_id"`
	Period          Period    `json:"period" dynamodbav:"period"`
	Segment         string    `json:"segment,omitempty" dynamodbav:"segment"`
	Group           string    `json:"group" dynamodbav:"group"`
	Done            DoneState `json:"done" dynamodbav:"done"`
	ArchivedAt      time.Time `json:"archived_at" dynamodbav:"archived_at"`
	Visits          int64     `json:"visits" dynamodbav:"visits"`
	VisitsConverted int64     `json:"visits_converted" dynamodbav:"visits_converted"`
	Blob            string    `json:"blob,omitempty" dynamodbav:"blob"`
}

// UsableSince reports whether the archive is complete and archived at or after min.
func (a Archive) UsableSince(min time.Time) bool {
	return a.Done == DoneComplete && !a.ArchivedAt.Before(min)
}

// Matches reports whether the archive belongs to the given site, period and segment.
func (a Archive) Matches(siteID int, period Period, segment string) bool {
	return a.SiteID == siteID && a.Period.Equal(period) && a.Segment == segment
}

// ArchiveQuery selects archives for the exact (site, period, segment, group) tuple.
type ArchiveQuery struct {
	SiteID  int
	Period  Period
	Segment string
	Group   string
}

// Lookup is the answer of the archive existence lookup.
//   - ID is non-zero only for a usable archive of the exact group.
//   - Visits/VisitsConverted are meaningful when VisitsKnown.
//   - AnyExists is true when any archive (even stale or invalidated) exists for the tuple.
type Lookup struct {
	ID              ArchiveID
	Visits          int64
	VisitsConverted int64
	VisitsKnown     bool
	AnyExists       bool
}

func (l Lookup) Usable() bool { return l.ID != 0 }

// SelectArchive picks the answer for q among a site's archives. Backends that cannot filter
// server-side share it so every store applies identical rules.
func SelectArchive(archives []Archive, q ArchiveQuery, min time.Time) Lookup {
	var out Lookup
	var best, bestVisits *Archive
	for i := range archives {
		a := &archives[i]
		if !a.Matches(q.SiteID, q.Period, q.Segment) {
			continue
		}
		usable := a.UsableSince(min)
		if a.Group == q.Group {
			out.AnyExists = true
			if usable && (best == nil || a.ArchivedAt.After(best.ArchivedAt)) {
				best = a
			}
		}
		if usable && (bestVisits == nil || a.ArchivedAt.After(bestVisits.ArchivedAt)) {
			bestVisits = a
		}
	}
	if best != nil {
		out.ID = best.ID
		out.Visits, out.VisitsConverted, out.VisitsKnown = best.Visits, best.VisitsConverted, true
		return out
	}
	if bestVisits != nil {
		out.Visits, out.VisitsConverted, out.VisitsKnown = bestVisits.Visits, bestVisits.VisitsConverted, true
	}
	return out
}

// HasFinerArchive reports whether any archive of siteID has a finer granularity than period
// and lies inside it.
func HasFinerArchive(archives []Archive, siteID int, period Period) bool {
	for _, a := range archives {
		if a.SiteID == siteID && a.Period.IsFinerThan(period) && a.Period.Within(period) {
			return true
		}
	}
	return false
}

// ShouldInvalidate reports whether a must be invalidated for a day-level invalidation of
// date. Without cascade only archives whose period contains the date are hit; with cascade,
// finer archives inside those periods are hit as well.
func ShouldInvalidate(a Archive, siteIDs []int, date time.Time, cascade bool, segment string) bool {
	if a.Segment != segment || !slices.Contains(siteIDs, a.SiteID) {
		return false
	}
	if a.Period.Contains(date) {
		return true
	}
	if !cascade {
		return false
	}
	for _, label := range []PeriodLabel{PeriodWeek, PeriodMonth, PeriodYear} {
		parent, _ := PeriodContaining(label, date)
		if a.Period.IsFinerThan(parent) && a.Period.Within(parent) {
			return true
		}
	}
	return false
}

// Outcome tells how PrepareArchive concluded.
type Outcome int

const (
	OutcomeExisting Outcome = iota // a usable archive already existed
	OutcomeComputed                // aggregation ran and produced an archive
	OutcomeSkipped                 // provably empty, nothing computed
	OutcomeNoData                  // aggregation ran but found no visits
	OutcomeBusy                    // another worker holds the archiving lock
)

var OutcomeText = map[Outcome]string{
	OutcomeExisting: "existing",
	OutcomeComputed: "computed",
	OutcomeSkipped:  "skipped",
	OutcomeNoData:   "no_data",
	OutcomeBusy:     "busy",
}

func (o Outcome) String() string { return OutcomeText[o] }

// Result is the final decision of one PrepareArchive call.
type Result struct {
	ID      ArchiveID `json:"id,omitempty"`
	Outcome Outcome   `json:"-"`
	Visits  int64     `json:"visits"`
}

// Usable reports whether the result carries an archive id the caller can read.
func (r Result) Usable() bool { return r.ID != 0 }

// CoreMetrics are the visit counts produced by the core aggregation.
type CoreMetrics struct {
	Visits          int64 `json:"nb_visits"`
	VisitsConverted int64 `json:"nb_visits_converted"`
}

// Visit is one tracked visit in the raw activity log.
type Visit struct {
	SiteID          int            `json:"site_id" dynamodbav:"site_id"`
	VisitorID       string         `json:"visitor_id" dynamodbav:"visitor_id"`
	FirstActionAt   time.Time      `json:"first_action_at" dynamodbav:"first_action_at"`
	Actions         int            `json:"actions" dynamodbav:"actions"`
	DurationSeconds int            `json:"duration_seconds" dynamodbav:"duration_seconds"`
	Converted       bool           `json:"converted" dynamodbav:"converted"`
	Revenue         float64        `json:"revenue" dynamodbav:"revenue"`
	Attributes      map[string]any `json:"attributes,omitempty" dynamodbav:"attributes"`
}
