package types

import (
	"fmt"
	"strings"
	"time"
)

// PeriodLabel is the granularity of a Period.
type PeriodLabel string

const (
	PeriodDay   PeriodLabel = "day"
	PeriodWeek  PeriodLabel = "week"
	PeriodMonth PeriodLabel = "month"
	PeriodYear  PeriodLabel = "year"
	PeriodRange PeriodLabel = "range"

	DateLayout = "2006-01-02"
)

var periodRanks = map[PeriodLabel]int{
	PeriodDay:   1,
	PeriodWeek:  2,
	PeriodMonth: 3,
	PeriodYear:  4,
	PeriodRange: 5,
}

func (l PeriodLabel) Valid() bool {
	_, ok := periodRanks[l]
	return ok
}

// Rank orders granularities from day (1) to range (5); 0 for unknown labels.
func (l PeriodLabel) Rank() int {
	return periodRanks[l]
}

// Period is a calendar interval of whole days. Start and End are civil dates stored as
// midnight UTC; both are inclusive.
type Period struct {
	Label PeriodLabel `json:"label" yaml:"label"`
	Start time.Time   `json:"start" yaml:"start"`
	End   time.Time   `json:"end" yaml:"end"`
}

// NewPeriod builds the period of the given granularity that contains date. For ranges, date
// is "YYYY-MM-DD,YYYY-MM-DD".
func NewPeriod(label PeriodLabel, date string) (Period, error) {
	if label == PeriodRange {
		parts := strings.Split(date, ",")
		if len(parts) != 2 {
			return Period{}, Err(ErrInvalidParams, nil, "range date must be 'start,end', got %q", date)
		}
		start, err := ParseDate(parts[0])
		if err != nil {
			return Period{}, err
		}
		end, err := ParseDate(parts[1])
		if err != nil {
			return Period{}, err
		}
		if end.Before(start) {
			return Period{}, Err(ErrInvalidParams, nil, "range end %s is before start %s", parts[1], parts[0])
		}
		return Period{Label: PeriodRange, Start: start, End: end}, nil
	}
	day, err := ParseDate(date)
	if err != nil {
		return Period{}, err
	}
	return PeriodContaining(label, day)
}

// PeriodContaining returns the day/week/month/year period that contains day.
func PeriodContaining(label PeriodLabel, day time.Time) (Period, error) {
	d := Day(day)
	switch label {
	case PeriodDay:
		return Period{Label: label, Start: d, End: d}, nil
	case PeriodWeek:
		// weeks start on Monday
		offset := (int(d.Weekday()) + 6) % 7
		start := d.AddDate(0, 0, -offset)
		return Period{Label: label, Start: start, End: start.AddDate(0, 0, 6)}, nil
	case PeriodMonth:
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Period{Label: label, Start: start, End: start.AddDate(0, 1, -1)}, nil
	case PeriodYear:
		return Period{
			Label: label,
			Start: time.Date(d.Year(), 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(d.Year(), 12, 31, 0, 0, 0, 0, time.UTC),
		}, nil
	default:
		return Period{}, Err(ErrInvalidParams, nil, "unknown period %q", label)
	}
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, Err(ErrInvalidParams, err, "invalid date %q", s)
	}
	return d, nil
}

// Day truncates t to its civil date, as midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	if p.Label == PeriodRange {
		return fmt.Sprintf("range(%s,%s)", p.Start.Format(DateLayout), p.End.Format(DateLayout))
	}
	return fmt.Sprintf("%s(%s)", p.Label, p.Start.Format(DateLayout))
}

// DateParam renders the period's date the way NewPeriod accepts it.
func (p Period) DateParam() string {
	if p.Label == PeriodRange {
		return p.Start.Format(DateLayout) + "," + p.End.Format(DateLayout)
	}
	return p.Start.Format(DateLayout)
}

// Contains reports whether the civil date of day lies within [Start, End].
func (p Period) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Within reports whether p lies entirely inside other.
func (p Period) Within(other Period) bool {
	return !p.Start.Before(other.Start) && !p.End.After(other.End)
}

// IsFinerThan reports whether p has a strictly smaller granularity than other.
func (p Period) IsFinerThan(other Period) bool {
	return periodRanks[p.Label] < periodRanks[other.Label]
}

// Equal compares label and civil bounds.
func (p Period) Equal(other Period) bool {
	return p.Label == other.Label && p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// StartInstant is the first instant of the period in loc, expressed in UTC.
func (p Period) StartInstant(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(p.Start.Year(), p.Start.Month(), p.Start.Day(), 0, 0, 0, 0, loc).UTC()
}

// EndInstant is the last second of the period's final day in loc, expressed in UTC.
func (p Period) EndInstant(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	next := time.Date(p.End.Year(), p.End.Month(), p.End.Day()+1, 0, 0, 0, 0, loc)
	return next.Add(-time.Second).UTC()
}
