package memory

import (
	"archivist/internal/types"
	"context"
	"sync"
	"time"
)

// VisitLog keeps raw visits in process memory, per site.
type VisitLog struct {
	mu     sync.RWMutex
	visits map[int][]types.Visit
}

func NewVisitLog() *VisitLog {
	return &VisitLog{visits: make(map[int][]types.Visit)}
}

func (l *VisitLog) RecordVisit(_ context.Context, v types.Visit) error {
	if v.SiteID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "visit site id must be positive, got %d", v.SiteID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	v.FirstActionAt = v.FirstActionAt.UTC()
	l.visits[v.SiteID] = append(l.visits[v.SiteID], v)
	return nil
}

func (l *VisitLog) MinActivityTime(_ context.Context, siteID int) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var first time.Time
	for _, v := range l.visits[siteID] {
		if first.IsZero() || v.FirstActionAt.Before(first) {
			first = v.FirstActionAt
		}
	}
	return first, !first.IsZero(), nil
}

func (l *VisitLog) HasActivityBetween(_ context.Context, siteID int, from, to time.Time) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, v := range l.visits[siteID] {
		if inRange(v.FirstActionAt, from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (l *VisitLog) Visits(_ context.Context, siteID int, from, to time.Time) ([]types.Visit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []types.Visit
	for _, v := range l.visits[siteID] {
		if inRange(v.FirstActionAt, from, to) {
			out = append(out, v)
		}
	}
	return out, nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
