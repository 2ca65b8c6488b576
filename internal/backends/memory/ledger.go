package memory

import (
	"archivist/internal/types"
	"context"
	"slices"
	"sync"
	"time"
)

// Ledger is an in-process invalidation ledger.
type Ledger struct {
	mu      sync.Mutex
	pending map[string][]int
}

func NewLedger() *Ledger {
	return &Ledger{pending: make(map[string][]int)}
}

func (l *Ledger) Pending(_ context.Context) (map[string][]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string][]int, len(l.pending))
	for date, ids := range l.pending {
		out[date] = slices.Clone(ids)
	}
	return out, nil
}

func (l *Ledger) Remember(_ context.Context, date time.Time, siteIDs ...int) error {
	key := date.Format(types.DateLayout)
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := l.pending[key]
	for _, id := range siteIDs {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	l.pending[key] = ids
	return nil
}

func (l *Ledger) Forget(_ context.Context, date time.Time, siteIDs ...int) error {
	key := date.Format(types.DateLayout)
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := slices.DeleteFunc(l.pending[key], func(id int) bool { return slices.Contains(siteIDs, id) })
	if len(ids) == 0 {
		delete(l.pending, key)
		return nil
	}
	l.pending[key] = ids
	return nil
}
