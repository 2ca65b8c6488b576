package archiving

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Status is the archiving status lock: at most one worker computes a given
// (site, period, segment, group) tuple at a time.
type Status struct {
	locker ports.Locker
	ttl    time.Duration
}

func NewStatus(locker ports.Locker, ttl time.Duration) *Status {
	if ttl <= 0 {
		ttl = types.DefaultLockTTLSeconds * time.Second
	}
	return &Status{locker: locker, ttl: ttl}
}

// LockKey identifies the tuple guarded by the lock.
func LockKey(params types.Params, group string) string {
	seg := params.SegmentKey()
	if seg == "" {
		seg = "-"
	}
	return fmt.Sprintf("archiving.%d.%s.%s.%s.%s", params.Site.ID, params.Period.Label, params.Period.DateParam(), seg, group)
}

// Lock is a held archiving lock. Release frees it exactly once.
type Lock struct {
	locker ports.Locker
	key    string
	owner  string

	once sync.Once
	err  error
}

func (l *Lock) Key() string { return l.key }

// Release frees the lock. Calls after the first return the first call's result. It returns
// types.ErrLockLost when the backend no longer had this owner on the key.
func (l *Lock) Release(ctx context.Context) error {
	l.once.Do(func() {
		ok, err := l.locker.Release(ctx, l.key, l.owner)
		if err != nil {
			l.err = types.StoreErr(err, "release lock %s", l.key)
			return
		}
		if !ok {
			l.err = types.Err(types.ErrLockLost, nil, "lock %s", l.key)
		}
	})
	return l.err
}

// Acquire tries to take the lock for the tuple. held is false when another worker has it;
// that is not an error.
func (s *Status) Acquire(ctx context.Context, params types.Params, group string) (lock *Lock, held bool, err error) {
	key := LockKey(params, group)
	owner := uuid.NewString()
	ok, err := s.locker.TryAcquire(ctx, key, owner, s.ttl)
	if err != nil {
		return nil, false, types.StoreErr(err, "acquire lock %s", key)
	}
	if !ok {
		lockContendedTotal.Inc()
		return nil, false, nil
	}
	return &Lock{locker: s.locker, key: key, owner: owner}, true, nil
}

// Guard runs fn while holding the tuple's lock and releases it on every exit path, including
// a panic in fn. When the lock is held elsewhere fn does not run and held is false.
// An error of fn wins over a release error; a lost lock is only logged.
func (s *Status) Guard(ctx context.Context, params types.Params, group string, fn func(ctx context.Context) error) (held bool, err error) {
	lock, held, err := s.Acquire(ctx, params, group)
	if err != nil || !held {
		return false, err
	}
	defer func() {
		rerr := lock.Release(context.WithoutCancel(ctx))
		switch {
		case rerr == nil:
		case errors.Is(rerr, types.ErrLockLost):
			log.WithField("lock", lock.Key()).Warn("archiving lock expired before release")
		case err == nil:
			err = rerr
		default:
			log.WithError(rerr).WithField("lock", lock.Key()).Error("failed to release archiving lock")
		}
	}()
	return true, fn(ctx)
}
