package api

import (
	"archivist/internal/types"
	"context"
	"errors"
)

// ErrBusy is returned by RunJob when another worker is archiving the requested tuple; the
// job should be retried later.
var ErrBusy = errors.New("archiving in progress elsewhere")

const (
	JobPrepare    = "prepare"
	JobVisit      = "visit"
	JobInvalidate = "invalidate"
)

// Job is a queued unit of work. Exactly the payload matching Kind must be set.
type Job struct {
	Kind       string             `json:"kind"`
	Prepare    *PrepareRequest    `json:"prepare,omitempty"`
	Visit      *types.Visit       `json:"visit,omitempty"`
	Invalidate *InvalidateRequest `json:"invalidate,omitempty"`
}

func (s *Service) RunJob(ctx context.Context, job Job) error {
	switch {
	case job.Kind == JobPrepare && job.Prepare != nil:
		res, err := s.Prepare(ctx, *job.Prepare)
		if err != nil {
			return err
		}
		if res.Outcome == types.OutcomeBusy.String() {
			return ErrBusy
		}
		return nil
	case job.Kind == JobVisit && job.Visit != nil:
		return s.Track(ctx, *job.Visit)
	case job.Kind == JobInvalidate && job.Invalidate != nil:
		return s.Invalidate(ctx, *job.Invalidate)
	default:
		return types.Err(types.ErrInvalidParams, nil, "malformed %q job", job.Kind)
	}
}
