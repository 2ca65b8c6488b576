package engine

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"slices"
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

// Engine is the reference aggregation engine: it reads visits from a VisitLog, computes the
// plugin reports and persists them as one archive per session.
type Engine struct {
	visits   ports.VisitLog
	archives ports.ArchiveStore
	plugins  []Plugin
	notifier *Notifier
}

type Option func(*Engine)

// WithPlugins adds plugins next to the defaults.
func WithPlugins(p ...Plugin) Option {
	return func(e *Engine) { e.plugins = append(e.plugins, p...) }
}

// WithNotifier publishes a message for every finalized archive.
func WithNotifier(n *Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func New(visits ports.VisitLog, archives ports.ArchiveStore, opts ...Option) *Engine {
	e := &Engine{visits: visits, archives: archives, plugins: DefaultPlugins()}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) ArchivesWithoutVisits() bool {
	return slices.ContainsFunc(e.plugins, Plugin.ArchivesWithoutVisits)
}

func (e *Engine) Open(params types.Params, group string) ports.Session {
	return &session{engine: e, params: params, group: group, reports: Reports{}}
}

// pluginsOf returns the plugins archived together under group.
func (e *Engine) pluginsOf(group string) []Plugin {
	if group == types.AllPluginsGroup {
		return e.plugins
	}
	var out []Plugin
	for _, p := range e.plugins {
		if p.Name() == group {
			out = append(out, p)
		}
	}
	return out
}

type session struct {
	engine *Engine
	params types.Params
	group  string

	loaded  bool
	visits  []types.Visit
	core    types.CoreMetrics
	reports Reports
}

func (s *session) load(ctx context.Context) ([]types.Visit, error) {
	if s.loaded {
		return s.visits, nil
	}
	seg, err := CompileSegment(s.params.Segment)
	if err != nil {
		return nil, err
	}
	from := s.params.StartInstant()
	to := s.params.EndInstant().Add(time.Second)
	all, err := s.engine.visits.Visits(ctx, s.params.Site.ID, from, to)
	if err != nil {
		return nil, types.StoreErr(err, "read visits of %s", s.params)
	}
	for _, v := range all {
		ok, err := seg.Match(v)
		if err != nil {
			return nil, err
		}
		if ok {
			s.visits = append(s.visits, v)
		}
	}
	s.loaded = true
	return s.visits, nil
}

func (s *session) AggregateCoreMetrics(ctx context.Context) (types.CoreMetrics, error) {
	visits, err := s.load(ctx)
	if err != nil {
		return types.CoreMetrics{}, err
	}
	core := types.CoreMetrics{Visits: int64(len(visits))}
	for _, v := range visits {
		if v.Converted {
			core.VisitsConverted++
		}
	}
	s.core = core
	if s.group == types.VisitsSummaryPlugin || s.group == types.AllPluginsGroup {
		r, err := visitsSummary{}.Aggregate(visits, core)
		if err != nil {
			return types.CoreMetrics{}, err
		}
		s.reports[types.VisitsSummaryPlugin] = r
	}
	return core, nil
}

func (s *session) AggregateAllPlugins(ctx context.Context, core types.CoreMetrics, forceWithoutVisits bool) error {
	s.core = core
	visits, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, p := range s.engine.pluginsOf(s.group) {
		if _, done := s.reports[p.Name()]; done {
			continue
		}
		if core.Visits <= 0 && !forceWithoutVisits && !p.ArchivesWithoutVisits() {
			continue
		}
		r, err := p.Aggregate(visits, core)
		if err != nil {
			return err
		}
		s.reports[p.Name()] = r
	}
	return nil
}

func (s *session) Finalize(ctx context.Context) (types.ArchiveID, error) {
	blob, err := EncodeReports(s.reports)
	if err != nil {
		return 0, err
	}
	a := types.Archive{
		SiteID:          s.params.Site.ID,
		Period:          s.params.Period,
		Segment:         s.params.Segment,
		Group:           s.group,
		Done:            types.DoneComplete,
		ArchivedAt:      timeNow().UTC(),
		Visits:          s.core.Visits,
		VisitsConverted: s.core.VisitsConverted,
		Blob:            blob,
	}
	id, err := s.engine.archives.SaveArchive(ctx, a)
	if err != nil {
		return 0, types.StoreErr(err, "save archive of %s", s.params)
	}
	a.ID = id
	if s.engine.notifier != nil {
		if err := s.engine.notifier.ArchiveFinalized(ctx, a); err != nil {
			log.WithError(err).WithField("archive", id).Warn("archive notification failed")
		}
	}
	return id, nil
}
