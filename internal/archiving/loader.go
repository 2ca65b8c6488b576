package archiving

import (
	"archivist/internal/cache"
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
)

// Deps are the collaborators of a Loader. Policy and Registry are optional.
type Deps struct {
	Settings types.Settings
	Policy   ports.InProgressPolicy
	Registry *Registry

	Archives ports.ArchiveStore
	Activity ports.ActivityStore
	Ledger   ports.InvalidationLedger
	Locker   ports.Locker
	Lazy     ports.LazyCache
	Sites    SiteCache
	Engine   ports.Aggregator
}

// Loader decides whether an archive request is served from an existing archive, skipped, or
// computed, and runs the computation under the archiving lock.
type Loader struct {
	settings    types.Settings
	rules       *Rules
	store       ports.ArchiveStore
	probe       *Probe
	registry    *Registry
	coordinator *Coordinator
	status      *Status
	engine      ports.Aggregator
}

func NewLoader(d Deps) *Loader {
	registry := d.Registry
	if registry == nil {
		registry = NewRegistry(d.Settings, cache.NewTTL[string, []int]())
	}
	sites := d.Sites
	if sites == nil {
		sites = noSiteCache{}
	}
	return &Loader{
		settings:    d.Settings,
		rules:       NewRules(d.Settings, d.Policy),
		store:       d.Archives,
		probe:       NewProbe(d.Activity, d.Lazy, d.Settings.MinVisitTimeTTL()),
		registry:    registry,
		coordinator: NewCoordinator(d.Ledger, d.Archives, sites),
		status:      NewStatus(d.Locker, d.Settings.Lock.TTL()),
		engine:      d.Engine,
	}
}

func (l *Loader) Rules() *Rules { return l.rules }

func (l *Loader) Probe() *Probe { return l.probe }

func (l *Loader) Registry() *Registry { return l.registry }

func (l *Loader) Coordinator() *Coordinator { return l.coordinator }

func (l *Loader) Status() *Status { return l.status }

// PrepareArchive returns the archive serving plugin for params, computing it when no usable
// archive exists. A Result without id means there is nothing to read: the request was
// provably empty, produced no visits, or another worker is archiving it.
func (l *Loader) PrepareArchive(ctx context.Context, params types.Params, plugin string) (types.Result, error) {
	if err := params.Validate(); err != nil {
		return types.Result{}, err
	}
	params = params.WithPlugin(plugin)
	logger := log.WithFields(log.Fields{
		"site":    params.Site.ID,
		"period":  params.Period.String(),
		"segment": params.Segment,
		"plugin":  params.Plugin,
	})

	res, err := l.prepare(ctx, params, logger)
	if err != nil {
		decisionsTotal.WithLabelValues("error").Inc()
		logger.WithError(err).Error("archive preparation failed")
		return types.Result{}, err
	}
	decisionsTotal.WithLabelValues(res.Outcome.String()).Inc()
	logger.WithFields(log.Fields{"outcome": res.Outcome.String(), "archive": res.ID}).Debug("archive prepared")
	return res, nil
}

func (l *Loader) prepare(ctx context.Context, params types.Params, logger *log.Entry) (types.Result, error) {
	lookup, err := l.LoadExisting(ctx, params)
	if err != nil {
		return types.Result{}, err
	}
	if lookup.Usable() {
		return types.Result{ID: lookup.ID, Outcome: types.OutcomeExisting, Visits: lookup.Visits}, nil
	}

	// No archive is written in this case: the period may still be in progress, and a
	// zero-visit archive would turn stale once activity arrives.
	skip, err := l.CanSkip(ctx, params)
	if err != nil {
		return types.Result{}, err
	}
	if skip {
		return types.Result{Outcome: types.OutcomeSkipped}, nil
	}

	if l.settings.InvalidateBeforeArchiving && lookup.AnyExists {
		if err := l.coordinator.ApplyPending(ctx, params); err != nil {
			return types.Result{}, err
		}
	}

	group := l.rules.Group(params)
	var res types.Result
	held, err := l.status.Guard(ctx, params, group, func(ctx context.Context) error {
		var err error
		res, err = l.compute(ctx, params, lookup, logger)
		return err
	})
	if err != nil {
		return types.Result{}, err
	}
	if held {
		return res, nil
	}
	if l.settings.Lock.Policy != types.LockPolicyWait {
		logger.Info("archiving already in progress elsewhere, skipping")
		return types.Result{Outcome: types.OutcomeBusy}, nil
	}
	return l.waitAndPrepare(ctx, params, group, logger)
}

// waitAndPrepare polls the lock until the other worker is done. The other worker most likely
// produced the archive, so the existence lookup runs again under the lock before computing.
func (l *Loader) waitAndPrepare(ctx context.Context, params types.Params, group string, logger *log.Entry) (types.Result, error) {
	start := time.Now()
	poll := l.settings.Lock.Poll()
	for {
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return types.Result{}, ctx.Err()
		case <-timer.C:
		}

		var res types.Result
		held, err := l.status.Guard(ctx, params, group, func(ctx context.Context) error {
			lookup, err := l.LoadExisting(ctx, params)
			if err != nil {
				return err
			}
			if lookup.Usable() {
				res = types.Result{ID: lookup.ID, Outcome: types.OutcomeExisting, Visits: lookup.Visits}
				return nil
			}
			res, err = l.compute(ctx, params, lookup, logger)
			return err
		})
		if err != nil {
			return types.Result{}, err
		}
		if held {
			return res, nil
		}
		if time.Since(start) >= l.settings.Lock.Wait() {
			logger.Warn("gave up waiting for archiving lock")
			return types.Result{Outcome: types.OutcomeBusy}, nil
		}
	}
}

// LoadExisting runs the existence lookup. When archiving is forced for the period's
// granularity it reports nothing at all, not even an existing archive, so invalidation is
// skipped too.
func (l *Loader) LoadExisting(ctx context.Context, params types.Params) (types.Lookup, error) {
	if l.rules.IsArchivingForced(params.Period) {
		log.WithField("params", params.String()).Debug("archiving forced to trigger")
		return types.Lookup{}, nil
	}
	minArchivedAt, err := l.rules.MinArchivedAt(ctx, params)
	if err != nil {
		return types.Lookup{}, err
	}
	q := types.ArchiveQuery{
		SiteID:  params.Site.ID,
		Period:  params.Period,
		Segment: params.Segment,
		Group:   l.rules.Group(params),
	}
	lookup, err := l.store.FindArchive(ctx, q, minArchivedAt)
	if err != nil {
		return types.Lookup{}, types.StoreErr(err, "find archive %s", params)
	}
	return lookup, nil
}

// CanSkip reports whether params provably has nothing to archive: the site uses the standard
// tracker, recorded no activity during the period, and has no finer archives inside it.
// Any doubt answers false.
func (l *Loader) CanSkip(ctx context.Context, params types.Params) (bool, error) {
	siteID := params.Site.ID
	usesTracker, err := l.registry.UsesTracker(ctx, siteID)
	if err != nil {
		return false, err
	}
	if !usesTracker {
		return false, nil
	}
	hasActivity, err := l.probe.HasActivityInRange(ctx, siteID, params.StartInstant(), params.EndInstant())
	if err != nil {
		return false, err
	}
	if hasActivity {
		return false, nil
	}
	hasFiner, err := l.store.HasFinerArchives(ctx, siteID, params.Period)
	if err != nil {
		return false, types.StoreErr(err, "finer archives of %s", params)
	}
	return !hasFiner, nil
}

// compute runs the aggregation. It must only be called while holding the tuple's lock.
func (l *Loader) compute(ctx context.Context, params types.Params, lookup types.Lookup, logger *log.Entry) (types.Result, error) {
	core := types.CoreMetrics{Visits: lookup.Visits, VisitsConverted: lookup.VisitsConverted}
	known := lookup.VisitsKnown
	includesCore := l.rules.IncludesVisitsSummary(params)

	// The core metrics get their own archive when the requested plugin does not cover them.
	if !known && !includesCore {
		coreParams := params.WithPlugin(types.VisitsSummaryPlugin)
		session := l.engine.Open(coreParams, l.rules.Group(coreParams))
		m, err := session.AggregateCoreMetrics(ctx)
		if err != nil {
			return types.Result{}, err
		}
		if _, err := session.Finalize(ctx); err != nil {
			return types.Result{}, err
		}
		core, known = m, true
	}

	session := l.engine.Open(params, l.rules.Group(params))
	if !known || includesCore {
		m, err := session.AggregateCoreMetrics(ctx)
		if err != nil {
			return types.Result{}, err
		}
		core = m
	}

	force := false
	if core.Visits <= 0 {
		ids, err := l.registry.SitesToArchiveWithoutVisits(ctx)
		if err != nil {
			return types.Result{}, err
		}
		force = slices.Contains(ids, params.Site.ID)
	}
	if err := session.AggregateAllPlugins(ctx, core, force); err != nil {
		return types.Result{}, err
	}
	id, err := session.Finalize(ctx)
	if err != nil {
		return types.Result{}, err
	}
	logger.WithFields(log.Fields{"archive": id, "visits": core.Visits}).Info("archive finalized")

	if core.Visits > 0 || l.engine.ArchivesWithoutVisits() {
		return types.Result{ID: id, Outcome: types.OutcomeComputed, Visits: core.Visits}, nil
	}
	return types.Result{Outcome: types.OutcomeNoData}, nil
}

type noSiteCache struct{}

func (noSiteCache) ClearCache() {}
