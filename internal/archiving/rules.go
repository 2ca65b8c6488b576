package archiving

import (
	"archivist/internal/ports"
	"archivist/internal/types"
	"context"
	"time"
)

// Rules holds the freshness decisions. Apart from the in-progress policy it is pure.
type Rules struct {
	settings types.Settings
	policy   ports.InProgressPolicy
}

func NewRules(settings types.Settings, policy ports.InProgressPolicy) *Rules {
	if policy == nil {
		policy = IntervalPolicy{Settings: settings}
	}
	return &Rules{settings: settings, policy: policy}
}

// IsArchivingForced reports whether the debug override for the period's granularity demands
// recomputation on every request.
func (r *Rules) IsArchivingForced(period types.Period) bool {
	return r.settings.Debug.ForcedFor(period.Label)
}

// IsPermanent reports whether the period's end instant is strictly before now; such a
// period's data never changes again.
func IsPermanent(params types.Params, now time.Time) bool {
	return params.EndInstant().Before(now)
}

// MinArchivedAt returns the oldest archived-at instant an archive may carry to be usable.
// For a permanent period it is exactly the period's end instant; otherwise the in-progress
// policy decides.
func (r *Rules) MinArchivedAt(ctx context.Context, params types.Params) (time.Time, error) {
	t := now()
	if IsPermanent(params, t) {
		return params.EndInstant(), nil
	}
	return r.policy.MinArchivedAt(ctx, params, t)
}

// ProcessesAllPlugins reports whether every plugin is archived together for params. Then the
// archive group is shared and already includes the core visit metrics.
func (r *Rules) ProcessesAllPlugins(params types.Params) bool {
	return r.settings.BrowserArchiving && params.Segment == ""
}

// Group is the archive group (done flag) of the requested plugin.
func (r *Rules) Group(params types.Params) string {
	if r.ProcessesAllPlugins(params) {
		return types.AllPluginsGroup
	}
	if params.Plugin == "" {
		return types.VisitsSummaryPlugin
	}
	return params.Plugin
}

// IncludesVisitsSummary reports whether archiving the requested plugin also computes the core
// visit metrics.
func (r *Rules) IncludesVisitsSummary(params types.Params) bool {
	return r.ProcessesAllPlugins(params) || r.Group(params) == types.VisitsSummaryPlugin
}

// IntervalPolicy accepts archives of in-progress periods that are younger than the configured
// TTL of the period's granularity.
type IntervalPolicy struct {
	Settings types.Settings
}

func (p IntervalPolicy) MinArchivedAt(_ context.Context, params types.Params, now time.Time) (time.Time, error) {
	return now.Add(-p.Settings.InProgressTTL(params.Period.Label)), nil
}
