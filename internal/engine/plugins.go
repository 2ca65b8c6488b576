package engine

import (
	"archivist/internal/types"
)

// Plugin computes one report from the segment-filtered visits of a period.
type Plugin interface {
	Name() string
	Aggregate(visits []types.Visit, core types.CoreMetrics) (map[string]any, error)
	// ArchivesWithoutVisits reports whether the plugin has output even for a period without
	// visits (e.g. data imported from elsewhere).
	ArchivesWithoutVisits() bool
}

// DefaultPlugins are the plugins every Engine starts with.
func DefaultPlugins() []Plugin {
	return []Plugin{visitsSummary{}, actions{}, goals{}}
}

type visitsSummary struct{}

func (visitsSummary) Name() string                { return types.VisitsSummaryPlugin }
func (visitsSummary) ArchivesWithoutVisits() bool { return false }

func (visitsSummary) Aggregate(visits []types.Visit, core types.CoreMetrics) (map[string]any, error) {
	var actions, length, bounces int64
	for _, v := range visits {
		actions += int64(v.Actions)
		length += int64(v.DurationSeconds)
		if v.Actions <= 1 {
			bounces++
		}
	}
	return map[string]any{
		"nb_visits":           core.Visits,
		"nb_visits_converted": core.VisitsConverted,
		"nb_actions":          actions,
		"sum_visit_length":    length,
		"bounce_count":        bounces,
		"nb_uniq_visitors":    uniqueVisitors(visits),
	}, nil
}

type actions struct{}

func (actions) Name() string                { return "Actions" }
func (actions) ArchivesWithoutVisits() bool { return false }

func (actions) Aggregate(visits []types.Visit, _ types.CoreMetrics) (map[string]any, error) {
	var total, most int64
	for _, v := range visits {
		n := int64(v.Actions)
		total += n
		if n > most {
			most = n
		}
	}
	avg := 0.0
	if len(visits) > 0 {
		avg = float64(total) / float64(len(visits))
	}
	return map[string]any{
		"nb_actions":           total,
		"max_actions":          most,
		"nb_actions_per_visit": avg,
	}, nil
}

type goals struct{}

func (goals) Name() string                { return "Goals" }
func (goals) ArchivesWithoutVisits() bool { return false }

func (goals) Aggregate(visits []types.Visit, core types.CoreMetrics) (map[string]any, error) {
	var revenue float64
	for _, v := range visits {
		if v.Converted {
			revenue += v.Revenue
		}
	}
	rate := 0.0
	if core.Visits > 0 {
		rate = float64(core.VisitsConverted) / float64(core.Visits)
	}
	return map[string]any{
		"nb_conversions":  core.VisitsConverted,
		"revenue":         revenue,
		"conversion_rate": rate,
	}, nil
}

func uniqueVisitors(visits []types.Visit) int64 {
	seen := make(map[string]struct{}, len(visits))
	for _, v := range visits {
		seen[v.VisitorID] = struct{}{}
	}
	return int64(len(seen))
}
