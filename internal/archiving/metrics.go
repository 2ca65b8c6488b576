package archiving

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archivist_prepare_archive_total",
		Help: "Archive preparations by outcome.",
	}, []string{"outcome"})
	lockContendedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archivist_lock_contended_total",
		Help: "Archiving lock acquisitions that found the tuple already held.",
	})
	minVisitTimeLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archivist_min_visit_time_lookups_total",
		Help: "Minimum visit time lookups by cache result (hit, miss, error).",
	}, []string{"result"})
	invalidationsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archivist_invalidations_applied_total",
		Help: "Remembered invalidation dates applied before archiving.",
	})
)
