package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	snapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_snapshots_total",
			Help: "Snapshots applied to a cache",
		},
		[]string{"cache"},
	)
	staleSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_stale_snapshots_total",
			Help: "Snapshots dropped because their subscription was superseded",
		},
		[]string{"cache"},
	)
	listenerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_listener_errors_total",
			Help: "Snapshot listener errors",
		},
		[]string{"cache"},
	)
	writeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_write_errors_total",
			Help: "Remote writes that failed after an optimistic mutation",
		},
		[]string{"cache"},
	)
)

// RegisterMetrics registers the cache collectors. Call once from main.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(snapshotsTotal, staleSnapshotsTotal, listenerErrorsTotal, writeErrorsTotal)
}
