// Package metrics provides Prometheus instrumentation for the Verity runtime
// context: store construction, datasource initialization, cache behavior and
// configuration variable substitution.
//
// All collectors are registered automatically on the default registerer and
// are safe for concurrent use.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoresBuilt tracks the total number of stores built by the store
	// registry. Labels: kind (store kind, e.g. "expectations").
	StoresBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verity_stores_built_total",
			Help: "Total number of stores built",
		},
		[]string{"kind"},
	)

	// StoreBuildDuration tracks how long store construction takes. Building a
	// store may touch the filesystem or open backend connections, so the
	// buckets span microseconds to seconds.
	StoreBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "verity_store_build_duration_seconds",
			Help: "Store construction latency in seconds",
			Buckets: []float64{
				1e-6, // in-memory backends
				1e-5,
				1e-4, // local filesystem
				1e-3,
				1e-2,
				1e-1, // network-backed stores
				1,
			},
		},
		[]string{"kind"},
	)

	// DatasourcesInitialized tracks datasource instantiation attempts.
	// Labels: kind (datasource kind), status (success/failure).
	DatasourcesInitialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verity_datasources_initialized_total",
			Help: "Total number of datasource initialization attempts",
		},
		[]string{"kind", "status"},
	)

	// DatasourceCacheHits counts lookups served from the in-memory
	// datasource cache.
	DatasourceCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verity_datasource_cache_hits_total",
			Help: "Total number of datasource cache hits",
		},
	)

	// DatasourceCacheMisses counts lookups that had to instantiate a
	// datasource from its persisted configuration.
	DatasourceCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verity_datasource_cache_misses_total",
			Help: "Total number of datasource cache misses",
		},
	)

	// SubstitutionsApplied counts individual placeholder replacements
	// performed by the substitution engine.
	SubstitutionsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verity_substitutions_applied_total",
			Help: "Total number of configuration placeholder substitutions applied",
		},
	)

	// UsageEventsEmitted counts usage-statistics events handed to the
	// configured sink. Labels: event (event type).
	UsageEventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verity_usage_events_total",
			Help: "Total number of usage statistics events emitted",
		},
		[]string{"event"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since the timer was created.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveStoreBuild records a completed store construction of the given kind.
func ObserveStoreBuild(kind string, d time.Duration) {
	StoresBuilt.WithLabelValues(kind).Inc()
	StoreBuildDuration.WithLabelValues(kind).Observe(d.Seconds())
}
