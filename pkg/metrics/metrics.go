package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "typestore_operation_duration_seconds",
	Help:    "The duration of engine operations",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
}, []string{"operation"})

var OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "typestore_operation_errors_total",
	Help: "The total number of failed engine operations by error kind",
}, []string{"operation", "kind"})

var MetadataCache = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "typestore_metadata_cache_total",
	Help: "Metadata cache lookups by result (hit, miss, bypass)",
}, []string{"result"})

var CacheClears = promauto.NewCounter(prometheus.CounterOpts{
	Name: "typestore_metadata_cache_clears_total",
	Help: "The number of whole metadata cache clears",
})

var ImportedObjects = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "typestore_imported_objects_total",
	Help: "Objects applied by imports by outcome (inserted, updated, ignored)",
}, []string{"outcome"})

// Cache lookup results.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
)

// Track starts timing an operation. The returned func records the duration and,
// when *errp is non-nil, an error counted under kindOf(*errp).
func Track(operation string, errp *error, kindOf func(error) string) func() {
	start := time.Now()
	return func() {
		OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		if errp != nil && *errp != nil {
			kind := "unknown"
			if kindOf != nil {
				if k := kindOf(*errp); k != "" {
					kind = k
				}
			}
			OperationErrors.WithLabelValues(operation, kind).Inc()
		}
	}
}
