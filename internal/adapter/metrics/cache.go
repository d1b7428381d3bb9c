package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the content fingerprint cache.
type CacheMetrics struct {
	Hits            prometheus.Counter
	Misses          prometheus.Counter
	Invalidations   prometheus.Counter
	Evictions       prometheus.Counter
	ComputeDuration prometheus.Histogram
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fingerprint_cache",
			Name:      "hits_total",
			Help:      "Total number of fingerprint cache hits.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fingerprint_cache",
			Name:      "misses_total",
			Help:      "Total number of fingerprint cache misses.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fingerprint_cache",
			Name:      "invalidations_total",
			Help:      "Total number of explicit fingerprint cache invalidations.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fingerprint_cache",
			Name:      "evictions_total",
			Help:      "Total number of expired entries removed by the eviction timer.",
		}),
		ComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fingerprint_cache",
			Name:      "compute_duration_seconds",
			Help:      "Time spent resolving and hashing content on a cache miss.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations, m.Evictions, m.ComputeDuration)
	return m
}
