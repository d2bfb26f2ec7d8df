package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GeocodeMetrics records cache effectiveness for city lookups.
type GeocodeMetrics struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	failures prometheus.Counter
}

// NewGeocodeMetrics registers the geocode metrics on the provided registerer.
func NewGeocodeMetrics(reg prometheus.Registerer) *GeocodeMetrics {
	if reg == nil {
		return &GeocodeMetrics{}
	}
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocode_cache_hits",
		Help: "Lookups served from the local cache.",
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocode_cache_misses",
		Help: "Lookups that required an upstream request.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocode_upstream_failures",
		Help: "Upstream requests that produced no usable result.",
	})
	reg.MustRegister(hits, misses, failures)
	return &GeocodeMetrics{hits: hits, misses: misses, failures: failures}
}

// IncHit increments the cache-hit counter.
func (g *GeocodeMetrics) IncHit() {
	if g == nil || g.hits == nil {
		return
	}
	g.hits.Inc()
}

// IncMiss increments the cache-miss counter.
func (g *GeocodeMetrics) IncMiss() {
	if g == nil || g.misses == nil {
		return
	}
	g.misses.Inc()
}

// IncFailure increments the upstream-failure counter.
func (g *GeocodeMetrics) IncFailure() {
	if g == nil || g.failures == nil {
		return
	}
	g.failures.Inc()
}
