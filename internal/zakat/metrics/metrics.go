// Package metrics exposes Prometheus instrumentation for zakat calculation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the calculation and live-wealth cache metrics.
type Metrics struct {
	Calculations  *prometheus.CounterVec
	LiveCacheHits prometheus.Counter
	LiveCacheMiss prometheus.Counter
	BelowNisab    prometheus.Counter
	AboveNisab    prometheus.Counter
}

// New creates and registers the zakat metrics.
func New() *Metrics {
	return &Metrics{
		Calculations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_zakat_calculations_total",
			Help: "Total zakat calculations performed, by methodology",
		}, []string{"methodology"}),
		LiveCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_zakat_live_cache_hits_total",
			Help: "Live wealth snapshots served from cache",
		}),
		LiveCacheMiss: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_zakat_live_cache_misses_total",
			Help: "Live wealth snapshots recomputed on cache miss",
		}),
		BelowNisab: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_zakat_below_nisab_total",
			Help: "Calculations whose net wealth fell below the effective nisab",
		}),
		AboveNisab: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_zakat_above_nisab_total",
			Help: "Calculations whose net wealth met or exceeded the effective nisab",
		}),
	}
}
