// Package metrics exposes Prometheus instrumentation for wealth aggregation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the wealth aggregation metrics.
type Metrics struct {
	AggregationDurationMs prometheus.Histogram
	AssetsAggregated      prometheus.Counter
	AssetsSkipped         prometheus.Counter
}

// New creates and registers the wealth metrics.
func New() *Metrics {
	return &Metrics{
		AggregationDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "mizan_wealth_aggregation_duration_ms",
			Help: "Latency of full wealth aggregation runs in milliseconds",
			// The 100ms budget for 200 assets sits inside these buckets.
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		AssetsAggregated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_wealth_assets_aggregated_total",
			Help: "Total number of assets successfully included in aggregations",
		}),
		AssetsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_wealth_assets_skipped_total",
			Help: "Total number of assets skipped due to decrypt or parse failures",
		}),
	}
}
