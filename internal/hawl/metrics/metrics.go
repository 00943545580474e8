// Package metrics exposes Prometheus instrumentation for the hawl lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the lifecycle transition counters.
type Metrics struct {
	RecordsCreated prometheus.Counter
	HawlsStarted   prometheus.Counter
	Interruptions  prometheus.Counter
	Finalizations  *prometheus.CounterVec
	Unlocks        prometheus.Counter
}

// New creates and registers the hawl metrics.
func New() *Metrics {
	return &Metrics{
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_hawl_records_created_total",
			Help: "Nisab year records created",
		}),
		HawlsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_hawl_started_total",
			Help: "Hawl clocks started on nisab achievement",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_hawl_interruptions_total",
			Help: "Hawl clocks restarted because wealth fell below the frozen threshold",
		}),
		Finalizations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mizan_hawl_finalizations_total",
			Help: "Record finalizations, split by premature acknowledgement",
		}, []string{"premature"}),
		Unlocks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mizan_hawl_unlocks_total",
			Help: "Finalized records unlocked for edits",
		}),
	}
}
