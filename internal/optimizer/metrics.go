package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeCanceled = "canceled"
	outcomeTimeout  = "timeout"
)

// Metrics holds the prometheus collectors for package searches.
type Metrics struct {
	searches *prometheus.CounterVec
	duration prometheus.Histogram
	explored prometheus.Histogram
}

// NewMetrics creates the optimizer collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tourplanner",
			Subsystem: "optimizer",
			Name:      "searches_total",
			Help:      "Package searches by outcome",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tourplanner",
			Subsystem: "optimizer",
			Name:      "search_duration_seconds",
			Help:      "Wall time of package searches in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		explored: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tourplanner",
			Subsystem: "optimizer",
			Name:      "explored_nodes",
			Help:      "Search nodes visited per completed search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 14),
		}),
	}
	reg.MustRegister(m.searches, m.duration, m.explored)
	return m
}

func (m *Metrics) observe(outcome string, elapsed time.Duration, explored int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(outcome).Inc()
	if outcome == outcomeRejected {
		return
	}
	m.duration.Observe(elapsed.Seconds())
	if outcome == outcomeOK {
		m.explored.Observe(float64(explored))
	}
}
