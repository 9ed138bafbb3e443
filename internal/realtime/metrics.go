package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts dispatched envelopes by action and result.
type Metrics struct {
	envelopes *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the dispatcher metrics with reg. A nil reg leaves the
// metrics unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studiosync",
			Subsystem: "realtime",
			Name:      "envelopes_total",
			Help:      "Realtime envelopes dispatched, by action and result.",
		}, []string{"action", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studiosync",
			Subsystem: "realtime",
			Name:      "dispatch_seconds",
			Help:      "Time spent applying one realtime envelope.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.envelopes, m.duration)
	}
	return m
}

func (m *Metrics) observe(action string, result Result, seconds float64) {
	if m == nil {
		return
	}
	m.envelopes.WithLabelValues(action, string(result)).Inc()
	m.duration.WithLabelValues(action).Observe(seconds)
}
