package listsync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch results recorded by Metrics.
const (
	resultOK    = "ok"
	resultError = "error"
	resultStale = "stale"
)

// Metrics counts cache fetches by entity and result and times them.
// One Metrics is shared by all caches of a process.
type Metrics struct {
	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the fetch metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "myday",
			Subsystem: "listsync",
			Name:      "fetches_total",
			Help:      "Page fetches by entity kind and result (ok, error, stale).",
		}, []string{"entity", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "myday",
			Subsystem: "listsync",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of page fetches by entity kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity"}),
	}
	if reg != nil {
		reg.MustRegister(m.fetches, m.duration)
	}
	return m
}

func (m *Metrics) observe(entity, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(entity, result).Inc()
	m.duration.WithLabelValues(entity).Observe(elapsed.Seconds())
}
