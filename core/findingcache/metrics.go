package findingcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the cache collectors. A nil *Metrics records nothing.
type Metrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	evictions     prometheus.Counter
	flushFailures prometheus.Counter
	size          prometheus.Gauge
}

// NewMetrics creates the cache collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stablelint",
			Subsystem: "finding_cache",
			Name:      "hits_total",
			Help:      "Lookups answered from memory.",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stablelint",
			Subsystem: "finding_cache",
			Name:      "misses_total",
			Help:      "Lookups not in memory.",
		}),
		evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stablelint",
			Subsystem: "finding_cache",
			Name:      "evictions_total",
			Help:      "Entries flushed to the store and dropped from memory.",
		}),
		flushFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stablelint",
			Subsystem: "finding_cache",
			Name:      "flush_failures_total",
			Help:      "Flushes to the store that failed; the entry stays in memory.",
		}),
		size: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stablelint",
			Subsystem: "finding_cache",
			Name:      "entries",
			Help:      "Entries currently held in memory.",
		}),
	}
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *Metrics) flushFailed() {
	if m != nil {
		m.flushFailures.Inc()
	}
}

func (m *Metrics) setSize(n int) {
	if m != nil {
		m.size.Set(float64(n))
	}
}
