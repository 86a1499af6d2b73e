package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"golockbridge/types"
)

// Metrics turns status events into bridge metrics on its own registry
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	inFlight    prometheus.Gauge
	duration    prometheus.Histogram

	mu     sync.Mutex
	active map[string]struct{}
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "transitions_total",
			Help:      "Lock record transitions by target status.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Name:      "failures_total",
			Help:      "Failed lock records by error kind.",
		}, []string{"kind", "recoverable"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge",
			Name:      "workflows_in_flight",
			Help:      "Lock records not yet completed or failed.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bridge",
			Name:      "workflow_duration_seconds",
			Help:      "Time from pending to a terminal status.",
			Buckets:   []float64{5, 15, 30, 60, 120, 180, 300, 600},
		}),
		active: map[string]struct{}{},
	}
	m.registry.MustRegister(
		m.transitions, m.failures, m.inFlight, m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe is registered on the status broadcaster
func (m *Metrics) Observe(ev types.StatusEvent) {
	rec := ev.Record
	m.transitions.WithLabelValues(string(rec.Status)).Inc()

	m.mu.Lock()
	if rec.Status.Terminal() {
		delete(m.active, rec.ID)
	} else {
		m.active[rec.ID] = struct{}{}
	}
	m.inFlight.Set(float64(len(m.active)))
	m.mu.Unlock()

	if !rec.Status.Terminal() {
		return
	}
	if rec.Status == types.StatusFailed && rec.Error != nil {
		recoverable := "false"
		if rec.Error.Recoverable {
			recoverable = "true"
		}
		m.failures.WithLabelValues(string(rec.Error.Kind), recoverable).Inc()
	}
	started, ok := rec.Timestamps[types.StatusPending]
	ended, ok2 := rec.Timestamps[rec.Status]
	if ok && ok2 && ended.After(started) {
		m.duration.Observe(ended.Sub(started).Seconds())
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
