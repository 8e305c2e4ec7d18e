package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quizroom"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	RoomsActive        prometheus.Gauge
	ConnectionsActive  prometheus.Gauge
	Commands           *prometheus.CounterVec
	DispatchLatency    prometheus.Histogram
	SubscribersDropped prometheus.Counter
	SnapshotsDropped   prometheus.Counter
	PersistFailures    prometheus.Counter
	RoomsEvicted       prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms held in memory",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open WebSocket connections",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands dispatched to rooms by command and result",
		}, []string{"command", "result"}),
		DispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_seconds",
			Help:      "Time spent applying and broadcasting a command",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers disconnected for falling behind",
		}),
		SnapshotsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_dropped_total",
			Help:      "Snapshots not persisted because the write buffer was full",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Snapshot batches given up after retries",
		}),
		RoomsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_evicted_total",
			Help:      "Rooms removed by the idle sweeper",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RoomsActive,
		m.ConnectionsActive,
		m.Commands,
		m.DispatchLatency,
		m.SubscribersDropped,
		m.SnapshotsDropped,
		m.PersistFailures,
		m.RoomsEvicted,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveCommand(name string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Commands.WithLabelValues(name, result).Inc()
	m.DispatchLatency.Observe(took.Seconds())
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.RoomsActive.Set(float64(n))
}

func (m *Metrics) IncConnections() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
}

func (m *Metrics) DecConnections() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) SubscriberDropped() {
	if m == nil {
		return
	}
	m.SubscribersDropped.Inc()
}

func (m *Metrics) SnapshotDropped() {
	if m == nil {
		return
	}
	m.SnapshotsDropped.Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) RoomEvicted() {
	if m == nil {
		return
	}
	m.RoomsEvicted.Inc()
}
