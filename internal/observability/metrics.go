package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. A nil
// *Metrics is valid and records nothing, so tests and library callers don't
// have to wire a registry.
type Metrics struct {
	SessionOps      *prometheus.CounterVec
	BroadcastEvents *prometheus.CounterVec
	WSConnections   prometheus.Gauge
	ReadRetries     prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SessionOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session lifecycle operations by name and outcome.",
		}, []string{"op", "outcome"}),
		BroadcastEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_events_total",
			Help:      "Presence broadcast events by type.",
		}, []string{"event"}),
		WSConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Currently connected websocket clients.",
		}),
		ReadRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_read_retries_total",
			Help:      "Read-after-write retries on session fetch.",
		}),
	}
}

func (m *Metrics) ObserveOp(op, outcome string) {
	if m == nil {
		return
	}
	m.SessionOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveBroadcast(event string) {
	if m == nil {
		return
	}
	m.BroadcastEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.ReadRetries.Inc()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}

// Handler exposes the default registry for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
