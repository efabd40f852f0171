package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clickhub"

// Inbound message outcomes, used as the "kind" label of MessagesReceived.
const (
	KindClick   = "click"
	KindPing    = "ping"
	KindIgnored = "ignored"
	KindInvalid = "invalid"
)

// Metrics holds every collector the server updates.
type Metrics struct {
	// ConnectionsCurrent is the number of registered WebSocket connections.
	ConnectionsCurrent prometheus.Gauge

	// ConnectionsTotal counts established WebSocket connections.
	ConnectionsTotal prometheus.Counter

	// HandshakeFailures counts HTTP requests that failed the WebSocket upgrade.
	HandshakeFailures prometheus.Counter

	// Clicks counts processed click events. It tracks the total_clicks counter.
	Clicks prometheus.Counter

	// MessagesReceived counts inbound data frames by outcome kind.
	MessagesReceived *prometheus.CounterVec

	// MessagesSent counts messages enqueued to clients by message type.
	MessagesSent *prometheus.CounterVec

	// DeliveryFailures counts enqueues rejected by a closing connection.
	DeliveryFailures prometheus.Counter

	// SessionDuration observes how long sessions stay established.
	SessionDuration prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsCurrent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_current",
			Help:      "Number of currently registered WebSocket connections",
		}),
		ConnectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total WebSocket connections established",
		}),
		HandshakeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Total failed WebSocket upgrade attempts",
		}),
		Clicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Total click events processed",
		}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages by outcome (click, ping, ignored, invalid)",
		}, []string{"kind"}),
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages enqueued to clients by message type",
		}, []string{"type"}),
		DeliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Enqueues rejected because the recipient was tearing down",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Lifetime of established WebSocket sessions",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 4 * 3600},
		}),
	}
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
