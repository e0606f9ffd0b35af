package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a server.
type Metrics struct {
	sessions       prometheus.Gauge
	sessionsTotal  prometheus.Counter
	connections    prometheus.Gauge
	resumes        *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	bytesSent      prometheus.Counter
	bytesReceived  prometheus.Counter
	events         *prometheus.CounterVec
}

// NewMetrics creates the server collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	const ns, sub = "villain", "server"
	return &Metrics{
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sessions",
			Help: "Number of live sessions, attached or not.",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sessions_total",
			Help: "Total number of sessions created.",
		}),
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "connections",
			Help: "Number of open WebSocket connections.",
		}),
		resumes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "resumes_total",
			Help: "Reconnects by outcome: replayed, remounted or expired.",
		}, []string{"outcome"}),
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "frames_sent_total",
			Help: "Frames sent to clients by type.",
		}, []string{"type"}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "frames_received_total",
			Help: "Frames received from clients by type.",
		}, []string{"type"}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sent_bytes_total",
			Help: "Bytes written to WebSocket connections.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "received_bytes_total",
			Help: "Bytes read from WebSocket connections.",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "events_total",
			Help: "Client events by outcome.",
		}, []string{"outcome"}),
	}
}
