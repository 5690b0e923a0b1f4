// Package metrics holds the prometheus counters for sessions and the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fairbuds"

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler exposing reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics are the QXW counters.
type Metrics struct {
	FramesSent    *prometheus.CounterVec // labels: command
	SendErrors    prometheus.Counter
	Events        *prometheus.CounterVec // labels: kind
	DroppedEvents prometheus.Counter
	LinkLoss      prometheus.Counter
	Connected     prometheus.Gauge

	BridgeClients prometheus.Gauge
	BridgeFrames  *prometheus.CounterVec // labels: direction=to_device|from_device
}

// New registers and returns the metrics. A nil registry gets a fresh one
// without the runtime collectors, which keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "QXW frames written to the transport, by command.",
		}, []string{"command"}),
		SendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Frames the transport failed to write.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound notifications, by event kind.",
		}, []string{"kind"}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because the event buffer was full.",
		}),
		LinkLoss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_loss_total",
			Help:      "Links reported lost by the transport.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the session is connected.",
		}),
		BridgeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_clients",
			Help:      "Websocket clients attached to the bridge.",
		}),
		BridgeFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_frames_total",
			Help:      "Frames relayed by the bridge, by direction.",
		}, []string{"direction"}),
	}
	reg.MustRegister(m.FramesSent, m.SendErrors, m.Events, m.DroppedEvents,
		m.LinkLoss, m.Connected, m.BridgeClients, m.BridgeFrames)
	return m
}

// The helpers below accept a nil receiver so callers can run without
// metrics.

// ObserveSend records one write attempt for command.
func (m *Metrics) ObserveSend(command string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SendErrors.Inc()
		return
	}
	m.FramesSent.WithLabelValues(command).Inc()
}

// ObserveEvent counts one inbound event of kind.
func (m *Metrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind).Inc()
}

// ObserveDropped counts an event that did not fit the buffer.
func (m *Metrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.DroppedEvents.Inc()
}

// ObserveLinkLoss counts a lost link and clears the connected gauge.
func (m *Metrics) ObserveLinkLoss() {
	if m == nil {
		return
	}
	m.LinkLoss.Inc()
	m.Connected.Set(0)
}

// SetConnected updates the connected gauge.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// ObserveBridgeFrame counts one relayed frame.
func (m *Metrics) ObserveBridgeFrame(direction string) {
	if m == nil {
		return
	}
	m.BridgeFrames.WithLabelValues(direction).Inc()
}

// SetBridgeClients updates the attached client gauge.
func (m *Metrics) SetBridgeClients(n int) {
	if m == nil {
		return
	}
	m.BridgeClients.Set(float64(n))
}
