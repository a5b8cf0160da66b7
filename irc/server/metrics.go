package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/presbrey/ircd/irc"
)

// Metrics holds the Prometheus collectors for one server. A nil *Metrics
// records nothing.
type Metrics struct {
	// Registry is the registry every collector below is registered on
	Registry *prometheus.Registry

	Sessions         prometheus.Gauge
	Channels         prometheus.Gauge
	SessionsTotal    prometheus.Counter
	NickChanges      prometheus.Counter
	MessagesReceived *prometheus.CounterVec
	MessagesSent     prometheus.Counter
	ProtocolErrors   *prometheus.CounterVec
	Events           *prometheus.CounterVec
}

// NewMetrics creates collectors on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_sessions",
			Help: "Number of live client sessions",
		}),
		Channels: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ircd_channels",
			Help: "Number of channels ever created",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ircd_sessions_total",
			Help: "Total number of client sessions accepted",
		}),
		NickChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "ircd_nick_changes_total",
			Help: "Total number of nickname renames",
		}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_messages_received_total",
			Help: "Messages received from clients by command",
		}, []string{"command"}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ircd_messages_sent_total",
			Help: "Messages written to clients",
		}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_protocol_errors_total",
			Help: "Error replies sent to clients by numeric and kind",
		}, []string{"code", "kind"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ircd_events_total",
			Help: "Controller lifecycle events by kind",
		}, []string{"kind"}),
	}
}

// Observe updates the gauges from a controller event
func (m *Metrics) Observe(ev Event) error {
	m.Events.WithLabelValues(ev.Kind.String()).Inc()

	switch ev.Kind {
	case SessionCreated:
		m.Sessions.Inc()
		m.SessionsTotal.Inc()
	case SessionDestroyed:
		m.Sessions.Dec()
	case ChannelCreated:
		m.Channels.Inc()
	case NicknameChanged:
		if !ev.OldNick.IsZero() {
			m.NickChanges.Inc()
		}
	}
	return nil
}

// received counts an inbound command. Commands without a handler share
// one label value so clients cannot grow the label set.
func (m *Metrics) received(command string, known bool) {
	if m == nil {
		return
	}
	if !known {
		command = "UNKNOWN"
	}
	m.MessagesReceived.WithLabelValues(command).Inc()
}

func (m *Metrics) sent(n int) {
	if m == nil {
		return
	}
	m.MessagesSent.Add(float64(n))
}

func (m *Metrics) protocolError(err *irc.Error) {
	if m == nil {
		return
	}
	m.ProtocolErrors.WithLabelValues(err.Code.String(), err.Kind.String()).Inc()
}
