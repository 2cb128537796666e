// Package observability exposes the Prometheus collectors of the signaling server.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat_signal"

type Metrics struct {
	registry *prometheus.Registry

	ConnectedUsers   prometheus.Gauge
	InboundEvents    *prometheus.CounterVec
	RejectedEvents   *prometheus.CounterVec
	OutboundEvents   *prometheus.CounterVec
	OutboundDropped  prometheus.Counter
	MessagesRelayed  prometheus.Counter
	CallTransitions  *prometheus.CounterVec
	ActiveCalls      prometheus.Gauge
	PresenceMessages prometheus.Counter
}

// NewMetrics builds every collector on a dedicated registry so tests can
// create as many instances as they need.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ConnectedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Users currently present in the connection registry.",
		}),
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_events_total",
			Help:      "Events received from clients, by event name.",
		}, []string{"event"}),
		RejectedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_events_total",
			Help:      "Inbound events rejected, by event name and error code.",
		}, []string{"event", "code"}),
		OutboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_events_total",
			Help:      "Events queued for delivery to clients, by event name.",
		}, []string{"event"}),
		OutboundDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_dropped_total",
			Help:      "Events dropped because the receiving connection was full or closed.",
		}),
		MessagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Chat messages persisted and fanned out.",
		}),
		CallTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_total",
			Help:      "Call state machine transitions, by target phase.",
		}, []string{"phase"}),
		ActiveCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Call sessions that are ringing or ongoing.",
		}),
		PresenceMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_total",
			Help:      "Presence events pushed to peers.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectedUsers,
		m.InboundEvents,
		m.RejectedEvents,
		m.OutboundEvents,
		m.OutboundDropped,
		m.MessagesRelayed,
		m.CallTransitions,
		m.ActiveCalls,
		m.PresenceMessages,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
