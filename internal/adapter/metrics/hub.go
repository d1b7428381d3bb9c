package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics covers the push channel registry.
type HubMetrics struct {
	ActiveConnections   *prometheus.GaugeVec
	MessagesSent        *prometheus.CounterVec
	SlowClientsEvicted  prometheus.Counter
	RejectedConnections prometheus.Counter
	MalformedMessages   prometheus.Counter
}

func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		ActiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "active_connections",
			Help:      "Number of registered push connections, by client role.",
		}, []string{"role"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_sent_total",
			Help:      "Total number of messages queued to clients, by message type.",
		}, []string{"type"}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "slow_clients_evicted_total",
			Help:      "Total number of clients dropped because their send buffer was full.",
		}),
		RejectedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "rejected_connections_total",
			Help:      "Total number of connections refused at the connection cap.",
		}),
		MalformedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "malformed_messages_total",
			Help:      "Total number of inbound messages that could not be parsed.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.MessagesSent, m.SlowClientsEvicted, m.RejectedConnections, m.MalformedMessages)
	return m
}
