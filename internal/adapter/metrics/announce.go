package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnnounceMetrics tracks the two delivery halves of a content announcement.
type AnnounceMetrics struct {
	Announcements     *prometheus.CounterVec
	HintDeliveries    prometheus.Counter
	ChangeLogFailures prometheus.Counter
	RelayFailures     prometheus.Counter
}

func NewAnnounceMetrics(reg prometheus.Registerer) *AnnounceMetrics {
	m := &AnnounceMetrics{
		Announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announcements_total",
			Help:      "Total number of content announcements, by event kind.",
		}, []string{"kind"}),
		HintDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announce_hint_deliveries_total",
			Help:      "Total number of push hints queued to local clients.",
		}),
		ChangeLogFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announce_changelog_failures_total",
			Help:      "Total number of announcements that could not be appended to the change log.",
		}),
		RelayFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "announce_relay_failures_total",
			Help:      "Total number of announcements that could not be published to other instances.",
		}),
	}

	reg.MustRegister(m.Announcements, m.HintDeliveries, m.ChangeLogFailures, m.RelayFailures)
	return m
}
