package adminapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ambient Prometheus series this stack exposes.
// Nothing in pkg/eventloop, pkg/session, pkg/subscription or pkg/pubsub
// imports prometheus directly; a Metrics value is updated from the
// outside (by a periodic EventLoop housekeeping callback, see
// cmd/uaserver) so those packages stay free of an observability
// dependency of their own, mirroring how the teacher keeps metric
// exposition out of its domain packages too.
type Metrics struct {
	Registry *prometheus.Registry

	EventLoopPending      prometheus.Gauge
	SecureChannelCount    prometheus.Gauge
	SessionCount          prometheus.Gauge
	SubscriptionPublishes prometheus.Counter
	SubscriptionMisses    prometheus.Counter
	PubSubSends           prometheus.Counter
}

// NewMetrics registers every series against a fresh Registry (not the
// global default one, so multiple Servers in the same process — as in
// integration tests — don't collide on duplicate registration).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		EventLoopPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uacore",
			Subsystem: "eventloop",
			Name:      "pending_callbacks",
			Help:      "Number of timed/cyclic callbacks currently scheduled.",
		}),
		SecureChannelCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uacore",
			Subsystem: "securechannel",
			Name:      "open_channels",
			Help:      "Number of SecureChannels currently open.",
		}),
		SessionCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "uacore",
			Subsystem: "session",
			Name:      "active_sessions",
			Help:      "Number of Sessions currently active.",
		}),
		SubscriptionPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uacore",
			Subsystem: "subscription",
			Name:      "publish_cycles_total",
			Help:      "Total PublishCycle invocations across all Subscriptions.",
		}),
		SubscriptionMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uacore",
			Subsystem: "subscription",
			Name:      "publish_misses_total",
			Help:      "Total PublishingInterval cycles for which no PublishRequest was available.",
		}),
		PubSubSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uacore",
			Subsystem: "pubsub",
			Name:      "sends_total",
			Help:      "Total NetworkMessages sent across all WriterGroups.",
		}),
	}

	reg.MustRegister(
		m.EventLoopPending,
		m.SecureChannelCount,
		m.SessionCount,
		m.SubscriptionPublishes,
		m.SubscriptionMisses,
		m.PubSubSends,
	)
	return m
}
