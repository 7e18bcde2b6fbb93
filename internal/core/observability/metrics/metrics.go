// Package metrics exposes the session counters as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "multinet"

// Metrics groups every collector of one session.
type Metrics struct {
	ClockBroadcasts  prometheus.Counter
	ClockResyncs     prometheus.Counter
	InboundMessages  *prometheus.CounterVec
	DroppedMessages  *prometheus.CounterVec
	ConnectedPeers   prometheus.Gauge
	SpawnedEntities  prometheus.Gauge
	ValueReads       *prometheus.CounterVec
	PublishedSamples prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ClockBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clock",
			Name:      "broadcasts_total",
			Help:      "Server time snapshots broadcast by the authoritative peer.",
		}),
		ClockResyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "clock",
			Name:      "resyncs_total",
			Help:      "Hard resyncs of the follower clock.",
		}),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "inbound_messages_total",
			Help:      "Messages applied at tick boundaries, by type.",
		}, []string{"type"}),
		DroppedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "dropped_messages_total",
			Help:      "Messages that could not be applied, by reason.",
		}, []string{"reason"}),
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connected_peers",
			Help:      "Currently connected peers.",
		}),
		SpawnedEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "spawned_entities",
			Help:      "Currently spawned replicated entities.",
		}),
		ValueReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lagcomp",
			Name:      "value_reads_total",
			Help:      "Replicated value reads, by the branch that produced the value.",
		}, []string{"mode"}),
		PublishedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "published_samples_total",
			Help:      "Value updates sent by the authoritative peer.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ClockBroadcasts,
			m.ClockResyncs,
			m.InboundMessages,
			m.DroppedMessages,
			m.ConnectedPeers,
			m.SpawnedEntities,
			m.ValueReads,
			m.PublishedSamples,
		)
	}
	return m
}
