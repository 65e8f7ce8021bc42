// Package metrics exposes the node's Prometheus surface: round outcomes,
// signature collection, known peers, and chain height.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge the node publishes.
type Metrics struct {
	RoundsProposed    prometheus.Counter
	RoundsFinalized   prometheus.Counter
	RoundsAbandoned   prometheus.Counter
	SignaturesTotal   prometheus.Counter
	PeersKnown        prometheus.Gauge
	BlockHeight       prometheus.Gauge
}

// New registers and returns the node's metrics against the default
// Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		RoundsProposed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "libreledger", Name: "rounds_proposed_total", Help: "Mining rounds proposed by this node.",
		}),
		RoundsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "libreledger", Name: "rounds_finalized_total", Help: "Mining rounds finalized by this node.",
		}),
		RoundsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "libreledger", Name: "rounds_abandoned_total", Help: "Mining rounds abandoned by timeout or preemption.",
		}),
		SignaturesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "libreledger", Name: "signatures_collected_total", Help: "Signatures collected across all proposals.",
		}),
		PeersKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "libreledger", Name: "peers_known", Help: "Peers currently in the directory.",
		}),
		BlockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "libreledger", Name: "block_height", Help: "Local chain height.",
		}),
	}
	prometheus.MustRegister(m.RoundsProposed, m.RoundsFinalized, m.RoundsAbandoned, m.SignaturesTotal, m.PeersKnown, m.BlockHeight)
	return m
}
