package miner

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics gauges/counters exported by a BlockFactory's PoW search, grounded
// on the Prometheus wiring arejula27-p2pool-go registers for its own share
// dispatcher.
var (
	hashesSearched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "coraxum",
		Subsystem: "miner",
		Name:      "hashes_searched_total",
		Help:      "Total nonces tried across all Mine calls.",
	})
	bestHashLeadingZeros = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "coraxum",
		Subsystem: "miner",
		Name:      "best_hash_leading_hex_zeros",
		Help:      "Leading hex zero digits of the best hash seen by the most recent Mine call.",
	})
)

func init() {
	prometheus.MustRegister(hashesSearched, bestHashLeadingZeros)
}

// leadingHexZeros counts the leading '0' hex digits of h.
func leadingHexZeros(h string) int {
	n := 0
	for n < len(h) && h[n] == '0' {
		n++
	}
	return n
}
