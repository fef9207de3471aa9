/*
@Author: Lzww
@LastEditTime: 2025-10-02 22:58:00
@Description: Prometheus counters for queue observability
@Language: Go 1.23.4
*/

package rtpafec

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for one Queue: every countable
// event in the reassembly pipeline (shards recovered, blocks reused,
// discontinuities emitted...) gets a counter.
type Metrics struct {
	blocksAllocated    prometheus.Counter
	blocksReused       prometheus.Counter
	blocksRecovered    prometheus.Counter
	blocksTimedOut     prometheus.Counter
	shardsRecovered    prometheus.Counter
	recoveryFailures   prometheus.Counter
	discontinuities    prometheus.Counter
	oosEvents          prometheus.Counter
	incompatibleServer prometheus.Gauge
}

// NewMetrics constructs a Metrics and, if reg is non-nil, registers every
// collector with it. Passing a nil registry is valid and yields metrics that
// simply aren't scraped - useful for tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	namespace := "rtpafec"
	m := &Metrics{
		blocksAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_allocated_total",
			Help: "FEC blocks allocated fresh (not satisfied by the free cache).",
		}),
		blocksReused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_reused_total",
			Help: "FEC blocks satisfied from the free cache.",
		}),
		blocksRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_recovered_total",
			Help: "Blocks completed via Reed-Solomon reconstruction.",
		}),
		blocksTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_timed_out_total",
			Help: "Blocks declared lost and emitted with discontinuity placeholders.",
		}),
		shardsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "shards_recovered_total",
			Help: "Individual data shards synthesised by FEC recovery.",
		}),
		recoveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "recovery_failures_total",
			Help: "Reed-Solomon reconstruction attempts that failed despite sufficient shards.",
		}),
		discontinuities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "discontinuities_total",
			Help: "Placeholder packets emitted for shards that never arrived.",
		}),
		oosEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "oos_events_total",
			Help: "Out-of-sequence packet arrivals observed.",
		}),
		incompatibleServer: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "incompatible_server",
			Help: "1 once a block size mismatch has permanently disabled FEC for this session.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.blocksAllocated, m.blocksReused, m.blocksRecovered, m.blocksTimedOut,
			m.shardsRecovered, m.recoveryFailures, m.discontinuities, m.oosEvents,
			m.incompatibleServer,
		)
	}
	return m
}
