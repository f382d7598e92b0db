package pair

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the instruments registered by a pair.
type Metrics struct {
	operations    *prometheus.CounterVec
	opFailures    *prometheus.CounterVec
	swapDuration  prometheus.Histogram
	ticksCrossed  prometheus.Counter
	oracleQueries prometheus.Counter
}

// NewMetrics registers the pair's instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pair_operations_total",
			Help: "Completed pair operations by type.",
		}, []string{"op"}),
		opFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pair_operation_failures_total",
			Help: "Failed pair operations by type.",
		}, []string{"op"}),
		swapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pair_swap_duration_seconds",
			Help:    "Wall time spent inside the swap loop.",
			Buckets: prometheus.DefBuckets,
		}),
		ticksCrossed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pair_ticks_crossed_total",
			Help: "Initialized ticks crossed by swaps.",
		}),
		oracleQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pair_oracle_queries_total",
			Help: "Observe calls answered.",
		}),
	}
	reg.MustRegister(m.operations, m.opFailures, m.swapDuration, m.ticksCrossed, m.oracleQueries)
	return m
}
