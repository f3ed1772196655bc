package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of topology runs.
type Metrics struct {
	FactsRead prometheus.Counter
	RowsIn    *prometheus.CounterVec
	RowsOut   *prometheus.CounterVec
	Runs      *prometheus.CounterVec
	Duration  prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factsRead := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reteflow_facts_read_total",
		Help: "Total facts emitted by the spout",
	})

	rowsIn := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reteflow_rows_in_total",
		Help: "Total rows received per topology node",
	}, []string{"node"})

	rowsOut := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reteflow_rows_out_total",
		Help: "Total rows emitted per topology node",
	}, []string{"node"})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reteflow_runs_total",
		Help: "Topology runs by outcome",
	}, []string{"status"})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reteflow_run_duration_seconds",
		Help:    "Wall time of topology runs",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(factsRead, rowsIn, rowsOut, runs, duration)

	return &Metrics{
		FactsRead: factsRead,
		RowsIn:    rowsIn,
		RowsOut:   rowsOut,
		Runs:      runs,
		Duration:  duration,
	}
}
