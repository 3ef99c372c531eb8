package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdf_query_executions_total",
			Help: "Total number of SQL executions by engine and outcome.",
		},
		[]string{"engine", "status"},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdf_query_duration_seconds",
			Help:    "End-to-end SQL execution latency including dataset load.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"engine"},
	)
	queryResultRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdf_query_result_rows",
			Help:    "Number of rows returned per successful execution.",
			Buckets: prometheus.ExponentialBuckets(1, 10, 7),
		},
		[]string{"engine"},
	)
	modelListingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdf_model_listings_total",
			Help: "Total number of provider model enumerations by outcome.",
		},
		[]string{"provider", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		queryExecutionsTotal,
		queryDurationSeconds,
		queryResultRows,
		modelListingsTotal,
	)
}

func ObserveQuery(engine string, rows int, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	queryExecutionsTotal.WithLabelValues(engine, status).Inc()
	queryDurationSeconds.WithLabelValues(engine).Observe(elapsed.Seconds())
	if err == nil {
		queryResultRows.WithLabelValues(engine).Observe(float64(rows))
	}
}

func ObserveModelListing(provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	modelListingsTotal.WithLabelValues(provider, status).Inc()
}
