package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream service Prometheus metrics. Services: "embedding", "matching", "warehouse".
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casapi",
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream service requests",
		},
		[]string{"service", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casapi",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream service request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"service"},
	)

	CellsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casapi",
			Name:      "cells_processed_total",
			Help:      "Total query cells processed per workflow method",
		},
		[]string{"method", "model"},
	)
)

var upstreamMetricsRegistered bool

// RegisterUpstreamMetrics registers upstream Prometheus metrics. Must be called once from main.
func RegisterUpstreamMetrics() {
	if upstreamMetricsRegistered {
		return
	}
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(CellsProcessedTotal)
	upstreamMetricsRegistered = true
}
