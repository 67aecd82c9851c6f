package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "census_dashboard_build_info",
			Help: "Build information of the census dashboard",
		},
		[]string{"version"},
	)

	// Dataset metrics
	RowsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "census_dashboard_rows_loaded",
			Help: "Number of rows held by the dataset store",
		},
	)

	RowsDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "census_dashboard_rows_dropped",
			Help: "Number of input rows dropped for a null dimension",
		},
	)

	// Binding metrics
	BindingRecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "census_dashboard_binding_recompute_total",
			Help: "Total number of binding recomputations",
		},
		[]string{"binding", "status"},
	)

	BindingRecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "census_dashboard_binding_recompute_duration_seconds",
			Help:    "Duration of binding recomputations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		},
		[]string{"binding"},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "census_dashboard_sessions_active",
			Help: "Number of live dashboard sessions",
		},
	)
)
