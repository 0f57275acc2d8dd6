package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	wfsFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfs_fetch_total",
			Help: "WFS GetFeature fetches by outcome class.",
		},
		[]string{"outcome"},
	)

	clickOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "map_click_outcomes_total",
			Help: "Completed click query cycles by outcome.",
		},
		[]string{"outcome"},
	)

	liveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "map_sessions_live",
			Help: "Number of map sessions held in the registry.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncFetchOutcome(outcome string) {
	wfsFetchTotal.WithLabelValues(outcome).Inc()
}

func IncClickOutcome(outcome string) {
	clickOutcomes.WithLabelValues(outcome).Inc()
}

func SetLiveSessions(n int) {
	liveSessions.Set(float64(n))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
