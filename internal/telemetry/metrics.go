// Package telemetry provides logging setup and Prometheus metrics for LaunchPal.
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started in cmd/server:
//
//	GET http://<host>:<LAUNCHPAL_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// The endpoint is not part of the gin router. HTTP metrics are labelled with
// the route template (c.FullPath()) rather than the raw URL so product and
// launch ids do not explode label cardinality.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Error rate (%): sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Usage metering.
//
// UsageRecordsTotal counts every persisted usage record by endpoint (for
// example "products.create"). QuotaDenialsTotal counts calls rejected because
// the monthly request limit was exceeded.
var (
	UsageRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpal_usage_records_total",
			Help: "Total number of metered calls recorded, by endpoint.",
		},
		[]string{"endpoint"},
	)

	QuotaDenialsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "launchpal_quota_denials_total",
			Help: "Total number of calls rejected because the monthly request quota was exceeded.",
		},
	)
)

// Platform adapter metrics. Outcome is "success" or "error".
//
// Example PromQL queries:
//   - Product Hunt error ratio: sum(rate(launchpal_platform_requests_total{platform="producthunt",outcome="error"}[15m])) / sum(rate(launchpal_platform_requests_total{platform="producthunt"}[15m]))
var (
	PlatformRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpal_platform_requests_total",
			Help: "Total number of outbound launch platform API calls, by platform, operation, and outcome.",
		},
		[]string{"platform", "operation", "outcome"},
	)

	PlatformRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpal_platform_request_duration_seconds",
			Help:    "Latency of outbound launch platform API calls, by platform and operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"platform", "operation"},
	)
)

// LaunchTransitionsTotal counts launch status changes by target status.
var LaunchTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "launchpal_launch_transitions_total",
		Help: "Total number of launch status transitions, by target status.",
	},
	[]string{"to"},
)

// OAuthGrantsTotal counts token endpoint requests by grant type and outcome.
var OAuthGrantsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "launchpal_oauth_grants_total",
		Help: "Total number of OAuth token requests, by grant type and outcome.",
	},
	[]string{"grant_type", "outcome"},
)

// BackgroundJobRunsTotal counts background job cycles by job name and outcome.
var BackgroundJobRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "launchpal_background_job_runs_total",
		Help: "Total number of background job cycles, by job and outcome.",
	},
	[]string{"job", "outcome"},
)

// DBOpenConnections tracks the open connections held by the sql.DB pool. It is
// sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// Outcome returns the "success"/"error" label value for err.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// StartDBStatsCollector samples the pool every 30 seconds until the database
// becomes unreachable, which happens once main closes it on shutdown.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
