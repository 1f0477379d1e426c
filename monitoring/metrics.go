// Package monitoring provides metrics, tracing and alerting for the job
// import backend
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Import pipeline metrics
	importRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_runs_total",
			Help: "Total number of import job attempts by terminal status",
		},
		[]string{"status"},
	)

	importRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "import_run_duration_seconds",
			Help:    "Duration of import job attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	postingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "import_postings_total",
			Help: "Postings processed by upsert outcome",
		},
		[]string{"outcome"},
	)

	// Feed fetch metrics
	feedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_total",
			Help: "Total number of feed fetch attempts",
		},
		[]string{"status"},
	)

	feedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Duration of feed fetch operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// Worker pool metrics
	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "import_active_workers",
			Help: "Number of running import workers",
		},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "import_queue_depth",
			Help: "Jobs in the import queue by state",
		},
		[]string{"state"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordImportRun records one terminal import job attempt.
func RecordImportRun(status string, durationSeconds float64) {
	importRunsTotal.WithLabelValues(status).Inc()
	importRunDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordPostings records upsert outcomes for one run.
func RecordPostings(created, updated, failed int) {
	postingsTotal.WithLabelValues("created").Add(float64(created))
	postingsTotal.WithLabelValues("updated").Add(float64(updated))
	postingsTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordFeedFetch records one feed fetch attempt.
func RecordFeedFetch(status string, durationSeconds float64) {
	feedFetchTotal.WithLabelValues(status).Inc()
	feedFetchDuration.WithLabelValues(status).Observe(durationSeconds)
}

// UpdateActiveWorkers sets the running worker count gauge.
func UpdateActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}

// UpdateQueueDepth sets the per-state queue depth gauges.
func UpdateQueueDepth(waiting, active, delayed, dead int64) {
	queueDepth.WithLabelValues("waiting").Set(float64(waiting))
	queueDepth.WithLabelValues("active").Set(float64(active))
	queueDepth.WithLabelValues("delayed").Set(float64(delayed))
	queueDepth.WithLabelValues("dead").Set(float64(dead))
}

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}
