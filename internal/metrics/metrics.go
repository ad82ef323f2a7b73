package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rockgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rockgate_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rockgate_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Database façade metrics
	DBOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rockgate_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	OpenDatabases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rockgate_open_databases",
			Help: "Number of currently open database handles",
		},
	)

	ActiveResources = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rockgate_active_resources",
			Help: "Number of live tracked resources (iterators, batches, feeds)",
		},
		[]string{"kind"},
	)

	// Update feed metrics
	FeedBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rockgate_feed_batches_total",
			Help: "Total number of change batches delivered to update feeds",
		},
	)

	FeedSequenceGaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rockgate_feed_sequence_gaps_total",
			Help: "Total number of sequence gaps detected on update feeds",
		},
	)

	// Query metrics
	QueryRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rockgate_query_rows",
			Help:    "Number of rows returned per snapshot query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// System metrics
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rockgate_build_info",
			Help: "Build information about Rockgate",
		},
		[]string{"version", "go_version"},
	)
)
