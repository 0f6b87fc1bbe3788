package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Loop metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xnostr_cycles_total",
			Help: "Total bridge cycles by result",
		},
		[]string{"result"}, // "ok", "fetch_error", "halted", "skipped"
	)

	PostsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xnostr_posts_processed_total",
			Help: "Total source posts handed to the composer",
		},
	)

	PostsUndelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xnostr_posts_undelivered_total",
			Help: "Total posts no relay accepted",
		},
	)

	LoopState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xnostr_loop_state",
			Help: "Current loop state (0 idle, 1 fetching, 2 processing, 3 halted)",
		},
	)

	// Relay metrics
	RelayPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xnostr_relay_publish_total",
			Help: "Total relay publish attempts by outcome",
		},
		[]string{"relay", "status"},
	)

	RelayPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xnostr_relay_publish_duration_seconds",
			Help:    "Relay publish latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"relay"},
	)

	// Media metrics
	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xnostr_media_uploads_total",
			Help: "Total media upload attempts by host",
		},
		[]string{"host", "result"}, // "ok" or "failed"
	)

	MediaDownloadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "xnostr_media_download_failures_total",
			Help: "Total attachment downloads that failed",
		},
	)

	// HTTP metrics for the health server
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xnostr_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
