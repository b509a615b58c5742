package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event intake metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_events_total",
			Help: "Total number of events received, by outcome",
		},
		[]string{"outcome"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_event_bytes_total",
			Help: "Total bytes of event payload accepted",
		},
	)

	// Write buffer metrics
	BufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_buffer_depth",
			Help: "Current number of events held in the write buffer",
		},
	)

	BufferCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_buffer_capacity",
			Help: "Configured capacity of the write buffer",
		},
	)

	BufferRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_buffer_rejections_total",
			Help: "Total number of enqueues rejected because the buffer was full",
		},
	)

	// Sink metrics
	WriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_sink_write_duration_seconds",
			Help:    "Duration of sink write attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	WriteRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_sink_write_retries_total",
			Help: "Total number of sink write attempts retried after failure",
		},
	)

	EventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_events_written_total",
			Help: "Total number of events confirmed written to the sink",
		},
	)

	EventsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_events_failed_total",
			Help: "Total number of events dropped after exhausting the retry budget",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"client"},
	)
)
