package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feelback_queue_depth",
			Help: "Number of events waiting in the delivery queue, including in-flight batches",
		},
	)

	EventsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelback_events_enqueued_total",
			Help: "Total number of events enqueued by type",
		},
		[]string{"type"},
	)

	EventsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feelback_events_sent_total",
			Help: "Total number of events acknowledged by the collector",
		},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feelback_events_dropped_total",
			Help: "Total number of events dropped because the queue was full",
		},
	)

	BatchSendFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feelback_batch_send_failures_total",
			Help: "Total number of failed batch sends",
		},
	)

	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feelback_persist_failures_total",
			Help: "Total number of failed queue snapshot writes",
		},
	)

	// Transport metrics
	SendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feelback_send_duration_seconds",
			Help:    "Collector request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "status"},
	)

	// Frustration metrics
	FrustrationScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feelback_frustration_score",
			Help: "Current frustration score (0-100)",
		},
	)

	RageTaps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feelback_rage_taps_total",
			Help: "Total number of detected rage taps",
		},
	)

	LevelChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelback_frustration_level_changes_total",
			Help: "Total number of frustration level transitions by new level",
		},
		[]string{"level"},
	)

	// Review and intervention metrics
	ReviewPrompts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelback_review_prompts_total",
			Help: "Total number of review prompt outcomes by response",
		},
		[]string{"response"},
	)

	Interventions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feelback_interventions_total",
			Help: "Total number of intervention outcomes by response",
		},
		[]string{"response"},
	)
)

func init() {
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(EventsEnqueued)
	prometheus.MustRegister(EventsSent)
	prometheus.MustRegister(EventsDropped)
	prometheus.MustRegister(BatchSendFailures)
	prometheus.MustRegister(PersistFailures)
	prometheus.MustRegister(SendDuration)
	prometheus.MustRegister(FrustrationScore)
	prometheus.MustRegister(RageTaps)
	prometheus.MustRegister(LevelChanges)
	prometheus.MustRegister(ReviewPrompts)
	prometheus.MustRegister(Interventions)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
