package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Workflow metrics
	Transitions         *prometheus.CounterVec
	RejectedTransitions *prometheus.CounterVec
	ActionsAppended     *prometheus.CounterVec

	// Sync queue metrics
	SyncQueueDepth        prometheus.Gauge
	SyncSpilled           prometheus.Counter
	SyncPublished         prometheus.Counter
	SyncFailed            prometheus.Counter
	SyncProcessingLatency prometheus.Histogram
	SyncRetries           *prometheus.CounterVec
	SyncCleaned           prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Cache metrics
	CacheRequests *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of committed state transitions",
		}, []string{"machine", "to"}),
		RejectedTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Total number of rejected workflow operations by error code",
		}, []string{"machine", "reason"}),
		ActionsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_log_actions_total",
			Help:      "Total number of actions appended to the decision log",
		}, []string{"type"}),

		SyncQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Current number of unsynchronised actions",
		}),
		SyncSpilled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "spilled_total",
			Help:      "Total number of actions buffered in memory after a storage error",
		}),
		SyncPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "published_total",
			Help:      "Total number of actions delivered and acknowledged",
		}),
		SyncFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "failed_total",
			Help:      "Total number of actions whose delivery failed after retries",
		}),
		SyncProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "processing_duration_seconds",
			Help:      "Time spent draining one batch of pending actions",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		SyncRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "retry_attempts_total",
			Help:      "Total number of delivery retries",
		}, []string{"action_type"}),
		SyncCleaned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "cleaned_total",
			Help:      "Total number of synced actions removed by retention cleanup",
		}),

		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by cache and result",
		}, []string{"cache", "result"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
	}
}

// New returns unregistered metrics.
func New(namespace string) *Metrics {
	return NewMetrics(namespace, nil)
}
