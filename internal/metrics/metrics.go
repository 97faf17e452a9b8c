// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// JobsActive is the number of jobs currently held by the registry.
	JobsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "txsched_jobs_active",
			Help: "Number of scheduled jobs currently registered",
		},
		[]string{"kind"},
	)

	// JobsScheduledTotal counts accepted schedule requests by job kind.
	JobsScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsched_jobs_scheduled_total",
			Help: "Total number of accepted schedule requests",
		},
		[]string{"kind"},
	)

	// JobsCompletedTotal counts jobs that reached their terminal transition.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsched_jobs_completed_total",
			Help: "Total number of jobs removed after finishing",
		},
		[]string{"kind"},
	)

	// DispatchesTotal counts dispatch attempts by job kind and outcome.
	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txsched_dispatches_total",
			Help: "Total number of dispatch attempts to the processing queue",
		},
		[]string{"kind", "status"},
	)

	// DispatchDuration tracks how long the queue takes to acknowledge.
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "txsched_dispatch_duration_seconds",
			Help:    "Time from dispatch to queue acknowledgment in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// FiringsSkippedTotal counts periodic firings that fell before the job's start time.
	FiringsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "txsched_firings_skipped_total",
			Help: "Total number of recurring firings skipped before the start time",
		},
	)
)

var (
	uuidPathSegment = regexp.MustCompile(`/(?:[a-z]+-)?[0-9a-fA-F]{8}-[0-9a-fA-F-]{27}(/|$)`)
	initOnce        sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestDuration, RequestTotal,
			JobsActive, JobsScheduledTotal, JobsCompletedTotal,
			DispatchesTotal, DispatchDuration, FiringsSkippedTotal,
		)
	})
}

// NormalizePath reduces cardinality by replacing transaction and dispatch ids
// with {id}. E.g. /api/jobs/0b6f…c2 -> /api/jobs/{id}.
func NormalizePath(path string) string {
	return uuidPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// JobScheduled records a newly registered job.
func JobScheduled(kind string) {
	JobsScheduledTotal.WithLabelValues(kind).Inc()
	JobsActive.WithLabelValues(kind).Inc()
}

// JobRemoved records a job leaving the registry. completed is false when the
// job was dropped because the service stopped or it could not be armed.
func JobRemoved(kind string, completed bool) {
	JobsActive.WithLabelValues(kind).Dec()
	if completed {
		JobsCompletedTotal.WithLabelValues(kind).Inc()
	}
}

// RecordDispatch records one dispatch attempt.
func RecordDispatch(kind, status string, durationSeconds float64) {
	DispatchesTotal.WithLabelValues(kind, status).Inc()
	DispatchDuration.Observe(durationSeconds)
}

// FiringSkipped records a periodic firing that happened before the start time.
func FiringSkipped() {
	FiringsSkippedTotal.Inc()
}
