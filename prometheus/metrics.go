package prometheus

import (
	"time"

	"automation-service/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Engine metrics
	WorkflowRunsTotal    *prometheus.CounterVec
	StepExecutionsTotal  *prometheus.CounterVec
	TriggerDispatchTotal *prometheus.CounterVec
	TriggerMatchesTotal  *prometheus.CounterVec
	DedupSkipsTotal      prometheus.Counter
	WorkflowRunDuration  prometheus.Histogram
	OverdueSweepDuration prometheus.Histogram
)

// InitMetrics initializes Prometheus metrics with configuration.
func InitMetrics(cfg *config.Config) {
	prefix := cfg.Metrics.Prefix

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	WorkflowRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_workflow_runs_total",
			Help: "Total number of workflow runs by terminal status",
		},
		[]string{"status"},
	)

	StepExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_step_executions_total",
			Help: "Total number of step executions",
		},
		[]string{"step_type", "status"},
	)

	TriggerDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_trigger_dispatches_total",
			Help: "Total number of trigger dispatch calls",
		},
		[]string{"trigger_type"},
	)

	TriggerMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_trigger_matches_total",
			Help: "Total number of workflows matched by a trigger",
		},
		[]string{"trigger_type"},
	)

	DedupSkipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_dedup_skips_total",
			Help: "Total number of cron dispatches skipped by the dedup check",
		},
	)

	WorkflowRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_workflow_run_duration_seconds",
			Help:    "Duration of workflow runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	OverdueSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_overdue_sweep_duration_seconds",
			Help:    "Duration of overdue invoice sweeps in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
}

// The Record helpers are nil-safe so engine code can run in tests without
// InitMetrics having been called.

// RecordWorkflowRun increments the run counter for a terminal status.
func RecordWorkflowRun(status string) {
	if WorkflowRunsTotal != nil {
		WorkflowRunsTotal.WithLabelValues(status).Inc()
	}
}

// RecordStepExecution increments the step execution counter.
func RecordStepExecution(stepType, status string) {
	if StepExecutionsTotal != nil {
		StepExecutionsTotal.WithLabelValues(stepType, status).Inc()
	}
}

// RecordTriggerDispatch increments the dispatch counter.
func RecordTriggerDispatch(triggerType string) {
	if TriggerDispatchTotal != nil {
		TriggerDispatchTotal.WithLabelValues(triggerType).Inc()
	}
}

// RecordTriggerMatch increments the match counter.
func RecordTriggerMatch(triggerType string) {
	if TriggerMatchesTotal != nil {
		TriggerMatchesTotal.WithLabelValues(triggerType).Inc()
	}
}

// RecordDedupSkip increments the dedup skip counter.
func RecordDedupSkip() {
	if DedupSkipsTotal != nil {
		DedupSkipsTotal.Inc()
	}
}

// ObserveRunDuration records how long a workflow run took.
func ObserveRunDuration(d time.Duration) {
	if WorkflowRunDuration != nil {
		WorkflowRunDuration.Observe(d.Seconds())
	}
}

// ObserveSweepDuration records how long an overdue sweep took.
func ObserveSweepDuration(d time.Duration) {
	if OverdueSweepDuration != nil {
		OverdueSweepDuration.Observe(d.Seconds())
	}
}
