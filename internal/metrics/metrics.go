package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lithium_cache_hits_total",
			Help: "Total number of valid cached test results reused.",
		},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lithium_cache_misses_total",
			Help: "Total number of cache misses by invalidation reason.",
		},
		[]string{"reason"},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lithium_cache_evictions_total",
			Help: "Total number of entries evicted by expiry or capacity.",
		},
	)

	CacheInvalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lithium_cache_invalidations_total",
			Help: "Total number of entries invalidated by changed files.",
		},
	)

	CacheTimeSavedSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lithium_cache_time_saved_seconds",
			Help: "Cumulative test execution time avoided by cache hits.",
		},
	)

	JobsScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lithium_jobs_scheduled_total",
			Help: "Total number of test jobs queued by priority.",
		},
		[]string{"priority"},
	)

	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lithium_jobs_completed_total",
			Help: "Total number of test jobs completed by status.",
		},
		[]string{"status"},
	)

	JobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lithium_job_duration_seconds",
			Help:    "Duration of test job executions in seconds.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"status"},
	)

	SchedulerEfficiency = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lithium_scheduler_efficiency",
			Help: "Mean worker utilization of the last parallel run.",
		},
	)

	FlakyTestsDetected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lithium_flaky_tests_detected",
			Help: "Number of flaky tests in the current detection window.",
		},
	)

	RegressionAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lithium_regression_alerts_total",
			Help: "Total number of regression alerts by type and severity.",
		},
		[]string{"type", "severity"},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lithium_pipeline_runs_total",
			Help: "Total number of pipeline runs by status.",
		},
		[]string{"status"},
	)

	PipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lithium_pipeline_duration_seconds",
			Help:    "Wall time of pipeline runs in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

// Register registers all custom lithium metrics with the default
// Prometheus registry.
func Register() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheEvictionsTotal,
		CacheInvalidationsTotal,
		CacheTimeSavedSeconds,
		JobsScheduledTotal,
		JobsCompletedTotal,
		JobDurationSeconds,
		SchedulerEfficiency,
		FlakyTestsDetected,
		RegressionAlertsTotal,
		PipelineRunsTotal,
		PipelineDurationSeconds,
	)
}
