// Package metrics holds the Prometheus collectors shared by the HTTP API, the
// resolution engine and the job workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolutions counts policy outcomes per metric and resolution state.
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_resolutions_total",
			Help: "Total number of resolved queries by metric and state",
		},
		[]string{"metric", "state"},
	)

	FitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_fit_failures_total",
			Help: "Total number of ARIMA fits that failed and degraded to no value",
		},
		[]string{"metric"},
	)

	FitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecast_fit_duration_seconds",
			Help:    "Duration of ARIMA model fits in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"metric"},
	)

	// AggregateCandidates counts price candidates by outcome: kept, declining,
	// zero_last, no_history or fit_failed.
	AggregateCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_aggregate_candidates_total",
			Help: "Price candidates evaluated by the aggregator by outcome",
		},
		[]string{"outcome"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_cache_requests_total",
			Help: "Cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
