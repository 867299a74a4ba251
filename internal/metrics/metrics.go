package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counters
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstream_jobs_submitted_total",
			Help: "Total number of jobs accepted at the ingestion gateway",
		},
		[]string{"parser"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstream_jobs_processed_total",
			Help: "Total number of jobs finalized by workers",
		},
		[]string{"parser", "outcome"}, // outcome: done, error
	)

	EntriesReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docstream_entries_reclaimed_total",
			Help: "Total number of stale queue entries reclaimed from dead consumers",
		},
	)

	StaleDeliveriesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docstream_stale_deliveries_skipped_total",
			Help: "Total number of redeliveries acked without side effects because the job was already terminal",
		},
	)

	JobsAbandonedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docstream_jobs_abandoned_total",
			Help: "Total number of jobs force-finalized after exhausting delivery attempts",
		},
	)

	// Histogram for per-job processing duration
	ProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstream_processing_duration_seconds",
			Help:    "Job processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"parser"},
	)
)
