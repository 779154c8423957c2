package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "birthday",
			Subsystem: "jobs",
			Name:      "runs_total",
			Help:      "Periodic job triggers, by job and outcome.",
		},
		[]string{"job", "outcome"}, // ran, failed, done, dropped
	)

	jobRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "birthday",
			Subsystem: "jobs",
			Name:      "records_total",
			Help:      "Records handled by periodic jobs, by result.",
		},
		[]string{"job", "result"}, // processed, failed, skipped
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "birthday",
			Subsystem: "jobs",
			Name:      "run_duration_seconds",
			Help:      "Duration of periodic job handlers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
