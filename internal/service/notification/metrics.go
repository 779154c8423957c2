package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "birthday",
			Subsystem: "dispatch",
			Name:      "jobs_total",
			Help:      "Dispatch jobs handled, by outcome.",
		},
		[]string{"outcome"}, // sent, failed, discarded, error
	)

	notifierAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "birthday",
			Subsystem: "dispatch",
			Name:      "notifier_attempts_total",
			Help:      "Notifier calls, by result.",
		},
		[]string{"result"}, // ok, retryable, permanent
	)

	notifierDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "birthday",
			Subsystem: "dispatch",
			Name:      "notifier_duration_seconds",
			Help:      "Duration of a single Notifier call.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
