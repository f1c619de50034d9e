package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsInFlight tracks the number of container invocations currently running.
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coursegrader_tester_jobs_in_flight",
			Help: "Number of container invocations currently running",
		},
	)

	// JobsProcessed counts completed jobs by outcome.
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursegrader_tester_jobs_processed_total",
			Help: "Total number of jobs processed by outcome",
		},
		[]string{"outcome"},
	)
)
