package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HooksReceived counts hooks taken up by a packager worker, by object
	// kind; events the push handler does not forward are not counted.
	HooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursegrader_dispatcher_hooks_received_total",
			Help: "Total number of push hooks taken up for packaging",
		},
		[]string{"object_kind"},
	)

	// LabsPackaged counts successfully packaged labs by lab; the status
	// label is always "packaged".
	LabsPackaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursegrader_dispatcher_labs_packaged_total",
			Help: "Total number of labs successfully packaged",
		},
		[]string{"lab", "status"},
	)

	// PackageDuration tracks how long cloning and zipping a commit takes.
	PackageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coursegrader_dispatcher_package_duration_seconds",
			Help:    "Duration of clone-and-package operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// ResultsReceived counts decoded job results by outcome.
	ResultsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursegrader_dispatcher_results_received_total",
			Help: "Total number of result-queue deliveries processed",
		},
		[]string{"outcome"},
	)
)
