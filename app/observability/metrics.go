package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MonitorOutcomes counts classified results of feed checks.
	MonitorOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rss_monitor_outcomes_total",
		Help: "Total number of feed check outcomes by classification",
	}, []string{"outcome"})

	// QueueDepth tracks the number of submissions waiting for a worker.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rss_monitor_queue_depth",
		Help: "Current number of feed submissions in the monitor queue",
	})

	// WorkersInFlight tracks currently running monitor workers.
	WorkersInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rss_monitor_workers_in_flight",
		Help: "Number of feed checks currently in progress",
	})

	// CheckDuration tracks the wall time of a single feed check.
	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rss_monitor_check_duration_seconds",
		Help:    "Feed check execution time distribution",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// DeliveryFailures counts per-subscriber delivery failures by reason.
	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rss_monitor_delivery_failures_total",
		Help: "Total number of per-subscriber delivery failures",
	}, []string{"reason"})
)
