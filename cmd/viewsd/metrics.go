package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	computePasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statetree_compute_passes_total",
			Help: "Number of computation passes per aggregation",
		},
		[]string{"aggregation"},
	)

	computeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "statetree_compute_duration_seconds",
			Help:    "Duration of one computation pass per aggregation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"aggregation"},
	)

	branchState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "statetree_branch_state",
			Help: "Effective state code per computed branch (-1 pending, 0 ok, 1 warn, 2 crit, 3 unknown)",
		},
		[]string{"aggregation", "branch"},
	)

	reloadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statetree_reload_failures_total",
			Help: "Number of failed definition/status reloads",
		},
	)
)
