package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wakepush",
		Name:      "push_results_total",
		Help:      "Wake pushes by outcome (ok, failed, pruned, skipped).",
	}, []string{"result"})

	pushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wakepush",
		Name:      "push_duration_seconds",
		Help:      "Time spent sending a single wake push to the relay.",
		Buckets:   prometheus.DefBuckets,
	})

	dispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wakepush",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of a full campaign dispatch.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	lastDispatch = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wakepush",
		Name:      "last_dispatch_timestamp_seconds",
		Help:      "Unix time of the last completed campaign dispatch.",
	})
)
