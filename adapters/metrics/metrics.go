// Package metrics provides Prometheus metrics collection for genmeter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for genmeter.
type Collector struct {
	// Quota check metrics
	ChecksTotal   *prometheus.CounterVec
	DenialsTotal  *prometheus.CounterVec
	FailOpenTotal prometheus.Counter

	// Recording metrics
	RecordingsTotal prometheus.Counter
	RecordDrops     prometheus.Counter

	// Sweep metrics
	SweepRuns    prometheus.Counter
	SweepSkipped prometheus.Counter
	SweepRemoved *prometheus.CounterVec

	// Store metrics
	StoreErrors *prometheus.CounterVec
}

// New creates a new metrics collector with all metrics registered on reg.
// Pass prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "quota_checks_total",
				Help:      "Total number of quota checks by result",
			},
			[]string{"result"},
		),
		DenialsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "quota_denials_total",
				Help:      "Total number of quota denials by reason",
			},
			[]string{"reason"},
		),
		FailOpenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "quota_fail_open_total",
				Help:      "Checks allowed because the usage store was unreachable",
			},
		),
		RecordingsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "usage_recordings_total",
				Help:      "Total number of recorded generation actions",
			},
		),
		RecordDrops: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "usage_record_drops_total",
				Help:      "Recordings dropped because the usage store write failed",
			},
		),
		SweepRuns: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "sweep_runs_total",
				Help:      "Retention sweeps executed",
			},
		),
		SweepSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "sweep_skipped_total",
				Help:      "Retention sweeps skipped by the staleness gate",
			},
		),
		SweepRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "sweep_removed_entries_total",
				Help:      "Bucket entries removed by retention sweeps",
			},
			[]string{"window"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "genmeter",
				Name:      "store_errors_total",
				Help:      "Usage store failures by operation",
			},
			[]string{"op"},
		),
	}
}
