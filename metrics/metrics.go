// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/testpipe/testpipe/types"
)

const MetricsNamespace = "testpipe"

var (
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of test runs by terminal disposition",
	}, []string{
		"disposition",
	})

	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "outcomes_total",
		Help:      "Count of per-identity outcomes",
	}, []string{
		"status",
	})

	parsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "parses_total",
		Help:      "Count of parser selections by format",
	}, []string{
		"format",
	})

	bufferOverflowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "buffer_overflows_total",
		Help:      "Count of runs aborted by the output buffer cap",
	})

	spawnFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "spawn_failures_total",
		Help:      "Count of runs whose process failed to spawn",
	})
)

// Run dispositions recorded by RecordRun.
const (
	RunCompleted  = "completed"
	RunCancelled  = "cancelled"
	RunOverflowed = "overflowed"
	RunSpawnError = "spawn_error"
)

func RecordError(label string) {
	errorsTotal.WithLabelValues(label).Inc()
}

func RecordRun(disposition string) {
	runsTotal.WithLabelValues(disposition).Inc()
}

func RecordOutcome(status types.OutcomeStatus) {
	outcomesTotal.WithLabelValues(string(status)).Inc()
}

// RecordParse counts which grammar (or the raw-text fallback) resolved a run.
func RecordParse(format string) {
	parsesTotal.WithLabelValues(format).Inc()
}

func RecordBufferOverflow() {
	bufferOverflowsTotal.Inc()
}

func RecordSpawnFailure() {
	spawnFailuresTotal.Inc()
}
