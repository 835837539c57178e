package observability

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BuildsTotal counts finished builds and cleans by kind (build, clean) and result (success, failure)
	BuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litedev_builds_total",
			Help: "Total number of finished builds by kind and result",
		},
		[]string{"kind", "result"},
	)

	// BuildDuration tracks build and clean duration in seconds
	BuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "litedev_build_duration_seconds",
			Help:    "Build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"kind"},
	)

	// BuildRejectedTotal counts build or clean requests refused because the builder was busy
	BuildRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litedev_build_rejected_total",
			Help: "Total number of build requests rejected while another was in flight",
		},
		[]string{"kind"},
	)

	// DebuggerSessionsTotal counts debugger session starts by outcome (started, failed)
	DebuggerSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litedev_debugger_sessions_total",
			Help: "Total number of debugger session starts by outcome",
		},
		[]string{"outcome"},
	)

	// DebuggerStateTransitions counts session state changes
	DebuggerStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litedev_debugger_state_transitions_total",
			Help: "Total number of debugger session state transitions",
		},
		[]string{"from", "to"},
	)

	// ScriptSyncOperations counts build script mutations made on behalf of the project model
	ScriptSyncOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "litedev_script_sync_operations_total",
			Help: "Total number of build script edits driven by project model changes",
		},
		[]string{"op"},
	)
)

// GetCounterValue retrieves the current value of a counter metric with the given labels
// This is primarily intended for testing
func GetCounterValue(counter *prometheus.CounterVec, labels ...string) (float64, error) {
	metric, err := counter.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}

	if pb.Counter != nil {
		return pb.Counter.GetValue(), nil
	}

	return 0, nil
}

// GetHistogramCount returns how many observations a histogram with the given labels has recorded.
func GetHistogramCount(histogram *prometheus.HistogramVec, labels ...string) (uint64, error) {
	observer, err := histogram.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}

	metric, ok := observer.(prometheus.Metric)
	if !ok {
		return 0, nil
	}

	var pb dto.Metric
	if err := metric.Write(&pb); err != nil {
		return 0, err
	}
	return pb.GetHistogram().GetSampleCount(), nil
}
