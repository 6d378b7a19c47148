// Package metrics records poll and lifecycle metrics for a test run.
//
// Collectors are registered with controller-runtime's registry. At the end
// of a run they can be written to a node-exporter textfile with
// [WriteTextfile].
package metrics

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/imamik/harvester-e2e/internal/util/converge"
)

var (
	// Poll metrics
	pollAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester_e2e",
			Subsystem: "converge",
			Name:      "attempts_total",
			Help:      "Total number of fetches issued while polling, by resource and response class",
		},
		[]string{"resource", "class"},
	)

	pollOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester_e2e",
			Subsystem: "converge",
			Name:      "outcomes_total",
			Help:      "Total number of finished polls by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvester_e2e",
			Subsystem: "converge",
			Name:      "duration_seconds",
			Help:      "Time until a poll finished, in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		},
		[]string{"resource", "outcome"},
	)

	// Lifecycle metrics
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester_e2e",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Total number of lifecycle operations by resource, operation and result",
		},
		[]string{"resource", "operation", "result"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvester_e2e",
			Subsystem: "lifecycle",
			Name:      "operation_duration_seconds",
			Help:      "Duration of lifecycle operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 16), // 100ms to ~55min
		},
		[]string{"resource", "operation"},
	)
)

func init() {
	crmetrics.Registry.MustRegister(
		pollAttemptsTotal,
		pollOutcomesTotal,
		pollDuration,
		operationsTotal,
		operationDuration,
	)
}

// Result values for RecordOperation.
const (
	ResultSuccess = "success"
	ResultReused  = "reused"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// RecordOperation records a lifecycle operation such as "create" or "delete".
func RecordOperation(resource, operation, result string, seconds float64) {
	operationsTotal.WithLabelValues(resource, operation, result).Inc()
	operationDuration.WithLabelValues(resource, operation).Observe(seconds)
}

// PollObserver feeds converge events into the poll metrics.
type PollObserver struct {
	Resource string
}

var _ converge.Observer = PollObserver{}

// ObserveAttempt implements converge.Observer.
func (o PollObserver) ObserveAttempt(_ string, code int, err error) {
	pollAttemptsTotal.WithLabelValues(o.Resource, responseClass(code, err)).Inc()
}

// ObserveOutcome implements converge.Observer.
func (o PollObserver) ObserveOutcome(_ string, out converge.Outcome) {
	kind := out.Kind.String()
	pollOutcomesTotal.WithLabelValues(o.Resource, kind).Inc()
	pollDuration.WithLabelValues(o.Resource, kind).Observe(out.Elapsed.Seconds())
}

// responseClass buckets a response as "2xx", "4xx", ... or "error".
func responseClass(code int, err error) string {
	if err != nil || code < 100 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// WriteTextfile writes all registered metrics in the text exposition
// format, for the node-exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, crmetrics.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
