package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for repository operations.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// Recorder receives one observation per repository operation. A nil
// *RepositoryMetrics is a valid no-op Recorder.
type Recorder interface {
	Observe(backend, collection, operation, outcome string, elapsed time.Duration)
}

// RepositoryMetrics counts repository operations and their latency.
type RepositoryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewRepositoryMetrics creates the collectors and registers them with reg.
func NewRepositoryMetrics(reg *Registry) (*RepositoryMetrics, error) {
	m := &RepositoryMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repository_operations_total",
				Help: "Total number of repository operations",
			},
			[]string{"backend", "collection", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repository_operation_duration_seconds",
				Help:    "Repository operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "collection", "operation"},
		),
	}
	if reg != nil {
		if err := reg.Register(m.operations); err != nil {
			return nil, err
		}
		if err := reg.Register(m.duration); err != nil {
			reg.Unregister(m.operations)
			return nil, err
		}
	}
	return m, nil
}

// Observe records one operation.
func (m *RepositoryMetrics) Observe(backend, collection, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(backend, collection, operation, outcome).Inc()
	m.duration.WithLabelValues(backend, collection, operation).Observe(elapsed.Seconds())
}
