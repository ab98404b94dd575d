package observability

import (
	"errors"
	"time"

	"github.com/boddenberg/eternity-backoffice-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/sony/gobreaker"
)

const (
	metricOperations    = "backoffice_family_operations_total"
	metricDuration      = "backoffice_operation_duration_seconds"
	metricStorageErrors = "backoffice_storage_errors_total"
	metricBreakerState  = "backoffice_circuit_breaker_state"
	metricInFlight      = "backoffice_inflight_requests"

	outcomeSuccess = "success"
)

// Metrics holds all Prometheus metrics for the back-office.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	storageErrors *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricOperations,
				Help: "Family unit and client registry operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricDuration,
				Help:    "Duration of operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricStorageErrors,
				Help: "Operations that failed because the store was unreachable.",
			},
			[]string{"store"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricBreakerState,
				Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
			},
			[]string{"breaker"},
		),
	}
}

// ObserveBreaker records a breaker transition. It satisfies
// resilience.StateObserver.
func (m *Metrics) ObserveBreaker(name string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(name).Set(float64(to))
}

// TrackInFlight exports inUse as the in-flight request gauge. Call it once
// per registry.
func (m *Metrics) TrackInFlight(inUse func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricInFlight,
			Help: "API requests currently holding a bulkhead slot.",
		},
		func() float64 { return float64(inUse()) },
	))
}

// RecordOperation counts one finished operation. The outcome label is
// "success" or the error Kind.
func (m *Metrics) RecordOperation(operation string, d time.Duration, err error) {
	m.duration.WithLabelValues(operation).Observe(d.Seconds())

	if err == nil {
		m.operations.WithLabelValues(operation, outcomeSuccess).Inc()
		return
	}
	m.operations.WithLabelValues(operation, string(domain.KindOf(err))).Inc()

	var unavailable *domain.ErrStorageUnavailable
	if errors.As(err, &unavailable) {
		m.storageErrors.WithLabelValues(unavailable.Store).Inc()
	}
}

// FamilySnapshot returns cumulative operation outcomes for GET /v1/metrics/family.
func (m *Metrics) FamilySnapshot() (*domain.FamilyMetrics, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}

	snap := &domain.FamilyMetrics{
		Operations: map[string]domain.OperationOutcomes{},
		Period:     "all_time",
	}
	for _, mf := range families {
		switch mf.GetName() {
		case metricOperations:
			for _, metric := range mf.GetMetric() {
				labels := labelMap(metric)
				op := labels["operation"]
				out := snap.Operations[op]
				value := metric.GetCounter().GetValue()
				if labels["outcome"] == outcomeSuccess {
					out.Success += value
				} else {
					if out.Failed == nil {
						out.Failed = map[string]float64{}
					}
					out.Failed[labels["outcome"]] += value
				}
				snap.Operations[op] = out
			}
		case metricStorageErrors:
			for _, metric := range mf.GetMetric() {
				snap.StorageErrors += metric.GetCounter().GetValue()
			}
		}
	}
	return snap, nil
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}
