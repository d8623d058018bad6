package usecase

import (
	"time"

	"github.com/Nzyazin/miniwallet/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const resultSuccess = "success"

type Metrics interface {
	// ObserveOperation records one call of operation; a nil err counts as success.
	ObserveOperation(operation string, started time.Time, err error)
	AddApplied(direction models.Direction, amount decimal.Decimal)
}

type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	applied    *prometheus.CounterVec
}

func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniwallet_operations_total",
				Help: "Wallet operations by result code",
			},
			[]string{"operation", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniwallet_operation_duration_seconds",
				Help:    "Duration of wallet operations",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
			},
			[]string{"operation"},
		),
		applied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniwallet_applied_amount_total",
				Help: "Sum of applied transaction amounts",
			},
			[]string{"direction"},
		),
	}
}

func (m *PrometheusMetrics) ObserveOperation(operation string, started time.Time, err error) {
	result := resultSuccess
	if err != nil {
		result = CodeOf(err)
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *PrometheusMetrics) AddApplied(direction models.Direction, amount decimal.Decimal) {
	m.applied.WithLabelValues(string(direction)).Add(amount.InexactFloat64())
}

type noopMetrics struct{}

func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) ObserveOperation(string, time.Time, error) {}
func (noopMetrics) AddApplied(models.Direction, decimal.Decimal) {}
