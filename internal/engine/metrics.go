package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени заняло решение (включая классификатор)
	RequestDuration *prometheus.HistogramVec

	// Traffic: все решения пайплайна по направлениям и действиям
	DecisionsTotal *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Security: сколько агентов сейчас в карантине
	QuarantinedAgents prometheus.Gauge

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shieldforce_request_duration_seconds",
			Help:    "Histogram of decision latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"direction", "action"}),

		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shieldforce_decisions_total",
			Help: "Total number of pipeline decisions.",
		}, []string{"direction", "action"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shieldforce_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: auth_failure, rbac_denied, upstream_failure, agent_unreachable

		QuarantinedAgents: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shieldforce_quarantined_agents",
			Help: "Number of agents currently quarantined.",
		}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "shieldforce_circuit_breaker_state",
			Help: "Current state of the upstream circuit breaker (0=closed, 1=open).",
		}, []string{"target"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shieldforce_audit_buffer_utilization",
			Help: "Current number of records in audit buffer.",
		}),
	}
}
