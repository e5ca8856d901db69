package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Coin capability metrics
	coinCallsTotal   *prometheus.CounterVec
	coinCallDuration *prometheus.HistogramVec

	// Wallet operation metrics
	walletOpsTotal     *prometheus.CounterVec
	walletFanoutLosses *prometheus.CounterVec

	// Message delivery metrics
	messagesTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		coinCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coin_calls_total",
				Help: "Total number of coin capability calls by family, operation and status",
			},
			[]string{"family", "operation", "status"},
		),
		coinCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coin_call_duration_seconds",
				Help:    "Duration of coin capability calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 15.0},
			},
			[]string{"family", "operation"},
		),
		walletOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_operations_total",
				Help: "Total number of wallet orchestrator operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		walletFanoutLosses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_fanout_losses_total",
				Help: "Families omitted from fan-out results due to capability failures",
			},
			[]string{"operation", "family"},
		),
		messagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_total",
				Help: "Total number of outbound messages by final delivery state",
			},
			[]string{"state"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path and status code",
			},
			[]string{"method", "path", "status"},
		),
	}
}

// RecordCoinCall records one coin capability call.
func (m *Metrics) RecordCoinCall(family, operation, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.coinCallsTotal.WithLabelValues(family, operation, status).Inc()
	m.coinCallDuration.WithLabelValues(family, operation).Observe(durationSeconds)
}

// RecordWalletOp records one orchestrator operation outcome.
func (m *Metrics) RecordWalletOp(operation, status string) {
	if m == nil {
		return
	}
	m.walletOpsTotal.WithLabelValues(operation, status).Inc()
}

// RecordFanoutLoss records a family omitted from a degraded fan-out.
func (m *Metrics) RecordFanoutLoss(operation, family string) {
	if m == nil {
		return
	}
	m.walletFanoutLosses.WithLabelValues(operation, family).Inc()
}

// RecordMessage records the final delivery state of an outbound message.
func (m *Metrics) RecordMessage(state string) {
	if m == nil {
		return
	}
	m.messagesTotal.WithLabelValues(state).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}
