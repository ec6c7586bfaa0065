// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrolive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "astrolive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "astrolive_active_sessions",
			Help: "Number of consultation sessions currently being billed",
		},
	)

	BillingTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrolive_billing_ticks_total",
			Help: "Total number of billing charges by outcome",
		},
		[]string{"outcome"},
	)

	RevenueTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrolive_revenue_total",
			Help: "Total amount credited by billing, by receiving account role",
		},
		[]string{"account_role"},
	)

	NegotiationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astrolive_negotiations_total",
			Help: "Total number of consultation negotiation outcomes",
		},
		[]string{"outcome"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "astrolive_ws_connections",
			Help: "Number of open WebSocket connections",
		},
	)

	LedgerBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "astrolive_ledger_breaker_state",
			Help: "Ledger circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Billing tick outcomes.
const (
	TickCharged           = "charged"
	TickInsufficientFunds = "insufficient_funds"
	TickError             = "error"
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBillingTick(outcome string) {
	BillingTicksTotal.WithLabelValues(outcome).Inc()
}

func RecordRevenue(role string, amount decimal.Decimal) {
	RevenueTotal.WithLabelValues(role).Add(amount.InexactFloat64())
}

func RecordNegotiation(outcome string) {
	NegotiationsTotal.WithLabelValues(outcome).Inc()
}

func SetLedgerBreakerState(state int) {
	LedgerBreakerState.Set(float64(state))
}
