package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// ExternalAPIMetrics contains all metrics for chain RPC monitoring
type ExternalAPIMetrics struct {
	apiDuration         *prometheus.HistogramVec
	apiCalls            *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
	timeouts            *prometheus.CounterVec
}

func NewExternalAPIMetrics() *ExternalAPIMetrics {
	return &ExternalAPIMetrics{
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_external_api_duration_seconds",
				Help:    "Duration of external API calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api_name", "endpoint", "status"},
		),
		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api_name", "status"},
		),
		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "settlement_circuit_breaker_state",
				Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"api_name"},
		),
		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_external_api_timeouts_total",
				Help: "Total number of external API timeouts",
			},
			[]string{"api_name", "timeout_type"},
		),
	}
}

func (m *ExternalAPIMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.apiDuration,
		m.apiCalls,
		m.circuitBreakerState,
		m.timeouts,
	)
}

func (m *ExternalAPIMetrics) RecordAPICall(apiName, endpoint, status string, duration float64) {
	m.apiDuration.WithLabelValues(apiName, endpoint, status).Observe(duration)
	m.apiCalls.WithLabelValues(apiName, status).Inc()
}

func (m *ExternalAPIMetrics) UpdateCircuitBreakerState(apiName string, state gobreaker.State) {
	m.circuitBreakerState.WithLabelValues(apiName).Set(float64(state))
}

func (m *ExternalAPIMetrics) RecordTimeout(apiName, timeoutType string) {
	m.timeouts.WithLabelValues(apiName, timeoutType).Inc()
}

// SettlementMetrics tracks the claim and withdrawal state machines.
type SettlementMetrics struct {
	verifications   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	ledgerFailures  *prometheus.CounterVec
	notifyFailures  *prometheus.CounterVec
	unappliedCredit prometheus.Gauge
	unrefunded      prometheus.Gauge
	pending         *prometheus.GaugeVec
}

func NewSettlementMetrics() *SettlementMetrics {
	return &SettlementMetrics{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_verifications_total",
				Help: "Deposit verifications by network and outcome",
			},
			[]string{"network", "outcome"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_state_transitions_total",
				Help: "State transitions by entity, target state and result",
			},
			[]string{"entity", "to", "result"},
		),
		ledgerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_ledger_failures_total",
				Help: "Failed ledger operations by operation",
			},
			[]string{"operation"},
		),
		notifyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_notification_failures_total",
				Help: "Failed notification deliveries by channel",
			},
			[]string{"channel"},
		),
		unappliedCredit: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "settlement_credited_claims_without_ledger_total",
				Help: "Claims in credited state with no recorded ledger credit",
			},
		),
		unrefunded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "settlement_rejected_withdrawals_without_refund_total",
				Help: "Rejected withdrawals with no recorded refund",
			},
		),
		pending: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "settlement_pending_total",
				Help: "Pending deposit claims and withdrawal requests",
			},
			[]string{"entity"},
		),
	}
}

func (m *SettlementMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.verifications,
		m.transitions,
		m.ledgerFailures,
		m.notifyFailures,
		m.unappliedCredit,
		m.unrefunded,
		m.pending,
	)
}

func (m *SettlementMetrics) RecordVerification(network, outcome string) {
	m.verifications.WithLabelValues(network, outcome).Inc()
}

func (m *SettlementMetrics) RecordTransition(entity, to, result string) {
	m.transitions.WithLabelValues(entity, to, result).Inc()
}

func (m *SettlementMetrics) RecordLedgerFailure(operation string) {
	m.ledgerFailures.WithLabelValues(operation).Inc()
}

func (m *SettlementMetrics) RecordNotificationFailure(channel string) {
	m.notifyFailures.WithLabelValues(channel).Inc()
}

func (m *SettlementMetrics) SetReconciliationGaps(unappliedCredits, unrefundedWithdrawals int) {
	m.unappliedCredit.Set(float64(unappliedCredits))
	m.unrefunded.Set(float64(unrefundedWithdrawals))
}

func (m *SettlementMetrics) SetPending(entity string, count int64) {
	m.pending.WithLabelValues(entity).Set(float64(count))
}
