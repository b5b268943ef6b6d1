package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Billing outcomes.
const (
	OutcomeCharged           = "charged"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeError             = "error"
	OutcomeSkipped           = "skipped"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so packages can be used without a registry.
type Metrics struct {
	walletPostings  *prometheus.CounterVec
	billingCharges  *prometheus.CounterVec
	coinsCharged    *prometheus.CounterVec
	earnings        *prometheus.CounterVec
	earningsMinor   prometheus.Counter
	bonuses         *prometheus.CounterVec
	callTransitions *prometheus.CounterVec
	outboxPublished *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	dbErrors        *prometheus.CounterVec
}

// New builds the collectors and registers them on registerer
// (prometheus.DefaultRegisterer when nil).
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		walletPostings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_wallet_postings_total",
			Help: "Wallet ledger entries by kind and direction.",
		}, []string{"kind", "direction"}),
		billingCharges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_billing_charges_total",
			Help: "Call billing attempts by call type and outcome.",
		}, []string{"call_type", "outcome"}),
		coinsCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_billing_coins_charged_total",
			Help: "Coins debited for completed calls.",
		}, []string{"call_type"}),
		earnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_host_earnings_total",
			Help: "Host earning records by call type and result.",
		}, []string{"call_type", "result"}),
		earningsMinor: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatcall_host_earnings_minor_total",
			Help: "Host earnings credited, in minor currency units.",
		}),
		bonuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_host_bonuses_total",
			Help: "Host bonuses awarded by type.",
		}, []string{"bonus_type"}),
		callTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_call_transitions_total",
			Help: "Call status transitions.",
		}, []string{"from", "to"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_outbox_published_total",
			Help: "Outbox relay publish attempts by topic and result.",
		}, []string{"topic", "result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatcall_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		dbErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatcall_db_errors_total",
			Help: "Database errors by operation and class.",
		}, []string{"op", "class"}),
	}
	registerer.MustRegister(
		m.walletPostings,
		m.billingCharges,
		m.coinsCharged,
		m.earnings,
		m.earningsMinor,
		m.bonuses,
		m.callTransitions,
		m.outboxPublished,
		m.httpDuration,
		m.dbErrors,
	)
	return m
}

func (m *Metrics) IncWalletPosting(kind string, credit bool) {
	if m == nil {
		return
	}
	dir := "debit"
	if credit {
		dir = "credit"
	}
	m.walletPostings.WithLabelValues(kind, dir).Inc()
}

func (m *Metrics) ObserveBillingCharge(callType, outcome string, coins int64) {
	if m == nil {
		return
	}
	m.billingCharges.WithLabelValues(callType, outcome).Inc()
	if outcome == OutcomeCharged && coins > 0 {
		m.coinsCharged.WithLabelValues(callType).Add(float64(coins))
	}
}

func (m *Metrics) ObserveEarning(callType, result string, amountMinor int64) {
	if m == nil {
		return
	}
	m.earnings.WithLabelValues(callType, result).Inc()
	if amountMinor > 0 {
		m.earningsMinor.Add(float64(amountMinor))
	}
}

func (m *Metrics) IncBonus(bonusType string) {
	if m == nil {
		return
	}
	m.bonuses.WithLabelValues(bonusType).Inc()
}

func (m *Metrics) IncCallTransition(from, to string) {
	if m == nil {
		return
	}
	m.callTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncOutboxPublish(topic string, err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "error"
	}
	m.outboxPublished.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) IncDBError(op string, err error) {
	if m == nil || err == nil {
		return
	}
	m.dbErrors.WithLabelValues(op, ClassifyDBError(err)).Inc()
}

// ClassifyDBError maps persistence errors to a small label set.
func ClassifyDBError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return "unique_violation"
	case hasPGCode(err, "40001"):
		return "serialization_failure"
	case hasPGCode(err, "55P03"):
		return "lock_timeout"
	default:
		return "other"
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
