package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		notificationsTotal,
		reconcileDuration,
		creditedAmountTotal,
		refundedAmountTotal,
		refundConflictsTotal,
		notifyFailuresTotal,
	)
}

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paypal_notifications_total",
			Help: "PayPal notifications by source, kind and outcome.",
		},
		[]string{"source", "kind", "status", "reason"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paypal_reconcile_duration_seconds",
			Help:    "Time spent reconciling one notification.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	creditedAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paypal_credited_amount_total",
			Help: "Amount credited to account balances, by account type.",
		},
		[]string{"account"},
	)

	refundedAmountTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paypal_refunded_amount_total",
			Help: "Amount recorded as refunded against ledger transactions.",
		},
	)

	refundConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paypal_refund_conflicts_total",
			Help: "Refund updates that lost a version race and were retried.",
		},
	)

	notifyFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paypal_credit_notice_failures_total",
			Help: "Credit notice emails that could not be sent.",
		},
	)
)

func IncNotification(source, kind, status, reason string) {
	notificationsTotal.WithLabelValues(norm(source), norm(kind), norm(status), reason).Inc()
}

func ObserveReconcile(source string, elapsed time.Duration) {
	reconcileDuration.WithLabelValues(norm(source)).Observe(elapsed.Seconds())
}

func AddCredited(account string, amount decimal.Decimal) {
	creditedAmountTotal.WithLabelValues(norm(account)).Add(amount.InexactFloat64())
}

func AddRefunded(amount decimal.Decimal) {
	refundedAmountTotal.Add(amount.InexactFloat64())
}

func IncRefundConflict() {
	refundConflictsTotal.Inc()
}

func IncNotifyFailure() {
	notifyFailuresTotal.Inc()
}
