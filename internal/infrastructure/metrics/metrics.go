// Package metrics 暴露欠款结清相关的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	SourcePartial      = "partial"
	SourceSessionClose = "session_close"
)

var (
	CreditSettlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casino",
		Name:      "credit_settlements_total",
		Help:      "Number of credit settlements that produced a balance adjustment.",
	}, []string{"source"})

	CreditSettledChips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casino",
		Name:      "credit_settled_chips_total",
		Help:      "Chips of player credit converted into balance adjustments.",
	}, []string{"source"})

	ChipPurchases = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casino",
		Name:      "chip_purchases_total",
		Help:      "Recorded chip purchases by payment type.",
	}, []string{"payment_type"})

	OutboxMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "casino",
		Name:      "outbox_messages_total",
		Help:      "Outbox delivery attempts by result.",
	}, []string{"result"})

	SessionCloseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "casino",
		Name:      "session_close_duration_seconds",
		Help:      "Time spent closing a session including credit settlement.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveSettlement 记录一次结清
func ObserveSettlement(source string, amount int64) {
	CreditSettlements.WithLabelValues(source).Inc()
	CreditSettledChips.WithLabelValues(source).Add(float64(amount))
}
