package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersPlacedTotal counts order placement outcomes.
	OrdersPlacedTotal *prometheus.CounterVec
	// OrderTransitionsTotal counts lifecycle transitions by target status and outcome.
	OrderTransitionsTotal *prometheus.CounterVec
	// EarningsCreatedTotal counts driver earning creation outcomes, including
	// idempotent replays returned unchanged.
	EarningsCreatedTotal *prometheus.CounterVec
	// PartnerSettlementRowsTotal counts partner settlement rows inserted.
	PartnerSettlementRowsTotal prometheus.Counter
	// PayoutBatchesTotal counts driver payout batch outcomes.
	PayoutBatchesTotal *prometheus.CounterVec
	// NotifyDispatchTotal counts push notification dispatch outcomes.
	NotifyDispatchTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersPlacedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Count of order placement outcomes.",
		}, []string{"result"})
		OrderTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Count of order lifecycle transitions by target status.",
		}, []string{"to", "result"})
		EarningsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_earnings_created_total",
			Help:      "Count of driver earning creation outcomes.",
		}, []string{"result"})
		PartnerSettlementRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partner_settlement_rows_total",
			Help:      "Count of partner settlement ledger rows created.",
		})
		PayoutBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_payout_batches_total",
			Help:      "Count of driver payout batch outcomes.",
		}, []string{"result"})
		NotifyDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_dispatch_total",
			Help:      "Count of push notification dispatch outcomes.",
		}, []string{"result"})

		reg.MustRegister(
			OrdersPlacedTotal,
			OrderTransitionsTotal,
			EarningsCreatedTotal,
			PartnerSettlementRowsTotal,
			PayoutBatchesTotal,
			NotifyDispatchTotal,
		)
	})
}
