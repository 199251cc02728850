package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evlync_orders_created_total",
			Help: "Orders committed, by checkout mode",
		},
		[]string{"mode"},
	)

	OrdersRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evlync_orders_rejected_total",
			Help: "Checkout attempts rejected before commit",
		},
		[]string{"reason"},
	)

	PaymentsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evlync_payments_reconciled_total",
			Help: "Gateway callbacks applied, by outcome",
		},
		[]string{"outcome"},
	)

	CheckIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evlync_checkins_total",
			Help: "Check-in commits, by outcome",
		},
		[]string{"outcome"},
	)
)
