package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart mutations by operation and whether the stored cart changed",
		},
		[]string{"operation", "changed"},
	)

	checkouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout attempts by outcome",
		},
		[]string{"outcome"},
	)

	checkoutAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_order_amount_cents",
			Help:    "Order totals at checkout, in cents",
			Buckets: prometheus.ExponentialBuckets(500, 4, 8),
		},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Order status transitions by source and target status",
		},
		[]string{"from", "to"},
	)
)

// Checkout outcomes.
const (
	outcomeCreated  = "created"
	outcomeReplayed = "replayed"
	outcomeEmpty    = "empty_cart"
	outcomeFailed   = "failed"
)
