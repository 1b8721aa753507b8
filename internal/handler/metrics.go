package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_orchestrator",
			Subsystem: "orders",
			Name:      "created_total",
			Help:      "Total number of orders created, by payment method",
		},
		[]string{"payment_method"},
	)

	paymentWebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_orchestrator",
			Subsystem: "webhooks",
			Name:      "payment_events_total",
			Help:      "Total number of payment webhook deliveries, by event type and outcome",
		},
		[]string{"event", "outcome"},
	)

	paymentWebhooksRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "order_orchestrator",
			Subsystem: "webhooks",
			Name:      "payment_rejected_total",
			Help:      "Total number of payment webhook deliveries rejected for a bad signature",
		},
	)

	carrierWebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "order_orchestrator",
			Subsystem: "webhooks",
			Name:      "carrier_events_total",
			Help:      "Total number of carrier webhook deliveries, by outcome",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		ordersCreated,
		paymentWebhooksTotal,
		paymentWebhooksRejected,
		carrierWebhooksTotal,
	)
}
