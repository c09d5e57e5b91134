// Package metrics exposes the Prometheus counters and histograms the
// core pipeline reports, scraped from cmd/api
// (`GET /metrics` via promhttp, grounded on the pack's
// RodolfoBonis-spooliq router wiring of promhttp.Handler).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersProcessed counts every OrderProcessor.ProcessOrder
	// completion, labeled by outcome (paid, failed, upstream_error,
	// not_active).
	OrdersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_orders_processed_total",
		Help: "Orders processed by the order processor, by outcome.",
	}, []string{"outcome"})

	// OrderChargeDuration measures the wall-clock time of a single
	// provider.Charge call inside the processor pipeline.
	OrderChargeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "subscriptions_order_charge_duration_seconds",
		Help:    "Duration of a provider charge call.",
		Buckets: prometheus.DefBuckets,
	})

	// DunningActionsTaken counts each DunningPolicy.Decide outcome
	// acted on by the processor, labeled by action type.
	DunningActionsTaken = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_dunning_actions_total",
		Help: "Dunning actions taken after a failed charge, by action type.",
	}, []string{"action"})

	// WebhookDeliveryAttempts counts every delivery worker attempt,
	// labeled by result (delivered, retried, dlq).
	WebhookDeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscriptions_webhook_delivery_attempts_total",
		Help: "Webhook delivery attempts, by result.",
	}, []string{"result"})

	// SchedulerClaimedOrders counts orders claimed per dispatcher poll.
	SchedulerClaimedOrders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_scheduler_claimed_orders_total",
		Help: "Orders claimed due by the scheduler dispatcher.",
	})
)
