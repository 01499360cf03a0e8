package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of successful order status transitions",
	}, []string{"target_status"})

	OrderTransitionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_transition_conflicts_total",
		Help: "Total number of transitions lost to a concurrent writer",
	})

	TicketsRoutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kitchen_tickets_routed_total",
		Help: "Total number of kitchen tickets created",
	})

	BackfillRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_backfill_runs_total",
		Help: "Total number of ticket backfill scans",
	}, []string{"scope"})

	TablesSeatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tables_seated_total",
		Help: "Total number of table seatings",
	})

	TablesMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tables_merged_total",
		Help: "Total number of table merges",
	})

	TablesReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tables_released_total",
		Help: "Total number of tables freed by order completion",
	})

	PaymentConfirmAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirm_attempts_total",
		Help: "Total number of synchronous payment confirmations attempted",
	})

	PaymentConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_confirmed_total",
		Help: "Total number of payments confirmed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
