package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders successfully paid",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed orders",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "End-to-end latency of checkout processing",
		Buckets: prometheus.DefBuckets,
	})

	PaymentAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	}, []string{"provider"})

	PaymentSuccessTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_success_total",
		Help: "Total number of successful payments",
	}, []string{"provider"})

	PaymentFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payments",
	}, []string{"provider", "reason"})

	PaymentProcessingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of transactional emails sent",
	}, []string{"template"})

	EmailsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_failed_total",
		Help: "Total number of transactional email send failures",
	}, []string{"template"})

	BulkActionOrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_action_orders_total",
		Help: "Orders touched by admin bulk actions",
	}, []string{"action", "result"})

	CustomersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customers_deleted_total",
		Help: "Total number of customers deleted",
	})

	StaleOrdersReconciledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stale_orders_reconciled_total",
		Help: "Pending orders cancelled by the reconciler",
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
