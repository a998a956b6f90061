// Sparkpit - Gated Community Platform
// Copyright 2026 Sparkpit Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sparkpit/sparkpit

// Package metrics exposes Prometheus instrumentation for the HTTP API,
// the Badger store, the WebSocket layer, and the event pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Store metrics
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of Badger store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"operation"},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of messages fanned out to WebSocket clients",
		},
	)

	WSSlowClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_clients_dropped_total",
			Help: "Total number of clients evicted for unread backpressure",
		},
	)

	// Event pipeline metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the stream",
		},
		[]string{"subject"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of events consumed from the stream",
		},
		[]string{"subject"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events dropped before publish",
		},
		[]string{"reason"},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "Time spent handling one consumed event",
			Buckets: prometheus.DefBuckets,
		},
	)

	PublishBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "event_publish_breaker_open",
			Help: "1 when the publish circuit breaker is open",
		},
	)

	// Audit metrics
	AuditEventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_logged_total",
			Help: "Total number of audit events written",
		},
		[]string{"severity"},
	)

	AuditEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of audit events dropped by the async buffer",
		},
	)

	// Payment metrics
	PaymentWebhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Total number of payment webhooks received",
		},
		[]string{"event", "result"},
	)

	PaymentsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_completed_total",
			Help: "Total number of join fees collected",
		},
	)

	// Bounty metrics
	BountyTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_transitions_total",
			Help: "Total number of bounty status transitions",
		},
		[]string{"to_status"},
	)
)

// RecordAPIRequest records an API request with its duration.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStoreOp records a store operation, counting errors separately.
func RecordStoreOp(operation string, duration time.Duration, err error) {
	StoreOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOpErrors.WithLabelValues(operation).Inc()
	}
}

// RecordEventPublished counts a successful publish on a subject.
func RecordEventPublished(subject string) {
	EventsPublished.WithLabelValues(subject).Inc()
}

// RecordEventDropped counts an event lost before publish.
func RecordEventDropped(reason string) {
	EventsDropped.WithLabelValues(reason).Inc()
}

// RecordEventConsumed counts a consumed event and its handling time.
func RecordEventConsumed(subject string, duration time.Duration) {
	EventsConsumed.WithLabelValues(subject).Inc()
	EventProcessingDuration.Observe(duration.Seconds())
}

// SetPublishBreakerOpen reflects the circuit breaker state.
func SetPublishBreakerOpen(open bool) {
	if open {
		PublishBreakerState.Set(1)
	} else {
		PublishBreakerState.Set(0)
	}
}
