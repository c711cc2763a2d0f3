// Viewtrack - Product View Tracking and Analytics
// Copyright 2026 Launchdeck Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/launchdeck/viewtrack

// Package metrics provides Prometheus instrumentation for Viewtrack:
// ingest throughput and dedup hits, store query latency, websocket
// subscriptions, notifier drops, and API request metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	ViewsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_views_ingested_total",
			Help: "Total number of view events persisted by the ingestor",
		},
		[]string{"unique"},
	)

	ViewsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_views_rejected_total",
			Help: "Total number of view events rejected at ingress",
		},
		[]string{"reason"}, // rate_limited, unknown_product, validation
	)

	DedupChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_dedup_checks_total",
			Help: "Dedup window checks by outcome",
		},
		[]string{"outcome"}, // unique, duplicate, error
	)

	IngestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewtrack_ingest_queue_depth",
			Help: "Approximate number of in-flight ingest messages",
		},
	)

	IngestShedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewtrack_ingest_shed_total",
			Help: "Aggregate/notifier publishes shed under backpressure",
		},
	)

	// Store metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewtrack_store_query_duration_seconds",
			Help:    "Duration of store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_store_query_errors_total",
			Help: "Total number of store query errors",
		},
		[]string{"operation", "table"},
	)

	// Aggregator metrics
	RollupApplies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewtrack_rollup_applies_total",
			Help: "Incremental rollup row applications",
		},
	)

	ReconcileSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_reconcile_sweeps_total",
			Help: "Reconciliation sweeps by outcome",
		},
		[]string{"outcome"}, // ok, error
	)

	// Notifier metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewtrack_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)

	TopicSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewtrack_topic_subscriptions",
			Help: "Active per-product topic subscriptions",
		},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "viewtrack_notifications_dropped_total",
			Help: "Notifications dropped due to full client buffers",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_notifications_sent_total",
			Help: "Notifications broadcast per event type",
		},
		[]string{"event"},
	)

	// Query metrics
	StatsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_stats_cache_lookups_total",
			Help: "View-stats cache lookups by outcome",
		},
		[]string{"outcome"}, // hit, miss
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewtrack_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewtrack_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "viewtrack_api_active_requests",
			Help: "Currently in-flight API requests",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordStoreQuery records the latency of one store query.
func RecordStoreQuery(operation, table string, duration time.Duration) {
	StoreQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordStoreError records one failed store query.
func RecordStoreError(operation, table string) {
	StoreQueryErrors.WithLabelValues(operation, table).Inc()
}
