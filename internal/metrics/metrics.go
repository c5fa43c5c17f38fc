// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

// Package metrics holds the Prometheus instrumentation for the sync layer.
// Everything registers with the default registry through promauto and is
// served on /metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/powerhour/internal/models"
)

var (
	// Sync Coordinator
	SyncSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_sync_saves_total",
			Help: "Shared playlist saves by outcome against the remote tier",
		},
		[]string{"remote_status"}, // synced, local_only, remote_failed
	)

	Resolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_resolves_total",
			Help: "Share code and listing lookups by answering tier",
		},
		[]string{"tier", "outcome"}, // tier: remote, local; outcome: hit, miss, error
	)

	// Remote Store Client
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_remote_requests_total",
			Help: "Remote store calls by operation and outcome",
		},
		[]string{"op", "outcome"}, // outcome: success, failure, rejected, unavailable
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerhour_remote_request_duration_seconds",
			Help:    "Remote store call latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	RemoteAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "powerhour_remote_available",
			Help: "1 when the remote store is configured, reachable and its breaker is not open",
		},
	)

	RemoteIndexCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_remote_index_cache_total",
			Help: "Lookups in the (creator, original playlist) -> remote id cache",
		},
		[]string{"result"}, // hit, miss
	)

	// Circuit Breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "powerhour_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Rating Aggregator
	Ratings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_ratings_total",
			Help: "Rating submissions by outcome",
		},
		[]string{"outcome"}, // accepted, rejected, queued
	)

	Downloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_downloads_total",
			Help: "Download receipts by outcome",
		},
		[]string{"outcome"}, // recorded, duplicate, queued
	)

	// Migration Service
	MigrationItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_migration_items_total",
			Help: "Records processed by migration",
		},
		[]string{"status"}, // migrated, skipped, failed
	)

	// Outbox
	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "powerhour_outbox_pending",
			Help: "Remote writes waiting for replay",
		},
	)

	OutboxReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_outbox_replayed_total",
			Help: "Outbox entries by replay result",
		},
		[]string{"result"}, // delivered, retry, dropped
	)

	// Local Store
	LocalCorruptionResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_local_corruption_resets_total",
			Help: "Unparseable local values that were discarded",
		},
		[]string{"bucket"},
	)

	// Events
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_events_published_total",
			Help: "Change notifications by type and result",
		},
		[]string{"type", "result"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "powerhour_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "powerhour_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordRemoteCall records one remote store call. Errors are classified by
// the model sentinels so label cardinality stays fixed.
func RecordRemoteCall(op string, duration time.Duration, err error) {
	RemoteRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
	RemoteRequests.WithLabelValues(op, RemoteOutcome(err)).Inc()
}

// RemoteOutcome maps an error from the remote tier to a metric label.
func RemoteOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrRemoteUnavailable):
		return "unavailable"
	case errors.Is(err, models.ErrRemoteRejected):
		return "rejected"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	default:
		return "failure"
	}
}

// RecordSave records a coordinator save.
func RecordSave(status models.RemoteStatus) {
	SyncSaves.WithLabelValues(string(status)).Inc()
}

// RecordResolve records which tier answered a lookup.
func RecordResolve(tier, outcome string) {
	Resolves.WithLabelValues(tier, outcome).Inc()
}

// SetRemoteAvailable updates the availability gauge.
func SetRemoteAvailable(ok bool) {
	if ok {
		RemoteAvailable.Set(1)
		return
	}
	RemoteAvailable.Set(0)
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
