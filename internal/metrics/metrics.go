// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

// Package metrics defines the Prometheus instrumentation for Drivelog:
// API traffic, sync runs, provider calls, geocoding and the circuit breaker.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
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
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Sync Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trip_sync_duration_seconds",
			Help:    "Duration of trip sync runs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"mode"}, // "vehicle", "all"
	)

	SyncTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_sync_trips_total",
			Help: "Total number of provider trips handled by outcome",
		},
		[]string{"outcome"}, // "created", "patched", "skipped", "invalid"
	)

	SyncAnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trip_sync_anomalies_total",
			Help: "Total number of created journal entries flagged as anomalous",
		},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_sync_errors_total",
			Help: "Total number of sync errors by type",
		},
		[]string{"error_type"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trip_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync run",
		},
	)

	SyncBackwardSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trip_sync_backward_steps",
			Help:    "Number of backward window shifts taken before trips were found",
			Buckets: []float64{0, 1, 2, 4, 6, 9, 13},
		},
	)

	// Provider Metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gps_provider_requests_total",
			Help: "Total number of GPS provider API requests",
		},
		[]string{"action", "result"}, // action: "login", "querytrips"
	)

	ProviderLogins = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gps_provider_logins_total",
			Help: "Total number of provider logins performed",
		},
	)

	// Geocoding Metrics
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_lookups_total",
			Help: "Total number of reverse geocode lookups",
		},
		[]string{"result"}, // "success", "fallback", "cached"
	)

	GeocodeCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geocode_cache_entries",
			Help: "Current number of cached reverse geocode results",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"topic", "result"},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of trip review notifications created",
		},
	)
)

// ErrorClassifier maps an error to a short label. Packages that own typed
// errors register one so sync metrics stay free of import cycles.
type ErrorClassifier func(error) (string, bool)

var classifiers []ErrorClassifier

// RegisterErrorClassifier adds a classifier consulted by RecordSyncOperation.
// Call it from package init only.
func RegisterErrorClassifier(c ErrorClassifier) {
	classifiers = append(classifiers, c)
}

func classify(err error) string {
	for _, c := range classifiers {
		if label, ok := c(err); ok {
			return label
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordSyncOperation records the outcome of a sync run.
func RecordSyncOperation(mode string, duration time.Duration, err error) {
	SyncDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if err != nil {
		SyncErrors.WithLabelValues(classify(err)).Inc()
		return
	}
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordTripOutcome counts n trips with the given outcome.
func RecordTripOutcome(outcome string, n int) {
	if n > 0 {
		SyncTripsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordProviderRequest records one provider API call.
func RecordProviderRequest(action string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ProviderRequestsTotal.WithLabelValues(action, result).Inc()
}

// RecordGeocodeLookup records a reverse geocode result ("success", "fallback", "cached").
func RecordGeocodeLookup(result string) {
	GeocodeLookups.WithLabelValues(result).Inc()
}

// RecordEventPublished records a domain event publish attempt.
func RecordEventPublished(topic string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(topic, result).Inc()
}
