// Sigvoid - Wireless Management-Frame Threat Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sigvoid

// Package metrics holds the Prometheus collectors for sigvoid.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sensor link
	RecordsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigvoid_records_decoded_total",
			Help: "Sensor records decoded, by record type",
		},
		[]string{"type"},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigvoid_records_skipped_total",
			Help: "Sensor lines discarded, by reason",
		},
		[]string{"reason"}, // "json", "invalid", "oversize"
	)

	LinkReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sigvoid_link_reconnect_attempts_total",
			Help: "Attempts to (re)open the sensor link",
		},
	)

	LinkUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sigvoid_link_up",
			Help: "1 while the sensor link is open",
		},
	)

	CommandsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigvoid_commands_sent_total",
			Help: "Commands written to the sensor, by outcome",
		},
		[]string{"result"}, // "ok", "failed"
	)

	// Queue
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sigvoid_queue_depth",
			Help: "Records waiting for the dispatcher",
		},
	)

	QueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sigvoid_queue_dropped_total",
			Help: "Records evicted by the drop_oldest overflow policy",
		},
	)

	// Dispatcher and scoring
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigvoid_events_applied_total",
			Help: "Records applied to device state, by record type",
		},
		[]string{"type"},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sigvoid_scoring_duration_seconds",
			Help:    "Time spent recomputing scores for one record",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)

	DevicesKnown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sigvoid_devices_known",
			Help: "Distinct transmitter addresses held in memory",
		},
	)

	EvilTwinMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sigvoid_evil_twin_matches_total",
			Help: "Probes matched as a possible evil twin",
		},
	)

	// Alerts
	AlertsFired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sigvoid_alerts_fired_total",
			Help: "Alerts released by the throttler",
		},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sigvoid_alerts_suppressed_total",
			Help: "Alert candidates suppressed by the cooldown",
		},
	)

	AlertDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigvoid_alert_deliveries_total",
			Help: "Alert sink deliveries, by sink and outcome",
		},
		[]string{"sink", "result"},
	)

	// Persistence
	PersistenceOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sigvoid_persistence_operations_total",
			Help: "Persistence gateway calls, by operation and outcome",
		},
		[]string{"operation", "result"},
	)

	EffectsDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sigvoid_effects_queue_depth",
			Help: "Side effects waiting for the ordered writer",
		},
	)

	// Live feed
	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sigvoid_feed_clients",
			Help: "Connected live feed websocket clients",
		},
	)

	// HTTP
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sigvoid_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "route", "status_code"},
	)
)

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// RecordCommand counts one outbound command.
func RecordCommand(ok bool) {
	if ok {
		CommandsSent.WithLabelValues("ok").Inc()
		return
	}
	CommandsSent.WithLabelValues("failed").Inc()
}

// RecordScoring records one recompute pass for a record of the given type.
func RecordScoring(recordType string, d time.Duration) {
	EventsApplied.WithLabelValues(recordType).Inc()
	ScoringDuration.Observe(d.Seconds())
}

// RecordDelivery counts one alert sink delivery.
func RecordDelivery(sink string, err error) {
	AlertDeliveries.WithLabelValues(sink, result(err)).Inc()
}

// RecordPersistence counts one persistence gateway call.
func RecordPersistence(operation string, err error) {
	PersistenceOps.WithLabelValues(operation, result(err)).Inc()
}

// SetLinkUp flips the link gauge.
func SetLinkUp(up bool) {
	if up {
		LinkUp.Set(1)
		return
	}
	LinkUp.Set(0)
}
