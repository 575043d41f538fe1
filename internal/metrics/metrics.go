// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	ActivitiesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentum_activities_processed_total",
			Help: "Total number of activities processed, by outcome",
		},
		[]string{"outcome"}, // "success", "partial", "rejected", "failed", "duplicate"
	)

	ActivityProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "segmentum_activity_processing_duration_seconds",
			Help:    "End-to-end processing time of one activity",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "segmentum_match_duration_seconds",
			Help:    "Time spent matching one track against its candidate segments",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	CandidatesEvaluated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "segmentum_match_candidates",
			Help:    "Number of candidate segments evaluated per activity",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	SegmentMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentum_segment_matches_total",
			Help: "Total number of confirmed segment traversals",
		},
	)

	EffortsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentum_efforts_created_total",
			Help: "Total number of efforts stored",
		},
	)

	PersonalRecordsSet = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentum_personal_records_total",
			Help: "Total number of new personal records",
		},
	)

	AchievementTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentum_achievement_transitions_total",
			Help: "Total number of achievement changes",
		},
		[]string{"type", "event"}, // event: "gained", "lost"
	)

	// Leaderboard Metrics
	LeaderboardQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentum_leaderboard_queries_total",
			Help: "Total number of leaderboard queries",
		},
		[]string{"kind"}, // "rank", "position"
	)

	LeaderboardCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentum_leaderboard_cache_hits_total",
			Help: "Total number of leaderboard cache hits",
		},
	)

	LeaderboardCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentum_leaderboard_cache_misses_total",
			Help: "Total number of leaderboard cache misses",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
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

	// Event Bus Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentum_events_published_total",
			Help: "Total number of events published, by topic",
		},
		[]string{"topic"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentum_events_consumed_total",
			Help: "Total number of events handled, by topic and result",
		},
		[]string{"topic", "result"}, // result: "ok", "error"
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "segmentum_notifications_total",
			Help: "Total number of notifications delivered, by notifier and result",
		},
		[]string{"notifier", "result"},
	)

	// Worker Metrics
	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "segmentum_worker_queue_depth",
			Help: "Number of activities waiting for a worker",
		},
	)

	WorkerRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentum_worker_retries_total",
			Help: "Total number of activity processing retries",
		},
	)

	LedgerRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "segmentum_ledger_rejections_total",
			Help: "Total number of activities rejected because they were already in flight",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "segmentum_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordActivityProcessed records one processed activity.
func RecordActivityProcessed(outcome string, duration time.Duration) {
	ActivitiesProcessed.WithLabelValues(outcome).Inc()
	ActivityProcessingDuration.Observe(duration.Seconds())
}

// RecordMatch records one matching pass over candidates.
func RecordMatch(candidates, matches int, duration time.Duration) {
	CandidatesEvaluated.Observe(float64(candidates))
	SegmentMatches.Add(float64(matches))
	MatchDuration.Observe(duration.Seconds())
}

// RecordEffort records a stored effort and whether it set a personal record.
func RecordEffort(personalRecord bool) {
	EffortsCreated.Inc()
	if personalRecord {
		PersonalRecordsSet.Inc()
	}
}

// RecordAchievementTransition records a crown being gained or lost.
func RecordAchievementTransition(achievementType, event string) {
	AchievementTransitions.WithLabelValues(achievementType, event).Inc()
}

// RecordLeaderboardQuery records a leaderboard read and its cache result.
func RecordLeaderboardQuery(kind string, cacheHit bool) {
	LeaderboardQueries.WithLabelValues(kind).Inc()
	if cacheHit {
		LeaderboardCacheHits.Inc()
	} else {
		LeaderboardCacheMisses.Inc()
	}
}

// RecordDBQuery records the duration of one database operation.
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest records API request metrics
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements active request counter
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEventPublished records a published event.
func RecordEventPublished(topic string) {
	EventsPublished.WithLabelValues(topic).Inc()
}

// RecordEventConsumed records a handled event.
func RecordEventConsumed(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsConsumed.WithLabelValues(topic, result).Inc()
}

// RecordNotification records a notification delivery attempt.
func RecordNotification(notifier string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	NotificationsSent.WithLabelValues(notifier, result).Inc()
}

// SetWorkerQueueDepth sets the worker queue gauge.
func SetWorkerQueueDepth(depth int) {
	WorkerQueueDepth.Set(float64(depth))
}

// RecordWorkerRetry records a retried activity.
func RecordWorkerRetry() {
	WorkerRetries.Inc()
}

// RecordLedgerRejection records a duplicate in-flight activity.
func RecordLedgerRejection() {
	LedgerRejections.Inc()
}

// SetCircuitBreakerState records a breaker transition (0=closed, 1=half-open, 2=open).
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
