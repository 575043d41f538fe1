// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package metrics provides Prometheus metrics for the segment matching pipeline.

All collectors are registered with the default registry through promauto and
are exposed by the server at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Pipeline Metrics:
  - segmentum_activities_processed_total: Activities processed (counter)
    Labels: outcome (success, partial, rejected, failed, duplicate)
  - segmentum_activity_processing_duration_seconds: End-to-end latency (histogram)
  - segmentum_match_duration_seconds: Matching time per activity (histogram)
  - segmentum_match_candidates: Candidate segments per activity (histogram)
  - segmentum_segment_matches_total: Confirmed traversals (counter)
  - segmentum_efforts_created_total: Stored efforts (counter)
  - segmentum_personal_records_total: New personal records (counter)
  - segmentum_achievement_transitions_total: Crowns gained or lost (counter)
    Labels: type, event

Leaderboard Metrics:
  - segmentum_leaderboard_queries_total: Reads (counter)
    Labels: kind (rank, position)
  - segmentum_leaderboard_cache_hits_total / _misses_total (counter)

Database Metrics:
  - duckdb_query_duration_seconds: Query execution time (histogram)
    Labels: operation

API Metrics:
  - api_requests_total: Requests (counter)
    Labels: method, endpoint, status
  - api_request_duration_seconds: Latency (histogram)
    Labels: method, endpoint
  - api_active_requests: In-flight requests (gauge)

Event and Worker Metrics:
  - segmentum_events_published_total, segmentum_events_consumed_total
  - segmentum_notifications_total
  - segmentum_worker_queue_depth, segmentum_worker_retries_total
  - segmentum_ledger_rejections_total
  - segmentum_circuit_breaker_state (0=closed, 1=half-open, 2=open)

# Cardinality Management

The endpoint label carries the chi route pattern, never the raw URL path, so
segment and user ids do not create new series.

# Thread Safety

All recording functions are safe for concurrent use.
*/
package metrics
