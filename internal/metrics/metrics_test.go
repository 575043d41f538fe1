// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordActivityProcessed(t *testing.T) {
	tests := []struct {
		name    string
		outcome string
	}{
		{"success", "success"},
		{"partial", "partial"},
		{"rejected", "rejected"},
		{"duplicate", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(ActivitiesProcessed.WithLabelValues(tt.outcome))
			RecordActivityProcessed(tt.outcome, 20*time.Millisecond)
			after := testutil.ToFloat64(ActivitiesProcessed.WithLabelValues(tt.outcome))
			assert.Equal(t, before+1, after)
		})
	}
}

func TestRecordMatch(t *testing.T) {
	before := testutil.ToFloat64(SegmentMatches)
	RecordMatch(12, 3, 4*time.Millisecond)
	assert.Equal(t, before+3, testutil.ToFloat64(SegmentMatches))
}

func TestRecordEffort(t *testing.T) {
	efforts := testutil.ToFloat64(EffortsCreated)
	prs := testutil.ToFloat64(PersonalRecordsSet)

	RecordEffort(false)
	RecordEffort(true)

	assert.Equal(t, efforts+2, testutil.ToFloat64(EffortsCreated))
	assert.Equal(t, prs+1, testutil.ToFloat64(PersonalRecordsSet))
}

func TestRecordAchievementTransition(t *testing.T) {
	c := AchievementTransitions.WithLabelValues("kom", "lost")
	before := testutil.ToFloat64(c)
	RecordAchievementTransition("kom", "lost")
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestRecordLeaderboardQuery(t *testing.T) {
	hits := testutil.ToFloat64(LeaderboardCacheHits)
	misses := testutil.ToFloat64(LeaderboardCacheMisses)
	ranks := testutil.ToFloat64(LeaderboardQueries.WithLabelValues("rank"))

	RecordLeaderboardQuery("rank", true)
	RecordLeaderboardQuery("rank", false)

	assert.Equal(t, hits+1, testutil.ToFloat64(LeaderboardCacheHits))
	assert.Equal(t, misses+1, testutil.ToFloat64(LeaderboardCacheMisses))
	assert.Equal(t, ranks+2, testutil.ToFloat64(LeaderboardQueries.WithLabelValues("rank")))
}

// TestRecordDBQuery checks observations land in the per-operation histogram
func TestRecordDBQuery(t *testing.T) {
	before := testutil.CollectAndCount(DBQueryDuration)
	RecordDBQuery("metrics_test_unique_op", 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.CollectAndCount(DBQueryDuration))

	// Same label set does not add a series
	RecordDBQuery("metrics_test_unique_op", time.Millisecond)
	assert.Equal(t, before+1, testutil.CollectAndCount(DBQueryDuration))
}

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		endpoint string
		status   string
	}{
		{"upload", "POST", "/api/v1/activities", "202"},
		{"leaderboard", "GET", "/api/v1/segments/{id}/leaderboard", "200"},
		{"not found", "GET", "/api/v1/segments/{id}", "404"},
		{"rate limited", "GET", "/api/v1/users/{id}/achievements", "429"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := APIRequestsTotal.WithLabelValues(tt.method, tt.endpoint, tt.status)
			before := testutil.ToFloat64(c)
			RecordAPIRequest(tt.method, tt.endpoint, tt.status, 15*time.Millisecond)
			assert.Equal(t, before+1, testutil.ToFloat64(c))
		})
	}
}

// TestTrackActiveRequest verifies concurrent inc/dec pairs leave the gauge unchanged
func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			TrackActiveRequest(true)
			TrackActiveRequest(false)
		}()
	}
	wg.Wait()

	assert.Equal(t, before, testutil.ToFloat64(APIActiveRequests))
}

func TestRecordEventConsumed(t *testing.T) {
	ok := EventsConsumed.WithLabelValues("metrics.test", "ok")
	failed := EventsConsumed.WithLabelValues("metrics.test", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordEventConsumed("metrics.test", nil)
	RecordEventConsumed("metrics.test", errors.New("handler failed"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestRecordNotification(t *testing.T) {
	sent := NotificationsSent.WithLabelValues("webhook", "sent")
	before := testutil.ToFloat64(sent)
	RecordNotification("webhook", nil)
	assert.Equal(t, before+1, testutil.ToFloat64(sent))
}

func TestWorkerGauges(t *testing.T) {
	SetWorkerQueueDepth(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(WorkerQueueDepth))
	SetWorkerQueueDepth(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(WorkerQueueDepth))

	retries := testutil.ToFloat64(WorkerRetries)
	RecordWorkerRetry()
	assert.Equal(t, retries+1, testutil.ToFloat64(WorkerRetries))

	rejections := testutil.ToFloat64(LedgerRejections)
	RecordLedgerRejection()
	assert.Equal(t, rejections+1, testutil.ToFloat64(LedgerRejections))

	SetCircuitBreakerState("database", 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(CircuitBreakerState.WithLabelValues("database")))

	published := testutil.ToFloat64(EventsPublished.WithLabelValues("metrics.test"))
	RecordEventPublished("metrics.test")
	assert.Equal(t, published+1, testutil.ToFloat64(EventsPublished.WithLabelValues("metrics.test")))
}
