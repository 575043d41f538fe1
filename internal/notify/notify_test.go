// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/models"
)

func testEvent() achievements.Event {
	elapsed := 300.0
	effortID := "e2"
	return achievements.Event{
		Type: achievements.EventGained,
		Achievement: models.Achievement{
			ID:                 "ach-1",
			UserID:             "u2",
			SegmentID:          "seg1",
			Type:               models.AchievementKOM,
			EffortID:           &effortID,
			ElapsedTimeSeconds: &elapsed,
			EarnedAt:           time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		Counterpart: &models.Achievement{ID: "ach-0", UserID: "u1", SegmentID: "seg1", Type: models.AchievementKOM},
		OccurredAt:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got WebhookPayload
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(srv.URL, 0, time.Second)
	require.NoError(t, err)
	assert.True(t, n.Enabled())

	require.NoError(t, n.Send(context.Background(), testEvent()))

	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, userAgent, gotHeaders.Get("User-Agent"))
	assert.Equal(t, "achievement.gained", got.Event)
	assert.Equal(t, "u2", got.Achievement.UserID)
	assert.Equal(t, models.AchievementKOM, got.Achievement.Type)
	require.NotNil(t, got.Counterpart)
	assert.Equal(t, "u1", got.Counterpart.UserID)
}

func TestWebhookNotifier_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer srv.Close()

			n, err := NewWebhookNotifier(srv.URL, 0, time.Second)
			require.NoError(t, err)

			err = n.Send(context.Background(), testEvent())
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "nope", se.Body)
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}
}

func TestWebhookNotifier_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(srv.URL, time.Hour, time.Second)
	require.NoError(t, err)

	require.NoError(t, n.Send(context.Background(), testEvent()))

	// The second send has to wait an hour for a token.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = n.Send(ctx, testEvent())
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewWebhookNotifier_Validation(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"", false},
		{"https://hooks.example.com/segmentum", false},
		{"http://localhost:9000/hook", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := NewWebhookNotifier(tt.url, 0, 0)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			assert.NoError(t, err)
		})
	}

	n, err := NewWebhookNotifier("", 0, 0)
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.False(t, IsTransient(n.Send(context.Background(), testEvent())))
}

type stubNotifier struct {
	name    string
	enabled bool
	err     error
	sent    int
}

func (s *stubNotifier) Name() string  { return s.name }
func (s *stubNotifier) Enabled() bool { return s.enabled }
func (s *stubNotifier) Send(context.Context, achievements.Event) error {
	s.sent++
	return s.err
}

func TestDispatcher_FansOutToEnabled(t *testing.T) {
	a := &stubNotifier{name: "a", enabled: true}
	b := &stubNotifier{name: "b", enabled: false}
	c := &stubNotifier{name: "c", enabled: true, err: &StatusError{StatusCode: 400}}

	d := NewDispatcherWith(a, b, c, nil)
	assert.Equal(t, []string{"a", "c"}, d.Notifiers())

	// A permanent failure is logged, not returned.
	require.NoError(t, d.Dispatch(context.Background(), testEvent()))
	assert.Equal(t, 1, a.sent)
	assert.Equal(t, 0, b.sent)
	assert.Equal(t, 1, c.sent)
}

func TestDispatcher_ReturnsTransientErrors(t *testing.T) {
	down := errors.New("connection refused")
	a := &stubNotifier{name: "a", enabled: true}
	b := &stubNotifier{name: "b", enabled: true, err: down}

	d := NewDispatcherWith(a, b)
	err := d.Dispatch(context.Background(), testEvent())
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 1, a.sent)

	// As a sink it never fails the engine.
	assert.NoError(t, d.NotifyAchievement(context.Background(), testEvent()))
}

func TestNewDispatcher_FromConfig(t *testing.T) {
	d, err := NewDispatcher(config.NotifyConfig{LogEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"log"}, d.Notifiers())

	_, err = NewDispatcher(config.NotifyConfig{WebhookURL: "mailto:someone"})
	assert.Error(t, err)
}

func TestLogNotifier_Send(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	defer logging.SetLogger(prev)

	n := NewLogNotifier(true)
	require.NoError(t, n.Send(context.Background(), testEvent()))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "Achievement notification", line["message"])
	assert.Equal(t, "achievement.gained", line["event"])
	assert.Equal(t, "kom", line["achievement_type"])
	assert.Equal(t, "u1", line["counterpart_user_id"])
	assert.Equal(t, 300.0, line["elapsed_time_seconds"])
}
