// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package notify

import (
	"context"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/logging"
)

// LogNotifier logs each event at info level.
type LogNotifier struct {
	enabled bool
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(enabled bool) *LogNotifier {
	return &LogNotifier{enabled: enabled}
}

func (n *LogNotifier) Name() string  { return "log" }
func (n *LogNotifier) Enabled() bool { return n.enabled }

// Send logs ev. It never fails.
func (n *LogNotifier) Send(ctx context.Context, ev achievements.Event) error {
	a := ev.Achievement
	event := logging.Ctx(ctx).Info().
		Str("component", "notify").
		Str("event", string(ev.Type)).
		Str("achievement_type", string(a.Type)).
		Str("segment_id", a.SegmentID).
		Str("user_id", a.UserID).
		Time("occurred_at", ev.OccurredAt)
	if a.ElapsedTimeSeconds != nil {
		event = event.Float64("elapsed_time_seconds", *a.ElapsedTimeSeconds)
	}
	if a.EffortCount != nil {
		event = event.Int("effort_count", *a.EffortCount)
	}
	if ev.Counterpart != nil {
		event = event.Str("counterpart_user_id", ev.Counterpart.UserID)
	}
	event.Msg("Achievement notification")
	return nil
}
