// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package achievements

import (
	"context"
	"time"

	"github.com/tomtom215/segmentum/internal/models"
)

// EventType names an achievement change. The values double as event bus
// topics.
type EventType string

const (
	EventGained EventType = "achievement.gained"
	EventLost   EventType = "achievement.lost"
)

// Event reports one side of an achievement change.
type Event struct {
	Type        EventType          `json:"type"`
	Achievement models.Achievement `json:"achievement"`

	// Counterpart is the other side of a transfer: the displaced holder
	// for a gain, the new holder for a loss. Nil when the crown was vacant
	// or becomes vacant.
	Counterpart *models.Achievement `json:"counterpart,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Sink receives achievement events after they are persisted.
type Sink interface {
	NotifyAchievement(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) NotifyAchievement(ctx context.Context, ev Event) error { return f(ctx, ev) }

type nopSink struct{}

func (nopSink) NotifyAchievement(context.Context, Event) error { return nil }
