// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package eventprocessor

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/segmentum/internal/achievements"
)

// SchemaVersion is the current payload version. Consumers treat a missing
// version as 1.
const SchemaVersion = 1

// Topics.
const (
	TopicActivityUploaded  = "activity.uploaded"
	TopicSegmentCreated    = "segment.created"
	TopicAchievementGained = string(achievements.EventGained)
	TopicAchievementLost   = string(achievements.EventLost)
	TopicPoison            = "events.poison"
)

// ActivityUploadedEvent asks for an activity to be matched. Reprocess is
// set when the request came from the reprocess endpoint rather than an
// upload.
type ActivityUploadedEvent struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	ActivityID    string    `json:"activity_id"`
	UserID        string    `json:"user_id"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Reprocess     bool      `json:"reprocess,omitempty"`
}

// NewActivityUploadedEvent creates an event with a fresh id.
func NewActivityUploadedEvent(activityID, userID string) *ActivityUploadedEvent {
	return &ActivityUploadedEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		ActivityID:    activityID,
		UserID:        userID,
		UploadedAt:    time.Now().UTC(),
	}
}

// Validate checks the required fields.
func (e *ActivityUploadedEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.ActivityID == "" {
		return &ValidationError{Field: "activity_id", Message: "required"}
	}
	return nil
}

// SegmentCreatedEvent triggers a backfill of stored activities against a
// new segment.
type SegmentCreatedEvent struct {
	SchemaVersion int       `json:"schema_version,omitempty"`
	EventID       string    `json:"event_id"`
	SegmentID     string    `json:"segment_id"`
	CreatorID     string    `json:"creator_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewSegmentCreatedEvent creates an event with a fresh id.
func NewSegmentCreatedEvent(segmentID, creatorID string) *SegmentCreatedEvent {
	return &SegmentCreatedEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		SegmentID:     segmentID,
		CreatorID:     creatorID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate checks the required fields.
func (e *SegmentCreatedEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.SegmentID == "" {
		return &ValidationError{Field: "segment_id", Message: "required"}
	}
	return nil
}

// AchievementEvent carries an achievements.Event on the bus.
type AchievementEvent struct {
	SchemaVersion int    `json:"schema_version,omitempty"`
	EventID       string `json:"event_id"`
	achievements.Event
}

// NewAchievementEvent wraps ev with a fresh id.
func NewAchievementEvent(ev achievements.Event) *AchievementEvent {
	return &AchievementEvent{
		SchemaVersion: SchemaVersion,
		EventID:       uuid.NewString(),
		Event:         ev,
	}
}

// Topic is the topic the event is published on.
func (e *AchievementEvent) Topic() string {
	return string(e.Type)
}

// Validate checks the required fields.
func (e *AchievementEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.Type != achievements.EventGained && e.Type != achievements.EventLost {
		return &ValidationError{Field: "type", Message: "must be achievement.gained or achievement.lost"}
	}
	if e.Achievement.SegmentID == "" || e.Achievement.UserID == "" {
		return &ValidationError{Field: "achievement", Message: "segment_id and user_id are required"}
	}
	if !e.Achievement.Type.Valid() {
		return &ValidationError{Field: "achievement.type", Message: "unknown achievement type"}
	}
	return nil
}
