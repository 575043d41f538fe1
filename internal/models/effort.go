// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package models

import "time"

// Effort is one timed traversal of a segment within one activity.
// (ActivityID, SegmentID) is unique. Apart from IsPersonalRecord every field
// is fixed at creation.
type Effort struct {
	ID         string `json:"id"`
	SegmentID  string `json:"segment_id"`
	ActivityID string `json:"activity_id"`
	UserID     string `json:"user_id"`

	StartedAt          time.Time `json:"started_at"`
	ElapsedTimeSeconds float64   `json:"elapsed_time_seconds"`
	MovingTimeSeconds  float64   `json:"moving_time_seconds"`
	DistanceMeters     float64   `json:"distance_meters"`
	AverageSpeedMPS    float64   `json:"average_speed_mps"`
	MaxSpeedMPS        float64   `json:"max_speed_mps"`

	// Position of the traversal on the source track, as fractions of the
	// track's length.
	StartFraction float64 `json:"start_fraction"`
	EndFraction   float64 `json:"end_fraction"`

	IsPersonalRecord bool      `json:"is_personal_record"`
	CreatedAt        time.Time `json:"created_at"`
}

// FasterThan reports whether e ranks ahead of o: lower elapsed time, then
// earlier start, then lower ID so that ordering is total.
func (e *Effort) FasterThan(o *Effort) bool {
	if e.ElapsedTimeSeconds != o.ElapsedTimeSeconds {
		return e.ElapsedTimeSeconds < o.ElapsedTimeSeconds
	}
	if !e.StartedAt.Equal(o.StartedAt) {
		return e.StartedAt.Before(o.StartedAt)
	}
	return e.ID < o.ID
}
