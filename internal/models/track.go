// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package models

import (
	"time"

	"github.com/tomtom215/segmentum/internal/geo"
)

// TrackPoint is a single GPS sample. Time is nil when the source file did not
// record one; such tracks can be matched but not timed.
type TrackPoint struct {
	geo.Point
	Time *time.Time `json:"time,omitempty"`
}

// Track is the decoded GPS trace of one activity. It is immutable once stored.
type Track struct {
	ID           string       `json:"id"` // activity ID
	UserID       string       `json:"user_id"`
	ActivityType string       `json:"activity_type"`
	Name         string       `json:"name,omitempty"`
	Points       []TrackPoint `json:"points"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Geometry returns the track's coordinates without timestamps.
func (t *Track) Geometry() []geo.Point {
	pts := make([]geo.Point, len(t.Points))
	for i := range t.Points {
		pts[i] = t.Points[i].Point
	}
	return pts
}

// Bounds returns the bounding box of the track.
func (t *Track) Bounds() geo.BBox {
	return geo.Bounds(t.Geometry())
}

// HasTiming reports whether every point carries a timestamp.
func (t *Track) HasTiming() bool {
	if len(t.Points) == 0 {
		return false
	}
	for i := range t.Points {
		if t.Points[i].Time == nil {
			return false
		}
	}
	return true
}

// StartTime returns the first point's timestamp, or the zero time.
func (t *Track) StartTime() time.Time {
	if len(t.Points) == 0 || t.Points[0].Time == nil {
		return time.Time{}
	}
	return *t.Points[0].Time
}

// ActivitySummary is the lightweight row used to pick backfill candidates.
type ActivitySummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	StartedAt    time.Time `json:"started_at"`
	Bounds       geo.BBox  `json:"bounds"`
}
