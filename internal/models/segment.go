// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package models

import (
	"time"

	"github.com/tomtom215/segmentum/internal/geo"
)

// Segment visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Climb categories, hardest first. ClimbNone marks a segment that is flat or
// too short to categorize.
const (
	ClimbHC   = "HC"
	ClimbCat1 = "1"
	ClimbCat2 = "2"
	ClimbCat3 = "3"
	ClimbCat4 = "4"
	ClimbNone = "NC"
)

// Segment is a user-defined route section that efforts are matched against.
// Segments are soft-deleted; DeletedAt is set instead of removing the row so
// that historical efforts keep a valid reference.
type Segment struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	ActivityType string      `json:"activity_type"`
	CreatorID    string      `json:"creator_id"`
	Visibility   string      `json:"visibility"`
	Points       []geo.Point `json:"points"`

	DistanceMeters      float64 `json:"distance_meters"`
	ElevationGainMeters float64 `json:"elevation_gain_meters"`
	ElevationLossMeters float64 `json:"elevation_loss_meters"`
	AverageGrade        float64 `json:"average_grade"` // percent
	MaxGrade            float64 `json:"max_grade"`     // percent
	ClimbCategory       string  `json:"climb_category"`

	Bounds geo.BBox `json:"bounds"`

	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Start returns the first point of the segment.
func (s *Segment) Start() geo.Point { return s.Points[0] }

// End returns the last point of the segment.
func (s *Segment) End() geo.Point { return s.Points[len(s.Points)-1] }

// Deleted reports whether the segment has been soft-deleted.
func (s *Segment) Deleted() bool { return s.DeletedAt != nil }

// MatchableBy reports whether efforts by userID may be recorded on the
// segment. Private segments only count their creator's activities.
func (s *Segment) MatchableBy(userID string) bool {
	return s.Visibility != VisibilityPrivate || s.CreatorID == userID
}
