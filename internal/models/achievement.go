// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package models

import "time"

// AchievementType identifies a crown.
type AchievementType string

// Achievement types. Each has at most one active holder per segment.
const (
	AchievementKOM          AchievementType = "kom"
	AchievementQOM          AchievementType = "qom"
	AchievementCourseRecord AchievementType = "course_record"
	AchievementLocalLegend  AchievementType = "local_legend"
)

// AchievementTypes lists all types in evaluation order.
var AchievementTypes = []AchievementType{
	AchievementKOM,
	AchievementQOM,
	AchievementCourseRecord,
	AchievementLocalLegend,
}

// Valid reports whether t is a known achievement type.
func (t AchievementType) Valid() bool {
	switch t {
	case AchievementKOM, AchievementQOM, AchievementCourseRecord, AchievementLocalLegend:
		return true
	}
	return false
}

// Timed reports whether the crown is decided by elapsed time (as opposed to
// effort count).
func (t AchievementType) Timed() bool {
	return t != AchievementLocalLegend
}

// Gender returns the profile gender a holder must have, or "" when the crown
// is open to everyone.
func (t AchievementType) Gender() string {
	switch t {
	case AchievementKOM:
		return GenderMale
	case AchievementQOM:
		return GenderFemale
	}
	return ""
}

// Achievement is one tenure of a crown. Rows are never deleted; losing a
// crown sets LostAt.
type Achievement struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	SegmentID string          `json:"segment_id"`
	Type      AchievementType `json:"type"`

	// Set for timed crowns.
	EffortID           *string  `json:"effort_id,omitempty"`
	ElapsedTimeSeconds *float64 `json:"elapsed_time_seconds,omitempty"`

	// Set for local legend.
	EffortCount *int `json:"effort_count,omitempty"`

	EarnedAt time.Time  `json:"earned_at"`
	LostAt   *time.Time `json:"lost_at,omitempty"`
}

// Active reports whether the achievement is currently held.
func (a *Achievement) Active() bool { return a.LostAt == nil }

// SegmentAchievements is the current holder of every crown on a segment.
// Nil fields are vacant.
type SegmentAchievements struct {
	SegmentID    string       `json:"segment_id"`
	KOM          *Achievement `json:"kom"`
	QOM          *Achievement `json:"qom"`
	CourseRecord *Achievement `json:"course_record"`
	LocalLegend  *Achievement `json:"local_legend"`
}

// Set stores a into the slot for its type.
func (s *SegmentAchievements) Set(a *Achievement) {
	switch a.Type {
	case AchievementKOM:
		s.KOM = a
	case AchievementQOM:
		s.QOM = a
	case AchievementCourseRecord:
		s.CourseRecord = a
	case AchievementLocalLegend:
		s.LocalLegend = a
	}
}

// EffortCount is a user's number of efforts on a segment within a window.
type EffortCount struct {
	UserID     string    `json:"user_id"`
	Count      int       `json:"count"`
	LastEffort time.Time `json:"last_effort"`
}
