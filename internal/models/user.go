// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package models

// Profile gender values. An empty gender means unknown.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// UserProfile holds the demographics leaderboard filters use.
// The engine only reads profiles.
type UserProfile struct {
	UserID    string   `json:"user_id"`
	Gender    string   `json:"gender,omitempty"`
	BirthYear *int     `json:"birth_year,omitempty"`
	WeightKg  *float64 `json:"weight_kg,omitempty"`
	Country   string   `json:"country,omitempty"` // ISO 3166-1 alpha-2
}
