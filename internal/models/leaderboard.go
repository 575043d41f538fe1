// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package models

import "time"

// LeaderboardQuery is a fully resolved leaderboard filter: relative scopes
// are already turned into absolute bounds. Zero values mean "no restriction".
type LeaderboardQuery struct {
	SegmentID    string
	Since        *time.Time
	Until        *time.Time
	Gender       string
	MinBirthYear *int
	MaxBirthYear *int
	MinWeightKg  *float64
	MaxWeightKg  *float64 // exclusive
	Country      string
}

// LeaderboardEntry is one user's best effort on a leaderboard.
type LeaderboardEntry struct {
	Rank               int       `json:"rank"`
	UserID             string    `json:"user_id"`
	EffortID           string    `json:"effort_id"`
	ActivityID         string    `json:"activity_id"`
	ElapsedTimeSeconds float64   `json:"elapsed_time_seconds"`
	MovingTimeSeconds  float64   `json:"moving_time_seconds"`
	AverageSpeedMPS    float64   `json:"average_speed_mps"`
	StartedAt          time.Time `json:"started_at"`
	GapSeconds         float64   `json:"gap_seconds"`
}

// LeaderboardView is one page of a leaderboard.
type LeaderboardView struct {
	SegmentID  string             `json:"segment_id"`
	Filter     string             `json:"filter"`
	Entries    []LeaderboardEntry `json:"entries"`
	TotalCount int                `json:"total_count"`
	Offset     int                `json:"offset"`
	Limit      int                `json:"limit"`
}

// PositionView is a user's standing with the entries around it.
type PositionView struct {
	SegmentID  string             `json:"segment_id"`
	UserID     string             `json:"user_id"`
	Rank       int                `json:"rank"`
	TotalCount int                `json:"total_count"`
	Entry      LeaderboardEntry   `json:"entry"`
	Around     []LeaderboardEntry `json:"around"`
}
