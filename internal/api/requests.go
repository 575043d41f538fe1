// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
	"github.com/tomtom215/segmentum/internal/pipeline"
)

// UploadRequest holds the query parameters of an activity upload.
type UploadRequest struct {
	UserID       string `json:"user_id" validate:"required,max=128"`
	ActivityType string `json:"activity_type" validate:"omitempty,activitytype"`
	Name         string `json:"name" validate:"max=200"`
}

// UploadResponse is returned with 202 once the track is stored.
// Queued is false when the processing event could not be published; the
// activity can then be queued again with POST /activities/{id}/process.
type UploadResponse struct {
	ActivityID   string `json:"activity_id"`
	UserID       string `json:"user_id"`
	ActivityType string `json:"activity_type"`
	Name         string `json:"name,omitempty"`
	Points       int    `json:"points"`
	Timed        bool   `json:"timed"`
	Queued       bool   `json:"queued"`
}

// PointRequest is one segment vertex.
type PointRequest struct {
	Lat       float64  `json:"lat" validate:"latitude"`
	Lon       float64  `json:"lon" validate:"longitude"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// CreateSegmentRequest is the body of POST /segments. Geometry is given
// either as points or as a fraction range of one of the creator's
// activities.
//
// Example:
//
//	{"name": "Hawk Hill", "creator_id": "u1", "activity_id": "a1",
//	 "start_fraction": 0.2, "end_fraction": 0.45}
type CreateSegmentRequest struct {
	Name          string         `json:"name" validate:"required,min=1,max=100"`
	ActivityType  string         `json:"activity_type" validate:"omitempty,activitytype"`
	CreatorID     string         `json:"creator_id" validate:"required,max=128"`
	Visibility    string         `json:"visibility" validate:"omitempty,oneof=public private"`
	Points        []PointRequest `json:"points" validate:"omitempty,min=2,max=20000,dive"`
	ActivityID    string         `json:"activity_id" validate:"omitempty,max=128"`
	StartFraction *float64       `json:"start_fraction" validate:"omitempty,fraction"`
	EndFraction   *float64       `json:"end_fraction" validate:"omitempty,fraction"`
}

func (req *CreateSegmentRequest) input() pipeline.CreateSegmentInput {
	in := pipeline.CreateSegmentInput{
		Name:         req.Name,
		ActivityType: req.ActivityType,
		CreatorID:    req.CreatorID,
		Visibility:   req.Visibility,
		ActivityID:   req.ActivityID,
		EndFraction:  1,
	}
	if in.Visibility == "" {
		in.Visibility = "public"
	}
	if req.StartFraction != nil {
		in.StartFraction = *req.StartFraction
	}
	if req.EndFraction != nil {
		in.EndFraction = *req.EndFraction
	}
	if len(req.Points) > 0 {
		in.Points = make([]geo.Point, len(req.Points))
		for i, p := range req.Points {
			in.Points[i] = geo.Point{Lat: p.Lat, Lon: p.Lon, Elevation: p.Elevation}
		}
	}
	return in
}

// ProfileRequest is the body of PUT /users/{id}/profile.
type ProfileRequest struct {
	Gender    string   `json:"gender" validate:"omitempty,oneof=M F"`
	BirthYear *int     `json:"birth_year" validate:"omitempty,gte=1900,lte=2100"`
	WeightKg  *float64 `json:"weight_kg" validate:"omitempty,gt=0,lt=500"`
	Country   string   `json:"country" validate:"omitempty,iso3166_1_alpha2"`
}

func (req *ProfileRequest) profile(userID string) *models.UserProfile {
	return &models.UserProfile{
		UserID:    userID,
		Gender:    req.Gender,
		BirthYear: req.BirthYear,
		WeightKg:  req.WeightKg,
		Country:   req.Country,
	}
}

// PositionRequest holds the query parameters of a leaderboard position lookup.
type PositionRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
	Window int    `json:"window" validate:"gte=-1,lte=50"`
}

// PageRequest holds offset/limit query parameters.
type PageRequest struct {
	Offset int `json:"offset" validate:"gte=0,lte=1000000"`
	Limit  int `json:"limit" validate:"gte=0,lte=1000"`
}
