// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/eventprocessor"
	"github.com/tomtom215/segmentum/internal/leaderboard"
	"github.com/tomtom215/segmentum/internal/ledger"
	"github.com/tomtom215/segmentum/internal/models"
	"github.com/tomtom215/segmentum/internal/pipeline"
)

// Store is the read and write surface the handlers use directly.
// *database.DB implements it.
type Store interface {
	Ping(ctx context.Context) error
	InsertTrack(ctx context.Context, t *models.Track) error
	GetTrack(ctx context.Context, id string) (*models.Track, error)
	GetSegment(ctx context.Context, id string) (*models.Segment, error)
	UserSegmentEfforts(ctx context.Context, userID, segmentID string) ([]*models.Effort, error)
	UpsertUserProfile(ctx context.Context, p *models.UserProfile) error
}

// Segments creates and deletes segments and activities. *pipeline.Processor
// implements it.
type Segments interface {
	CreateSegment(ctx context.Context, in pipeline.CreateSegmentInput) (*models.Segment, error)
	DeleteSegment(ctx context.Context, segmentID string) error
	DeleteActivity(ctx context.Context, activityID string) (*pipeline.DeleteResult, error)
}

// EventPublisher hands uploaded activities to the event bus.
// *eventprocessor.Publisher implements it.
type EventPublisher interface {
	PublishActivityUploaded(ctx context.Context, ev *eventprocessor.ActivityUploadedEvent) error
}

// Leaderboards is the ranking read side. *leaderboard.Ranker implements it.
type Leaderboards interface {
	Rank(ctx context.Context, segmentID string, f leaderboard.Filter, page leaderboard.Page) (*models.LeaderboardView, error)
	Position(ctx context.Context, segmentID string, f leaderboard.Filter, userID string, window int) (*models.PositionView, error)
}

// Achievements is the achievement read side. *achievements.Engine implements it.
type Achievements interface {
	SegmentAchievements(ctx context.Context, segmentID string) (*models.SegmentAchievements, error)
	UserAchievements(ctx context.Context, userID string, activeOnly bool) ([]*models.Achievement, error)
}

// StatusReader reports activity processing state. Every ledger.Ledger implements it.
type StatusReader interface {
	Status(ctx context.Context, activityID string) (*ledger.Entry, error)
}

// ReadinessCheck is one named dependency probed by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps wires the handlers to the rest of the server.
type Deps struct {
	Store        Store
	Segments     Segments
	Publisher    EventPublisher
	Leaderboards Leaderboards
	Achievements Achievements
	Ledger       StatusReader

	// Checks are probed by the readiness endpoint in addition to the store.
	Checks []ReadinessCheck
}

// Handler serves the REST API.
//
// Handler methods are split across files:
//   - handlers_health.go: liveness and readiness
//   - handlers_activities.go: upload, reprocess, status, delete
//   - handlers_segments.go: segments, leaderboards, segment achievements, efforts
//   - handlers_users.go: user achievements and profiles
type Handler struct {
	deps      Deps
	config    *config.Config
	startTime time.Time
	newID     func() string
}

// NewHandler creates the API handler.
func NewHandler(deps Deps, cfg *config.Config) *Handler {
	return &Handler{
		deps:      deps,
		config:    cfg,
		startTime: time.Now(),
		newID:     func() string { return uuid.New().String() },
	}
}
