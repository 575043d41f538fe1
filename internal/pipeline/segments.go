// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/models"
)

// CreateSegmentInput describes a new segment. Geometry comes either from
// Points or from the part of the creator's own activity between
// StartFraction and EndFraction.
type CreateSegmentInput struct {
	Name         string
	ActivityType string
	CreatorID    string
	Visibility   string
	Points       []geo.Point

	ActivityID    string
	StartFraction float64
	EndFraction   float64
}

// CreateSegment builds, profiles and stores a segment, then schedules a
// backfill against stored activities.
func (p *Processor) CreateSegment(ctx context.Context, in CreateSegmentInput) (*models.Segment, error) {
	pts := in.Points
	activityType := in.ActivityType

	if in.ActivityID != "" {
		track, err := p.loadTrack(ctx, in.ActivityID)
		if err != nil {
			return nil, err
		}
		if track.UserID != in.CreatorID {
			return nil, fmt.Errorf("activity %s: %w", in.ActivityID, ErrNotOwner)
		}
		if in.StartFraction < 0 || in.EndFraction > 1 || in.StartFraction >= in.EndFraction {
			return nil, fmt.Errorf("%w: fraction range [%v, %v]", ErrInvalidSegment, in.StartFraction, in.EndFraction)
		}
		pts = geo.SubLine(track.Geometry(), in.StartFraction, in.EndFraction)
		if activityType == "" {
			activityType = track.ActivityType
		}
	}

	for i, pt := range pts {
		if !pt.Valid() {
			return nil, fmt.Errorf("%w: point %d out of range", ErrInvalidSegment, i)
		}
	}
	profile, err := p.deriver.Profile(pts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSegment, err)
	}
	if profile.DistanceMeters <= 0 {
		return nil, fmt.Errorf("%w: zero length", ErrInvalidSegment)
	}

	seg := &models.Segment{
		ID:                  p.newID(),
		Name:                strings.TrimSpace(in.Name),
		ActivityType:        activityType,
		CreatorID:           in.CreatorID,
		Visibility:          in.Visibility,
		Points:              pts,
		DistanceMeters:      profile.DistanceMeters,
		ElevationGainMeters: profile.ElevationGainMeters,
		ElevationLossMeters: profile.ElevationLossMeters,
		AverageGrade:        profile.AverageGrade,
		MaxGrade:            profile.MaxGrade,
		ClimbCategory:       profile.ClimbCategory,
		Bounds:              geo.Bounds(pts),
		CreatedAt:           p.now().UTC(),
	}
	if err := p.deps.Store.InsertSegment(ctx, seg); err != nil {
		return nil, fmt.Errorf("store segment: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("segment_id", seg.ID).
		Str("creator_id", seg.CreatorID).
		Float64("distance_meters", seg.DistanceMeters).
		Str("climb_category", seg.ClimbCategory).
		Msg("Segment created")

	if p.deps.Backfill != nil {
		if err := p.deps.Backfill.ScheduleBackfill(ctx, seg); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("segment_id", seg.ID).Msg("Failed to schedule segment backfill")
		}
	}
	return seg, nil
}

// BackfillResult reports a segment backfill.
type BackfillResult struct {
	SegmentID     string           `json:"segment_id"`
	TracksScanned int              `json:"tracks_scanned"`
	Skipped       int              `json:"skipped"`
	Efforts       []EffortOutcome  `json:"efforts,omitempty"`
	Failures      []SegmentFailure `json:"failures,omitempty"`
}

// BackfillSegment matches a segment against every stored activity of its
// type whose bounds come near it. Activities that cannot be timed are
// skipped. Like ProcessActivity it is idempotent.
func (p *Processor) BackfillSegment(ctx context.Context, segmentID string) (*BackfillResult, error) {
	seg, err := p.deps.Store.GetSegment(ctx, segmentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("segment %s: %w", segmentID, ErrSegmentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	if seg.Deleted() {
		return nil, fmt.Errorf("segment %s: %w", segmentID, ErrSegmentNotFound)
	}

	bbox := geo.Bounds(seg.Points).Expand(p.matching.CandidateRadiusMeters)
	owner := ""
	if seg.Visibility == models.VisibilityPrivate {
		owner = seg.CreatorID
	}
	summaries, err := p.deps.Store.FindCandidateTracks(ctx, bbox, seg.ActivityType, owner)
	if err != nil {
		return nil, fmt.Errorf("find candidate tracks: %w", err)
	}

	res := &BackfillResult{SegmentID: segmentID}
	candidates := []*models.Segment{seg}
	for _, s := range summaries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.TracksScanned++

		track, err := p.loadTrack(ctx, s.ID)
		if err != nil {
			res.Failures = append(res.Failures, SegmentFailure{SegmentID: segmentID, Error: err.Error()})
			continue
		}
		if !seg.MatchableBy(track.UserID) || p.validateTrack(track) != nil {
			res.Skipped++
			continue
		}

		matches, err := p.match(ctx, track, candidates)
		if err != nil {
			return res, err
		}
		for _, m := range matches {
			out, err := p.recordMatch(ctx, track, m)
			if err != nil {
				res.Failures = append(res.Failures, SegmentFailure{SegmentID: segmentID, Error: fmt.Sprintf("activity %s: %v", track.ID, err)})
				continue
			}
			res.Efforts = append(res.Efforts, *out)
		}
	}

	logging.Ctx(ctx).Info().
		Str("segment_id", segmentID).
		Int("tracks_scanned", res.TracksScanned).
		Int("efforts", len(res.Efforts)).
		Int("failures", len(res.Failures)).
		Msg("Segment backfill finished")
	return res, nil
}

// DeleteResult reports an activity deletion.
type DeleteResult struct {
	ActivityID string   `json:"activity_id"`
	Segments   []string `json:"segments"`
}

// DeleteActivity removes an activity's track and efforts, then re-derives
// personal records and achievements on every segment the activity had an
// effort on.
func (p *Processor) DeleteActivity(ctx context.Context, activityID string) (*DeleteResult, error) {
	refs, err := p.deps.Store.DeleteTrack(ctx, activityID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("activity %s: %w", activityID, ErrTrackNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("delete track: %w", err)
	}

	res := &DeleteResult{ActivityID: activityID}
	seen := make(map[string]bool, len(refs))
	var errs []error
	for _, ref := range refs {
		if _, err := p.deps.Records.Rederive(ctx, ref.UserID, ref.SegmentID); err != nil {
			errs = append(errs, fmt.Errorf("segment %s: %w", ref.SegmentID, err))
		}
		if seen[ref.SegmentID] {
			continue
		}
		seen[ref.SegmentID] = true
		res.Segments = append(res.Segments, ref.SegmentID)
	}
	for _, segmentID := range res.Segments {
		if _, err := p.deps.Achievements.Reconcile(ctx, segmentID); err != nil {
			errs = append(errs, fmt.Errorf("segment %s: %w", segmentID, err))
		}
		p.deps.Leaderboards.Invalidate(segmentID)
	}

	logging.Ctx(ctx).Info().
		Str("activity_id", activityID).
		Int("segments", len(res.Segments)).
		Msg("Activity deleted")
	return res, errors.Join(errs...)
}

// DeleteSegment soft-deletes a segment and drops its cached leaderboards.
func (p *Processor) DeleteSegment(ctx context.Context, segmentID string) error {
	err := p.deps.Store.SoftDeleteSegment(ctx, segmentID, p.now().UTC())
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("segment %s: %w", segmentID, ErrSegmentNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	p.deps.Leaderboards.Invalidate(segmentID)
	return nil
}
