// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package pipeline

import (
	"context"
	"errors"

	"github.com/tomtom215/segmentum/internal/effort"
	"github.com/tomtom215/segmentum/internal/ledger"
)

var (
	// ErrTrackTooShort is returned for a track with fewer points than
	// matching.min_track_points.
	ErrTrackTooShort = errors.New("track has too few points")

	// ErrTrackNotFound is returned when the activity has no stored track.
	ErrTrackNotFound = errors.New("track not found")

	// ErrSegmentNotFound is returned for an unknown or deleted segment.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrInvalidSegment is returned when a segment cannot be built from
	// the request.
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrNotOwner is returned when a segment is cut from another user's
	// activity.
	ErrNotOwner = errors.New("activity belongs to another user")

	// ErrQueueFull is returned by Submit when the worker queue is full.
	ErrQueueFull = errors.New("worker queue is full")

	// ErrPoolStopped is returned by Submit once the pool has shut down.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// IsInputDefect reports whether err is caused by the uploaded data itself.
// Such failures are never retried.
func IsInputDefect(err error) bool {
	return errors.Is(err, ErrTrackTooShort) ||
		errors.Is(err, effort.ErrNoTimingData) ||
		errors.Is(err, effort.ErrNonMonotonicTime) ||
		errors.Is(err, effort.ErrInvalidRange) ||
		errors.Is(err, ErrInvalidSegment)
}

// Retryable reports whether processing that failed with err may succeed
// on a later attempt.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case IsInputDefect(err),
		errors.Is(err, ErrTrackNotFound),
		errors.Is(err, ErrSegmentNotFound),
		errors.Is(err, ledger.ErrInFlight),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
