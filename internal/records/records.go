// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package records maintains each user's personal record per segment.
//
// Every write for a (user, segment) pair runs inside the keyed exclusive
// section pr:{user}:{segment}, and the flag change itself is a single
// UPDATE, so at most one effort per pair is ever flagged and it is the
// fastest one.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/keylock"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/metrics"
	"github.com/tomtom215/segmentum/internal/models"
)

// Store is the persistence the tracker needs. *database.DB implements it.
// Lookups of a single effort return an error wrapping database.ErrNotFound
// when there is none.
type Store interface {
	InsertEffort(ctx context.Context, e *models.Effort) (bool, error)
	FindEffort(ctx context.Context, activityID, segmentID string) (*models.Effort, error)
	FastestUserEffort(ctx context.Context, userID, segmentID string) (*models.Effort, error)
	PersonalRecordFlags(ctx context.Context, userID, segmentID string) ([]*models.Effort, error)
	SetPersonalRecord(ctx context.Context, userID, segmentID, effortID string) error
	ClearPersonalRecord(ctx context.Context, userID, segmentID string) error
}

// Result describes what RecordEffort did.
type Result struct {
	// Effort is the stored effort. For a repeated call it is the row
	// recorded the first time, not the argument.
	Effort *models.Effort

	// Inserted is false when an effort for (activity, segment) already
	// existed.
	Inserted bool

	// IsPR reports whether Effort is now the user's personal record.
	IsPR bool

	// Previous is the record Effort replaced, if any.
	Previous *models.Effort
}

// ImprovementSeconds is how much faster the new record is than the one it
// replaced, or 0.
func (r *Result) ImprovementSeconds() float64 {
	if !r.IsPR || r.Previous == nil {
		return 0
	}
	return r.Previous.ElapsedTimeSeconds - r.Effort.ElapsedTimeSeconds
}

// Tracker records efforts and keeps personal record flags consistent.
type Tracker struct {
	store Store
	locks *keylock.Locker
}

// NewTracker creates a Tracker. Pass the process-wide locker so every
// writer of the same pair shares one exclusive section.
func NewTracker(store Store, locks *keylock.Locker) *Tracker {
	if locks == nil {
		locks = keylock.New()
	}
	return &Tracker{store: store, locks: locks}
}

func lockKey(userID, segmentID string) string {
	return keylock.Key("pr", userID, segmentID)
}

// RecordEffort stores e and decides whether it is a new personal record.
// Calling it again for the same (activity, segment) returns the stored
// effort unchanged.
func (t *Tracker) RecordEffort(ctx context.Context, e *models.Effort) (*Result, error) {
	if e == nil || e.UserID == "" || e.SegmentID == "" || e.ActivityID == "" {
		return nil, errors.New("records: effort must carry user, segment and activity ids")
	}

	var res *Result
	err := t.locks.Do(ctx, lockKey(e.UserID, e.SegmentID), func(ctx context.Context) error {
		var err error
		res, err = t.recordLocked(ctx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Tracker) recordLocked(ctx context.Context, e *models.Effort) (*Result, error) {
	existing, err := t.store.FindEffort(ctx, e.ActivityID, e.SegmentID)
	switch {
	case err == nil:
		return &Result{Effort: existing, IsPR: existing.IsPersonalRecord}, nil
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("failed to look up effort: %w", err)
	}

	current, consistent, err := t.currentRecord(ctx, e.UserID, e.SegmentID)
	if err != nil {
		return nil, err
	}

	e.IsPersonalRecord = false
	inserted, err := t.store.InsertEffort(ctx, e)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Written by a caller outside this process since the lookup above.
		stored, err := t.store.FindEffort(ctx, e.ActivityID, e.SegmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload effort: %w", err)
		}
		return &Result{Effort: stored, IsPR: stored.IsPersonalRecord}, nil
	}

	res := &Result{Effort: e, Inserted: true}

	if !consistent {
		logging.Warn().
			Str("user_id", e.UserID).
			Str("segment_id", e.SegmentID).
			Msg("Personal record flags inconsistent, re-deriving")
		pr, err := t.rederiveLocked(ctx, e.UserID, e.SegmentID)
		if err != nil {
			return nil, err
		}
		res.IsPR = pr != nil && pr.ID == e.ID
		e.IsPersonalRecord = res.IsPR
		if res.IsPR {
			res.Previous = current
		}
		metrics.RecordEffort(res.IsPR)
		return res, nil
	}

	if current == nil || e.FasterThan(current) {
		if err := t.store.SetPersonalRecord(ctx, e.UserID, e.SegmentID, e.ID); err != nil {
			return nil, err
		}
		e.IsPersonalRecord = true
		res.IsPR = true
		res.Previous = current
	}

	metrics.RecordEffort(res.IsPR)
	return res, nil
}

// currentRecord returns the flagged record and whether the flags are
// consistent: at most one flag, on the fastest effort, and no unflagged
// efforts when nothing is flagged.
func (t *Tracker) currentRecord(ctx context.Context, userID, segmentID string) (*models.Effort, bool, error) {
	flags, err := t.store.PersonalRecordFlags(ctx, userID, segmentID)
	if err != nil {
		return nil, false, err
	}

	fastest, err := t.store.FastestUserEffort(ctx, userID, segmentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, len(flags) == 0, nil
	}
	if err != nil {
		return nil, false, err
	}

	if len(flags) != 1 {
		return fastest, false, nil
	}
	return flags[0], flags[0].ID == fastest.ID, nil
}

// Rederive recomputes the personal record of a (user, segment) pair from
// the stored efforts and returns it, or nil when the user has none left.
func (t *Tracker) Rederive(ctx context.Context, userID, segmentID string) (*models.Effort, error) {
	var pr *models.Effort
	err := t.locks.Do(ctx, lockKey(userID, segmentID), func(ctx context.Context) error {
		var err error
		pr, err = t.rederiveLocked(ctx, userID, segmentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func (t *Tracker) rederiveLocked(ctx context.Context, userID, segmentID string) (*models.Effort, error) {
	fastest, err := t.store.FastestUserEffort(ctx, userID, segmentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, t.store.ClearPersonalRecord(ctx, userID, segmentID)
	}
	if err != nil {
		return nil, err
	}

	if err := t.store.SetPersonalRecord(ctx, userID, segmentID, fastest.ID); err != nil {
		return nil, err
	}
	fastest.IsPersonalRecord = true

	logging.Debug().
		Str("user_id", userID).
		Str("segment_id", segmentID).
		Str("effort_id", fastest.ID).
		Float64("elapsed_seconds", fastest.ElapsedTimeSeconds).
		Msg("Personal record re-derived")
	return fastest, nil
}
