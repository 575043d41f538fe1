// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/segmentum/internal/models"
)

const effortColumns = `e.id, e.segment_id, e.activity_id, e.user_id, e.started_at,
	e.elapsed_time_seconds, e.moving_time_seconds, e.distance_meters, e.average_speed_mps, e.max_speed_mps,
	e.start_fraction, e.end_fraction, e.is_personal_record, e.created_at`

// fastestOrder is the total effort order: time, then start, then id.
const fastestOrder = `e.elapsed_time_seconds ASC, e.started_at ASC, e.id ASC`

// InsertEffort stores an effort unless one already exists for the same
// (activity, segment). It reports whether a row was inserted; a retried
// attempt of the same activity inserts nothing.
func (db *DB) InsertEffort(ctx context.Context, e *models.Effort) (bool, error) {
	defer observe("insert_effort")()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var inserted bool
	err := withConflictRetry(ctx, "insert_effort", func() error {
		res, err := db.conn.ExecContext(ctx, `INSERT INTO efforts (
				id, segment_id, activity_id, user_id, started_at,
				elapsed_time_seconds, moving_time_seconds, distance_meters, average_speed_mps, max_speed_mps,
				start_fraction, end_fraction, is_personal_record, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			e.ID, e.SegmentID, e.ActivityID, e.UserID, e.StartedAt.UTC(),
			e.ElapsedTimeSeconds, e.MovingTimeSeconds, e.DistanceMeters, e.AverageSpeedMPS, e.MaxSpeedMPS,
			e.StartFraction, e.EndFraction, e.IsPersonalRecord, e.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert effort: %w", err)
	}
	return inserted, nil
}

// GetEffort loads one effort by id.
func (db *DB) GetEffort(ctx context.Context, id string) (*models.Effort, error) {
	defer observe("get_effort")()
	return db.queryEffort(ctx, `SELECT `+effortColumns+` FROM efforts e WHERE e.id = ?`, id)
}

// FindEffort returns the effort recorded for (activity, segment).
func (db *DB) FindEffort(ctx context.Context, activityID, segmentID string) (*models.Effort, error) {
	defer observe("find_effort")()
	return db.queryEffort(ctx, `SELECT `+effortColumns+` FROM efforts e
		WHERE e.activity_id = ? AND e.segment_id = ?`, activityID, segmentID)
}

// FastestUserEffort returns the user's fastest effort on the segment.
func (db *DB) FastestUserEffort(ctx context.Context, userID, segmentID string) (*models.Effort, error) {
	defer observe("fastest_user_effort")()
	return db.queryEffort(ctx, `SELECT `+effortColumns+` FROM efforts e
		WHERE e.user_id = ? AND e.segment_id = ?
		ORDER BY `+fastestOrder+` LIMIT 1`, userID, segmentID)
}

// FastestEffort returns the fastest effort on the segment by anyone, or by
// users whose profile has the given gender when gender is set.
func (db *DB) FastestEffort(ctx context.Context, segmentID, gender string) (*models.Effort, error) {
	defer observe("fastest_effort")()
	if gender == "" {
		return db.queryEffort(ctx, `SELECT `+effortColumns+` FROM efforts e
			WHERE e.segment_id = ?
			ORDER BY `+fastestOrder+` LIMIT 1`, segmentID)
	}
	return db.queryEffort(ctx, `SELECT `+effortColumns+` FROM efforts e
		JOIN user_profiles p ON p.user_id = e.user_id
		WHERE e.segment_id = ? AND p.gender = ?
		ORDER BY `+fastestOrder+` LIMIT 1`, segmentID, gender)
}

// PersonalRecordFlags returns every effort flagged as the user's personal
// record on the segment, fastest first. More than one row means the flag
// invariant was violated and the record must be re-derived.
func (db *DB) PersonalRecordFlags(ctx context.Context, userID, segmentID string) ([]*models.Effort, error) {
	defer observe("personal_record")()
	return db.queryEfforts(ctx, `SELECT `+effortColumns+` FROM efforts e
		WHERE e.user_id = ? AND e.segment_id = ? AND e.is_personal_record
		ORDER BY `+fastestOrder, userID, segmentID)
}

// SetPersonalRecord makes effortID the only personal record of the user on
// the segment. A single UPDATE sets the flag and clears every other one, so
// no reader ever observes two records.
func (db *DB) SetPersonalRecord(ctx context.Context, userID, segmentID, effortID string) error {
	defer observe("set_personal_record")()

	err := withConflictRetry(ctx, "set_personal_record", func() error {
		_, err := db.conn.ExecContext(ctx, `UPDATE efforts
			SET is_personal_record = (id = ?)
			WHERE user_id = ? AND segment_id = ? AND is_personal_record <> (id = ?)`,
			effortID, userID, segmentID, effortID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set personal record: %w", err)
	}
	return nil
}

// ClearPersonalRecord removes every record flag of the user on the segment.
func (db *DB) ClearPersonalRecord(ctx context.Context, userID, segmentID string) error {
	defer observe("clear_personal_record")()
	_, err := db.conn.ExecContext(ctx, `UPDATE efforts SET is_personal_record = false
		WHERE user_id = ? AND segment_id = ? AND is_personal_record`, userID, segmentID)
	if err != nil {
		return fmt.Errorf("failed to clear personal record: %w", err)
	}
	return nil
}

// UserSegmentEfforts lists the user's efforts on a segment, personal record
// first, then fastest first.
func (db *DB) UserSegmentEfforts(ctx context.Context, userID, segmentID string) ([]*models.Effort, error) {
	defer observe("user_segment_efforts")()
	return db.queryEfforts(ctx, `SELECT `+effortColumns+` FROM efforts e
		WHERE e.user_id = ? AND e.segment_id = ?
		ORDER BY e.is_personal_record DESC, `+fastestOrder, userID, segmentID)
}

// EffortCounts counts each user's efforts on the segment started at or
// after since. Most efforts first; equal counts order by the earlier latest
// effort, then user id.
func (db *DB) EffortCounts(ctx context.Context, segmentID string, since time.Time) ([]models.EffortCount, error) {
	defer observe("effort_counts")()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, COUNT(*) AS n, MAX(started_at) AS last_effort
		FROM efforts
		WHERE segment_id = ? AND started_at >= ?
		GROUP BY user_id
		ORDER BY n DESC, last_effort ASC, user_id ASC`, segmentID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count efforts: %w", err)
	}
	defer closeWithLog(rows, "effort count rows")

	var out []models.EffortCount
	for rows.Next() {
		var c models.EffortCount
		if err := rows.Scan(&c.UserID, &c.Count, &c.LastEffort); err != nil {
			return nil, fmt.Errorf("failed to scan effort count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) queryEffort(ctx context.Context, query string, args ...interface{}) (*models.Effort, error) {
	e, err := scanEffort(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("effort: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query effort: %w", err)
	}
	return e, nil
}

func (db *DB) queryEfforts(ctx context.Context, query string, args ...interface{}) ([]*models.Effort, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query efforts: %w", err)
	}
	defer closeWithLog(rows, "effort rows")

	var out []*models.Effort
	for rows.Next() {
		e, err := scanEffort(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan effort: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEffort(r rowScanner) (*models.Effort, error) {
	var e models.Effort
	err := r.Scan(
		&e.ID, &e.SegmentID, &e.ActivityID, &e.UserID, &e.StartedAt,
		&e.ElapsedTimeSeconds, &e.MovingTimeSeconds, &e.DistanceMeters, &e.AverageSpeedMPS, &e.MaxSpeedMPS,
		&e.StartFraction, &e.EndFraction, &e.IsPersonalRecord, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
