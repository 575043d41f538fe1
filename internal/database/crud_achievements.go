// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/segmentum/internal/models"
)

const achievementColumns = `id, user_id, segment_id, type, effort_id, elapsed_time_seconds, effort_count, earned_at, lost_at`

// ActiveAchievement returns the current holder of a crown, or nil when the
// crown is vacant.
func (db *DB) ActiveAchievement(ctx context.Context, segmentID string, typ models.AchievementType) (*models.Achievement, error) {
	defer observe("active_achievement")()

	list, err := db.queryAchievements(ctx, `SELECT `+achievementColumns+` FROM achievements
		WHERE segment_id = ? AND type = ? AND lost_at IS NULL
		ORDER BY earned_at DESC, id`, segmentID, string(typ))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// SegmentAchievements returns every active achievement on a segment.
func (db *DB) SegmentAchievements(ctx context.Context, segmentID string) ([]*models.Achievement, error) {
	defer observe("segment_achievements")()
	return db.queryAchievements(ctx, `SELECT `+achievementColumns+` FROM achievements
		WHERE segment_id = ? AND lost_at IS NULL
		ORDER BY type, earned_at DESC`, segmentID)
}

// UserAchievements returns a user's achievements, newest first.
func (db *DB) UserAchievements(ctx context.Context, userID string, activeOnly bool) ([]*models.Achievement, error) {
	defer observe("user_achievements")()

	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE user_id = ?`
	if activeOnly {
		query += ` AND lost_at IS NULL`
	}
	query += ` ORDER BY earned_at DESC, id`
	return db.queryAchievements(ctx, query, userID)
}

// TransferAchievement retires every active holder of (segment, type) and,
// when next is non-nil, inserts it as the new holder. Both happen in one
// transaction so there is never more than one active row. It returns the
// retired achievements with LostAt set.
func (db *DB) TransferAchievement(ctx context.Context, segmentID string, typ models.AchievementType, next *models.Achievement, at time.Time) (lost []*models.Achievement, err error) {
	defer observe("transfer_achievement")()

	at = at.UTC()
	err = withConflictRetry(ctx, "transfer_achievement", func() error {
		var txErr error
		lost, txErr = db.transferAchievementTx(ctx, segmentID, typ, next, at)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to transfer achievement: %w", err)
	}
	return lost, nil
}

func (db *DB) transferAchievementTx(ctx context.Context, segmentID string, typ models.AchievementType, next *models.Achievement, at time.Time) (lost []*models.Achievement, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(tx, err)
		}
	}()

	rows, err := tx.QueryContext(ctx, `SELECT `+achievementColumns+` FROM achievements
		WHERE segment_id = ? AND type = ? AND lost_at IS NULL`, segmentID, string(typ))
	if err != nil {
		return nil, err
	}
	lost, err = scanAchievements(rows)
	if err != nil {
		return nil, err
	}

	if len(lost) > 0 {
		if _, err = tx.ExecContext(ctx, `UPDATE achievements SET lost_at = ?
			WHERE segment_id = ? AND type = ? AND lost_at IS NULL`, at, segmentID, string(typ)); err != nil {
			return nil, err
		}
		for _, a := range lost {
			t := at
			a.LostAt = &t
		}
	}

	if next != nil {
		if next.EarnedAt.IsZero() {
			next.EarnedAt = at
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO achievements (`+achievementColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			next.ID, next.UserID, segmentID, string(typ),
			deref(next.EffortID), deref(next.ElapsedTimeSeconds), deref(next.EffortCount), next.EarnedAt.UTC()); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return lost, nil
}

// RefreshAchievement updates the statistics of a held achievement, used
// when the holder improves their own time or count.
func (db *DB) RefreshAchievement(ctx context.Context, a *models.Achievement) error {
	defer observe("refresh_achievement")()

	_, err := db.conn.ExecContext(ctx, `UPDATE achievements
		SET effort_id = ?, elapsed_time_seconds = ?, effort_count = ?
		WHERE id = ? AND lost_at IS NULL`,
		deref(a.EffortID), deref(a.ElapsedTimeSeconds), deref(a.EffortCount), a.ID)
	if err != nil {
		return fmt.Errorf("failed to refresh achievement: %w", err)
	}
	return nil
}

// SegmentsForReconcile lists segments that have an active achievement or an
// effort started at or after since.
func (db *DB) SegmentsForReconcile(ctx context.Context, since time.Time) ([]string, error) {
	defer observe("segments_for_reconcile")()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT segment_id FROM achievements WHERE lost_at IS NULL
		UNION
		SELECT segment_id FROM efforts WHERE started_at >= ?
		ORDER BY segment_id`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list segments for reconcile: %w", err)
	}
	defer closeWithLog(rows, "segment id rows")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan segment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (db *DB) queryAchievements(ctx context.Context, query string, args ...interface{}) ([]*models.Achievement, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	list, err := scanAchievements(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan achievements: %w", err)
	}
	return list, nil
}

// scanAchievements reads and closes rows.
func scanAchievements(rows *sql.Rows) ([]*models.Achievement, error) {
	defer closeWithLog(rows, "achievement rows")

	var out []*models.Achievement
	for rows.Next() {
		var (
			a       models.Achievement
			typ     string
			effort  sql.NullString
			elapsed sql.NullFloat64
			count   sql.NullInt64
			lostAt  sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.SegmentID, &typ, &effort, &elapsed, &count, &a.EarnedAt, &lostAt); err != nil {
			return nil, err
		}
		a.Type = models.AchievementType(typ)
		if effort.Valid {
			s := effort.String
			a.EffortID = &s
		}
		if elapsed.Valid {
			f := elapsed.Float64
			a.ElapsedTimeSeconds = &f
		}
		if count.Valid {
			n := int(count.Int64)
			a.EffortCount = &n
		}
		if lostAt.Valid {
			t := lostAt.Time
			a.LostAt = &t
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
