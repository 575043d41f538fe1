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
	"strings"
	"time"

	"github.com/tomtom215/segmentum/internal/models"
)

// buildLeaderboardConditions turns a resolved leaderboard query into a
// parameterized WHERE clause over efforts e LEFT JOIN user_profiles p.
// Every dimension is optional and dimensions combine with AND; a
// demographic filter excludes users without a matching profile.
//
//	WHERE e.segment_id = ?
//	  AND e.started_at >= ? AND e.started_at < ?
//	  AND p.gender = ?
//	  AND p.birth_year >= ? AND p.birth_year <= ?
//	  AND p.weight_kg >= ? AND p.weight_kg < ?
//	  AND p.country = ?
func buildLeaderboardConditions(q models.LeaderboardQuery) (string, []interface{}) {
	conditions := []string{"e.segment_id = ?"}
	args := []interface{}{q.SegmentID}

	add := func(cond string, arg interface{}) {
		conditions = append(conditions, cond)
		args = append(args, arg)
	}

	if q.Since != nil {
		add("e.started_at >= ?", q.Since.UTC())
	}
	if q.Until != nil {
		add("e.started_at < ?", q.Until.UTC())
	}
	if q.Gender != "" {
		add("p.gender = ?", q.Gender)
	}
	if q.MinBirthYear != nil {
		add("p.birth_year >= ?", *q.MinBirthYear)
	}
	if q.MaxBirthYear != nil {
		add("p.birth_year <= ?", *q.MaxBirthYear)
	}
	if q.MinWeightKg != nil {
		add("p.weight_kg >= ?", *q.MinWeightKg)
	}
	if q.MaxWeightKg != nil {
		add("p.weight_kg < ?", *q.MaxWeightKg)
	}
	if q.Country != "" {
		add("p.country = ?", strings.ToUpper(q.Country))
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// bestEffortsCTE selects each user's fastest effort under the filter.
func bestEffortsCTE(where string) string {
	return `WITH filtered AS (
			SELECT e.id, e.user_id, e.activity_id, e.elapsed_time_seconds, e.moving_time_seconds,
				e.average_speed_mps, e.started_at,
				ROW_NUMBER() OVER (PARTITION BY e.user_id ORDER BY ` + fastestOrder + `) AS rn
			FROM efforts e
			LEFT JOIN user_profiles p ON p.user_id = e.user_id
			` + where + `
		), best AS (
			SELECT * FROM filtered WHERE rn = 1
		)`
}

// Leaderboard returns one page of per-user best efforts ranked by elapsed
// time, then start time, then effort id, and the number of ranked users.
// Ranks are unique and consecutive; gaps are relative to the leader.
func (db *DB) Leaderboard(ctx context.Context, q models.LeaderboardQuery, offset, limit int) ([]models.LeaderboardEntry, int, error) {
	defer observe("leaderboard")()

	where, args := buildLeaderboardConditions(q)
	query := bestEffortsCTE(where) + `
		SELECT id, user_id, activity_id, elapsed_time_seconds, moving_time_seconds, average_speed_mps, started_at,
			ROW_NUMBER() OVER (ORDER BY elapsed_time_seconds ASC, started_at ASC, id ASC) AS pos,
			COUNT(*) OVER () AS total,
			MIN(elapsed_time_seconds) OVER () AS leader
		FROM best
		ORDER BY pos
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer closeWithLog(rows, "leaderboard rows")

	var (
		entries []models.LeaderboardEntry
		total   int
	)
	for rows.Next() {
		var (
			e      models.LeaderboardEntry
			leader float64
		)
		if err := rows.Scan(&e.EffortID, &e.UserID, &e.ActivityID, &e.ElapsedTimeSeconds, &e.MovingTimeSeconds,
			&e.AverageSpeedMPS, &e.StartedAt, &e.Rank, &total, &leader); err != nil {
			return nil, 0, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.GapSeconds = e.ElapsedTimeSeconds - leader
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// A page past the end returns no rows, so the window total is unknown
	if len(entries) == 0 {
		total, err = db.CountRanked(ctx, q)
		if err != nil {
			return nil, 0, err
		}
	}
	return entries, total, nil
}

// CountRanked returns the number of distinct users with an effort under
// the filter.
func (db *DB) CountRanked(ctx context.Context, q models.LeaderboardQuery) (int, error) {
	defer observe("leaderboard_count")()

	where, args := buildLeaderboardConditions(q)
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(DISTINCT e.user_id)
		FROM efforts e LEFT JOIN user_profiles p ON p.user_id = e.user_id `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count leaderboard: %w", err)
	}
	return n, nil
}

// UserBest returns the user's best effort under the filter, without rank.
func (db *DB) UserBest(ctx context.Context, q models.LeaderboardQuery, userID string) (*models.LeaderboardEntry, error) {
	defer observe("leaderboard_user_best")()

	where, args := buildLeaderboardConditions(q)
	query := bestEffortsCTE(where) + `
		SELECT id, user_id, activity_id, elapsed_time_seconds, moving_time_seconds, average_speed_mps, started_at
		FROM best WHERE user_id = ?`
	args = append(args, userID)

	var e models.LeaderboardEntry
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(
		&e.EffortID, &e.UserID, &e.ActivityID, &e.ElapsedTimeSeconds, &e.MovingTimeSeconds, &e.AverageSpeedMPS, &e.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user best: %w", err)
	}
	return &e, nil
}

// CountFaster counts per-user bests under the filter that rank strictly
// ahead of the given time, start and effort id. The user's rank is one
// more than this count.
func (db *DB) CountFaster(ctx context.Context, q models.LeaderboardQuery, elapsed float64, startedAt time.Time, effortID string) (int, error) {
	defer observe("leaderboard_count_faster")()

	where, args := buildLeaderboardConditions(q)
	query := bestEffortsCTE(where) + `
		SELECT COUNT(*) FROM best
		WHERE elapsed_time_seconds < ?
			OR (elapsed_time_seconds = ? AND started_at < ?)
			OR (elapsed_time_seconds = ? AND started_at = ? AND id < ?)`
	st := startedAt.UTC()
	args = append(args, elapsed, elapsed, st, elapsed, st, effortID)

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count faster efforts: %w", err)
	}
	return n, nil
}
