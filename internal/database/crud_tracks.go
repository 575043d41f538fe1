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

	"github.com/goccy/go-json"

	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

// ErrAlreadyExists is returned when inserting a row whose id is taken.
var ErrAlreadyExists = errors.New("already exists")

// EffortRef identifies the (user, segment) pair an effort belonged to.
type EffortRef struct {
	UserID    string
	SegmentID string
}

// InsertTrack stores a decoded track. Tracks are immutable; inserting an
// existing id returns ErrAlreadyExists.
func (db *DB) InsertTrack(ctx context.Context, t *models.Track) error {
	defer observe("insert_track")()

	points, err := json.Marshal(t.Points)
	if err != nil {
		return fmt.Errorf("failed to encode track points: %w", err)
	}

	var startedAt *time.Time
	if st := t.StartTime(); !st.IsZero() {
		st = st.UTC()
		startedAt = &st
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	b := t.Bounds()

	res, err := db.conn.ExecContext(ctx, `INSERT INTO tracks (
			id, user_id, activity_type, name, points, point_count, started_at,
			min_lat, min_lon, max_lat, max_lon, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.UserID, t.ActivityType, t.Name, string(points), len(t.Points), deref(startedAt),
		b.MinLat, b.MinLon, b.MaxLat, b.MaxLon, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("track %s: %w", t.ID, ErrAlreadyExists)
	}
	return nil
}

// GetTrack loads a track with its points.
func (db *DB) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	defer observe("get_track")()

	var (
		t      models.Track
		name   sql.NullString
		points string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, user_id, activity_type, name, points, created_at
		FROM tracks WHERE id = ?`, id,
	).Scan(&t.ID, &t.UserID, &t.ActivityType, &name, &points, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	t.Name = name.String
	if err := json.Unmarshal([]byte(points), &t.Points); err != nil {
		return nil, fmt.Errorf("failed to decode track points: %w", err)
	}
	return &t, nil
}

// DeleteTrack removes a track and its efforts in one transaction and
// returns the distinct (user, segment) pairs whose efforts were removed,
// so personal records and achievements can be re-derived.
func (db *DB) DeleteTrack(ctx context.Context, id string) (refs []EffortRef, err error) {
	defer observe("delete_track")()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			rollback(tx, err)
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT DISTINCT user_id, segment_id FROM efforts
		WHERE activity_id = ? ORDER BY segment_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list efforts: %w", err)
	}
	for rows.Next() {
		var r EffortRef
		if err = rows.Scan(&r.UserID, &r.SegmentID); err != nil {
			closeQuietly(rows)
			return nil, fmt.Errorf("failed to scan effort ref: %w", err)
		}
		refs = append(refs, r)
	}
	if err = rows.Err(); err != nil {
		closeQuietly(rows)
		return nil, fmt.Errorf("failed to iterate efforts: %w", err)
	}
	closeWithLog(rows, "effort rows")

	if _, err = tx.ExecContext(ctx, `DELETE FROM efforts WHERE activity_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete efforts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete track: %w", err)
	}
	if n, rerr := res.RowsAffected(); rerr == nil && n == 0 {
		err = fmt.Errorf("track %s: %w", id, ErrNotFound)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return refs, nil
}

// FindCandidateTracks returns stored tracks whose bounding box intersects
// bbox, optionally restricted to one activity type and to one user's
// tracks. Used to backfill a new segment.
func (db *DB) FindCandidateTracks(ctx context.Context, bbox geo.BBox, activityType, userID string) ([]models.ActivitySummary, error) {
	defer observe("find_candidate_tracks")()

	query := `SELECT id, user_id, activity_type, started_at, min_lat, min_lon, max_lat, max_lon
		FROM tracks
		WHERE min_lat <= ? AND max_lat >= ? AND min_lon <= ? AND max_lon >= ?`
	args := []interface{}{bbox.MaxLat, bbox.MinLat, bbox.MaxLon, bbox.MinLon}
	if activityType != "" {
		query += ` AND activity_type = ?`
		args = append(args, activityType)
	}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY started_at NULLS LAST, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate tracks: %w", err)
	}
	defer closeWithLog(rows, "track rows")

	var out []models.ActivitySummary
	for rows.Next() {
		var (
			s  models.ActivitySummary
			st sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.ActivityType, &st,
			&s.Bounds.MinLat, &s.Bounds.MinLon, &s.Bounds.MaxLat, &s.Bounds.MaxLon); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		if st.Valid {
			s.StartedAt = st.Time
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
