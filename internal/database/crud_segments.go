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
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

const segmentColumns = `id, name, activity_type, creator_id, visibility, points,
	distance_meters, elevation_gain_meters, elevation_loss_meters, average_grade, max_grade, climb_category,
	min_lat, min_lon, max_lat, max_lon, created_at, deleted_at`

// InsertSegment stores a segment. With the spatial extension the geometry
// is also stored as a LINESTRING for R-tree candidate lookup.
func (db *DB) InsertSegment(ctx context.Context, s *models.Segment) error {
	defer observe("insert_segment")()

	points, err := json.Marshal(s.Points)
	if err != nil {
		return fmt.Errorf("failed to encode segment points: %w", err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Visibility == "" {
		s.Visibility = models.VisibilityPublic
	}
	s.Bounds = geo.Bounds(s.Points)

	args := []interface{}{
		s.ID, s.Name, s.ActivityType, s.CreatorID, s.Visibility, string(points),
		s.DistanceMeters, s.ElevationGainMeters, s.ElevationLossMeters, s.AverageGrade, s.MaxGrade, s.ClimbCategory,
		s.Bounds.MinLat, s.Bounds.MinLon, s.Bounds.MaxLat, s.Bounds.MaxLon, s.CreatedAt.UTC(),
	}

	var query string
	if db.spatialAvailable {
		query = `INSERT INTO segments (
			id, name, activity_type, creator_id, visibility, points,
			distance_meters, elevation_gain_meters, elevation_loss_meters, average_grade, max_grade, climb_category,
			min_lat, min_lon, max_lat, max_lon, created_at, geom
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ST_GeomFromText(?))
		ON CONFLICT (id) DO NOTHING`
		args = append(args, lineStringWKT(s.Points))
	} else {
		query = `INSERT INTO segments (
			id, name, activity_type, creator_id, visibility, points,
			distance_meters, elevation_gain_meters, elevation_loss_meters, average_grade, max_grade, climb_category,
			min_lat, min_lon, max_lat, max_lon, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`
	}

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert segment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("segment %s: %w", s.ID, ErrAlreadyExists)
	}
	return nil
}

// GetSegment loads a segment, including soft-deleted ones.
func (db *DB) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	defer observe("get_segment")()

	row := db.conn.QueryRowContext(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = ?`, id)
	s, err := scanSegment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return s, nil
}

// SoftDeleteSegment marks a segment deleted. Its efforts stay in place but
// it is no longer offered as a match candidate.
func (db *DB) SoftDeleteSegment(ctx context.Context, id string, at time.Time) error {
	defer observe("delete_segment")()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE segments SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("segment %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindCandidateSegments returns live segments near bbox that userID's
// activities may be matched against: within radius meters of it, optionally
// restricted to one activity type. Private segments are returned only to
// their creator. With the spatial extension the lookup uses ST_Intersects
// on the R-tree indexed geometry; without it, bounding-box overlap on the
// min/max columns.
func (db *DB) FindCandidateSegments(ctx context.Context, bbox geo.BBox, radiusMeters float64, activityType, userID string) ([]*models.Segment, error) {
	defer observe("find_candidate_segments")()

	b := bbox.Expand(radiusMeters)

	var (
		query string
		args  []interface{}
	)
	if db.spatialAvailable {
		query = `SELECT ` + segmentColumns + ` FROM segments
			WHERE deleted_at IS NULL AND ST_Intersects(geom, ST_MakeEnvelope(?, ?, ?, ?))`
		args = []interface{}{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
	} else {
		query = `SELECT ` + segmentColumns + ` FROM segments
			WHERE deleted_at IS NULL
			AND min_lat <= ? AND max_lat >= ? AND min_lon <= ? AND max_lon >= ?`
		args = []interface{}{b.MaxLat, b.MinLat, b.MaxLon, b.MinLon}
	}
	query += ` AND (visibility <> ? OR creator_id = ?)`
	args = append(args, models.VisibilityPrivate, userID)
	if activityType != "" {
		query += ` AND activity_type = ?`
		args = append(args, activityType)
	}
	query += ` ORDER BY created_at, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidate segments: %w", err)
	}
	defer closeWithLog(rows, "segment rows")

	var out []*models.Segment
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSegment(r rowScanner) (*models.Segment, error) {
	var (
		s       models.Segment
		points  string
		deleted sql.NullTime
	)
	if err := r.Scan(
		&s.ID, &s.Name, &s.ActivityType, &s.CreatorID, &s.Visibility, &points,
		&s.DistanceMeters, &s.ElevationGainMeters, &s.ElevationLossMeters, &s.AverageGrade, &s.MaxGrade, &s.ClimbCategory,
		&s.Bounds.MinLat, &s.Bounds.MinLon, &s.Bounds.MaxLat, &s.Bounds.MaxLon, &s.CreatedAt, &deleted,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(points), &s.Points); err != nil {
		return nil, fmt.Errorf("failed to decode segment points: %w", err)
	}
	if deleted.Valid {
		t := deleted.Time
		s.DeletedAt = &t
	}
	return &s, nil
}

// lineStringWKT renders points as WKT in lon/lat axis order.
func lineStringWKT(pts []geo.Point) string {
	var b strings.Builder
	b.WriteString("LINESTRING(")
	for i, p := range pts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
	}
	b.WriteByte(')')
	return b.String()
}
