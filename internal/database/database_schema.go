// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
database_schema.go - Database Schema Management

Tables:
  - tracks: decoded GPS traces, one row per activity (points stored as JSON)
  - segments: user-defined route sections with derived profile metrics and
    an optional GEOMETRY column for spatial candidate lookup
  - efforts: timed segment traversals, UNIQUE (activity_id, segment_id)
  - achievements: crown tenures; active rows have lost_at IS NULL
  - user_profiles: demographics joined by leaderboard filters

Every table carries min/max lat/lon bounding-box columns or is keyed for
the lookups the pipeline performs, so candidate lookup works with or
without the spatial extension.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// getTableCreationQueries returns the table creation SQL statements
func (db *DB) getTableCreationQueries() []string {
	// The geometry column only exists when spatial is loaded
	geomColumn := ""
	if db.spatialAvailable {
		geomColumn = "geom GEOMETRY,"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			name TEXT,
			points TEXT NOT NULL,
			point_count INTEGER NOT NULL,
			started_at TIMESTAMP,
			min_lat DOUBLE NOT NULL,
			min_lon DOUBLE NOT NULL,
			max_lat DOUBLE NOT NULL,
			max_lon DOUBLE NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS segments (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'public',
			points TEXT NOT NULL,
			distance_meters DOUBLE NOT NULL,
			elevation_gain_meters DOUBLE NOT NULL DEFAULT 0,
			elevation_loss_meters DOUBLE NOT NULL DEFAULT 0,
			average_grade DOUBLE NOT NULL DEFAULT 0,
			max_grade DOUBLE NOT NULL DEFAULT 0,
			climb_category TEXT NOT NULL DEFAULT 'NC',
			min_lat DOUBLE NOT NULL,
			min_lon DOUBLE NOT NULL,
			max_lat DOUBLE NOT NULL,
			max_lon DOUBLE NOT NULL,
			` + geomColumn + `
			created_at TIMESTAMP NOT NULL,
			deleted_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS efforts (
			id TEXT PRIMARY KEY,
			segment_id TEXT NOT NULL,
			activity_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL,
			elapsed_time_seconds DOUBLE NOT NULL,
			moving_time_seconds DOUBLE NOT NULL,
			distance_meters DOUBLE NOT NULL,
			average_speed_mps DOUBLE NOT NULL,
			max_speed_mps DOUBLE NOT NULL,
			start_fraction DOUBLE NOT NULL,
			end_fraction DOUBLE NOT NULL,
			is_personal_record BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (activity_id, segment_id)
		);`,

		`CREATE TABLE IF NOT EXISTS achievements (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			segment_id TEXT NOT NULL,
			type TEXT NOT NULL,
			effort_id TEXT,
			elapsed_time_seconds DOUBLE,
			effort_count INTEGER,
			earned_at TIMESTAMP NOT NULL,
			lost_at TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			gender TEXT,
			birth_year INTEGER,
			weight_kg DOUBLE,
			country TEXT,
			updated_at TIMESTAMP NOT NULL
		);`,
	}
}

// createIndexes creates lookup indexes. Columns that are updated in place
// (is_personal_record, lost_at, deleted_at) are not indexed:
// DuckDB implements updates of indexed columns as delete + insert.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_tracks_user ON tracks(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_bounds ON tracks(min_lat, max_lat, min_lon, max_lon);`,
		`CREATE INDEX IF NOT EXISTS idx_segments_bounds ON segments(min_lat, max_lat, min_lon, max_lon);`,
		`CREATE INDEX IF NOT EXISTS idx_efforts_segment_user ON efforts(segment_id, user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_efforts_segment_elapsed ON efforts(segment_id, elapsed_time_seconds);`,
		`CREATE INDEX IF NOT EXISTS idx_efforts_activity ON efforts(activity_id);`,
		`CREATE INDEX IF NOT EXISTS idx_achievements_segment_type ON achievements(segment_id, type);`,
		`CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id);`,
	}
	if db.spatialAvailable {
		indexes = append(indexes, `CREATE INDEX IF NOT EXISTS idx_segments_geom ON segments USING RTREE (geom);`)
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}
