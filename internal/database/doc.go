// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package database provides DuckDB persistence for tracks, segments, efforts,
achievements and user profiles.

Key Components:

  - DB: connection wrapper with extension loading, schema creation and a
    WAL checkpoint on close
  - Spatial candidate lookup: R-tree indexed GEOMETRY with the spatial
    extension, bounding-box columns without it
  - Efforts: idempotent insert keyed on (activity_id, segment_id) and a
    single-statement personal record flag update
  - Leaderboards: per-user best efforts ranked with window functions; the
    filter is assembled by buildLeaderboardConditions
  - Achievements: transactional transfer that retires the previous holder
    and inserts the new one

Usage Example:

	db, err := database.New(&cfg.Database)
	if err != nil {
	    log.Fatal(err)
	}
	defer db.Close()

	segments, err := db.FindCandidateSegments(ctx, track.Bounds(), 100, "ride", track.UserID)

Thread Safety:

All methods are safe for concurrent use. Serialization of read-decide-write
sequences (personal records, achievements) is the caller's responsibility;
see package keylock.

Environment Variables:

  - DUCKDB_SPATIAL_OPTIONAL=true: start without the spatial extension
  - DUCKDB_EXTENSION_TIMEOUT: hard timeout for extension statements
*/
package database
