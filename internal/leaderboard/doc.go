// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package leaderboard ranks the efforts on a segment.

A Filter is an immutable value with five optional dimensions: time scope,
gender, age group, weight class and country. Resolve turns it into an
absolute models.LeaderboardQuery; the database turns that into one WHERE
clause, so no dimension combination has its own code path.

	f, err := leaderboard.ParseFilter(r.URL.Query())
	view, err := ranker.Rank(ctx, segmentID, f, leaderboard.Page{Offset: 0, Limit: 20})
	pos, err := ranker.Position(ctx, segmentID, f, userID, 2)

Ranking rules:

  - each user contributes their fastest effort under the filter
  - order is elapsed time, then start time, then effort id
  - ranks are unique and consecutive from 1
  - gap_seconds is the distance to the leader

Results are cached for leaderboard.cache_ttl. Invalidate bumps a per-segment
generation that is part of every cache key, so a write is visible on the next
read even when it races with a cache fill.
*/
package leaderboard
