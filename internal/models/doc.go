// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package models defines the data structures shared by the matching pipeline,
the persistence layer and the HTTP API.

Stored models:

  - Track: decoded GPS trace of one activity (immutable)
  - Segment: a user-defined route section with derived profile metrics
  - Effort: one timed traversal of a segment within one activity
  - Achievement: a crown (KOM, QOM, course record, local legend) held or lost
  - UserProfile: read-only demographics used by leaderboard filters

Derived models (never stored):

  - LeaderboardQuery: an absolute, resolved leaderboard filter
  - LeaderboardView / LeaderboardEntry / PositionView
  - EffortCount: per-user effort totals for local legend standings
*/
package models
