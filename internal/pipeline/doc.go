// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package pipeline processes uploaded activities.
//
// Processor.ProcessActivity claims the activity in the ledger, loads and
// validates its track, finds candidate segments through a circuit breaker,
// matches them in parallel and writes each effort back in turn: personal
// record, achievements, then leaderboard invalidation. It is idempotent,
// so a retried or reprocessed activity changes nothing.
//
// Pool feeds the processor from a bounded queue on a fixed number of
// workers and retries transient failures with exponential backoff. Input
// defects (IsInputDefect) are never retried.
package pipeline
