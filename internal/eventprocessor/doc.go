// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package eventprocessor moves work between the API, the activity pipeline
and the notifiers over a Watermill event bus.

# Topics

	activity.uploaded     ActivityUploadedEvent, consumed by the worker pool
	segment.created       SegmentCreatedEvent, triggers a backfill
	achievement.gained    AchievementEvent, consumed by the notifiers
	achievement.lost      AchievementEvent, consumed by the notifiers
	events.poison         messages that exhausted their retries

# Backends

The default backend is an in-process GoChannel. Building with -tags nats
adds a NATS JetStream backend with an optional embedded server; all topics
live in one stream named SEGMENTUM.

# Router

Router middleware order, outer to inner:

	Throttle -> Deduplicator -> PoisonQueue -> Retry -> Recoverer -> handler

Malformed payloads are acknowledged and dropped; handler errors are
retried and then routed to the poison topic.
*/
package eventprocessor
