// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package main is the entry point for the Segmentum server.

Segmentum matches uploaded GPS activities against user-defined segments,
derives timed efforts, keeps personal records and leaderboards, and awards
KOM/QOM, course record and local legend crowns.

# Application Architecture

	RootSupervisor ("segmentum")
	├── DataSupervisor ("data-layer")
	│   ├── ledger-gc (badger ledger only)
	│   └── achievement-reconciler
	├── MessagingSupervisor ("messaging-layer")
	│   ├── event-router
	│   └── worker-pool
	└── APISupervisor ("api-layer")
	    └── http-server

Initialization order:

 1. Configuration: koanf with defaults, config.yaml and environment
 2. Logging: zerolog, bridged to slog for suture
 3. Database: DuckDB with the spatial extension when available
 4. Ledger: in-memory or BadgerDB processing ledger
 5. Event bus: Watermill GoChannel, or NATS JetStream with -tags nats
 6. Domain: record tracker, leaderboard ranker, achievement engine
 7. Pipeline: processor and worker pool
 8. HTTP: chi router with CORS, rate limiting and Prometheus metrics
 9. Supervisor tree, until SIGINT or SIGTERM

# Data Flow

	POST /api/v1/activities -> DuckDB track -> activity.uploaded
	    -> event-router -> worker-pool -> matcher/effort/records/achievements
	    -> achievement.gained|lost -> notifiers

# Configuration

	HTTP_PORT=8080
	LOG_LEVEL=info
	LOG_FORMAT=json
	DUCKDB_PATH=/data/segmentum.duckdb
	LEDGER_BACKEND=badger
	LEDGER_PATH=/data/ledger
	EVENTS_BACKEND=gochannel

See internal/config for the complete list.

# Build Tags

	go build ./cmd/server               # in-process event bus
	go build -tags nats ./cmd/server    # NATS JetStream, optionally embedded

# Signal Handling

SIGINT or SIGTERM cancels the tree. The HTTP server drains for up to 10s,
workers finish the activity they hold, and the ledger, bus and database
are closed in reverse order of opening.
*/
package main
