// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package services adapts Segmentum components to suture.Service.

Each wrapper turns a component's own lifecycle into Serve(ctx) error and
names itself through fmt.Stringer for the supervisor's logs.

# Available Services

HTTPServerService ("http-server"):
  - ListenAndServe/Shutdown pattern
  - Drains connections for the configured timeout on shutdown

EventRouterService ("event-router"):
  - Builds a new router from a RouterFactory on every Serve, since a
    closed watermill router cannot be run again
  - IsRunning backs the readiness check

LedgerGCService ("ledger-gc"):
  - Runs BadgerDB value log GC on an interval
  - Failed passes are logged, not fatal

ReconcilerService ("achievement-reconciler"):
  - Runs the achievement engine's reconcile loop
  - Any early exit is reported as a failure

The worker pool implements suture.Service itself and needs no wrapper.

# Return Values

	nil         stopped cleanly, not restarted
	error       crashed, restarted with backoff
	ctx.Err()   shutdown requested
*/
package services
