// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package ledger tracks in-flight and processed activities so a duplicate
processing request for the same activity is rejected instead of being
counted twice.

Two backends are available:

  - MemoryLedger: a mutex-guarded map. The default; state is lost on restart.
  - BadgerLedger: BadgerDB. Each activity has a claim key with a TTL
    (ledger.inflight_ttl) and a status key holding the JSON Entry.

Lifecycle:

	if err := l.Begin(ctx, id); errors.Is(err, ledger.ErrInFlight) {
	    return // someone else is on it
	}
	summary, err := process(ctx, id)
	if err != nil {
	    l.Abort(ctx, id, err)
	    return
	}
	l.Complete(ctx, id, summary)

A claim that outlives its TTL is reported by Status as StateAbandoned and
no longer blocks Begin.
*/
package ledger
