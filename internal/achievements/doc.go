// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package achievements maintains segment crowns: KOM, QOM, course record and
local legend.

Each (segment, type) pair is a small state machine with two states,
vacant and held. Transition is the pure rule; Engine applies it against
the store:

  - Timed crowns (KOM, QOM, course record) go to the fastest effort among
    eligible users. KOM requires profile gender M, QOM requires F, course
    record is open to everyone.
  - Local legend goes to the user with the most efforts inside a rolling
    window (default 90 days). Ties keep the incumbent.

Evaluation always re-derives the holder and best contender from stored
efforts, so calling Reconcile any number of times converges on the same
state. Evaluations of the same (segment, type) are serialized through a
keylock.Locker, and TransferAchievement retires and inserts holders in a
single transaction, so at most one achievement per pair is ever active.

Every change emits Event values to a Sink after it is persisted. Sink
failures are logged and do not roll back the change.

Usage:

	engine := achievements.NewEngine(db, publisher, locks, cfg.Achievements)
	events, err := engine.OnEffort(ctx, effort)

ReconcileAll and RunReconciler sweep segments periodically so local
legend crowns move when efforts age out of the window.
*/
package achievements
