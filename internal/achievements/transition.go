// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package achievements

import (
	"time"

	"github.com/tomtom215/segmentum/internal/models"
)

// Holder is a user's standing for one achievement type on one segment,
// derived from current state. Timed types fill the effort fields; local
// legend fills EffortCount.
type Holder struct {
	UserID string
	Type   models.AchievementType

	EffortID           string
	ElapsedTimeSeconds float64

	EffortCount int

	// At is the effort start for timed types and the latest effort in the
	// window for local legend.
	At time.Time
}

// beats reports whether h ranks strictly ahead of other. Timed standings
// follow leaderboard order: elapsed time, then earlier start, then effort
// id. Local legend compares counts only, so equal counts do not beat.
func (h *Holder) beats(other *Holder) bool {
	if h.Type.Timed() {
		if h.ElapsedTimeSeconds != other.ElapsedTimeSeconds {
			return h.ElapsedTimeSeconds < other.ElapsedTimeSeconds
		}
		if !h.At.Equal(other.At) {
			return h.At.Before(other.At)
		}
		return h.EffortID < other.EffortID
	}
	return h.EffortCount > other.EffortCount
}

func (h *Holder) sameStats(other *Holder) bool {
	return h.EffortID == other.EffortID &&
		h.ElapsedTimeSeconds == other.ElapsedTimeSeconds &&
		h.EffortCount == other.EffortCount
}

// Outcome is the result of applying a contender to the current holder.
type Outcome struct {
	// Next is the holder after the transition; nil means vacant.
	Next *Holder

	// Lost is the displaced holder, if any.
	Lost *Holder

	// Changed is true when the holder changed (including to vacant).
	Changed bool

	// Refreshed is true when the holder stayed the same but their standing
	// changed, e.g. they beat their own time.
	Refreshed bool
}

// Transition is the state machine for one (segment, type). current is the
// live standing of the active holder (nil when vacant) and contender is
// the best standing under current state (nil when nobody qualifies).
//
//	vacant    + contender          -> held(contender)
//	held(u)   + u                  -> held(u), stats refreshed if changed
//	held(u)   + v ranks ahead of u -> held(v), lost(u)
//	held(u)   + v not ahead        -> held(u)
//	held(u)   + nobody             -> vacant, lost(u)
//
// A local legend tie keeps the incumbent.
func Transition(current, contender *Holder) Outcome {
	switch {
	case current == nil && contender == nil:
		return Outcome{}
	case current == nil:
		return Outcome{Next: contender, Changed: true}
	case contender == nil:
		return Outcome{Lost: current, Changed: true}
	case contender.UserID == current.UserID:
		if contender.sameStats(current) {
			return Outcome{Next: current}
		}
		return Outcome{Next: contender, Refreshed: true}
	case contender.beats(current):
		return Outcome{Next: contender, Lost: current, Changed: true}
	default:
		return Outcome{Next: current}
	}
}
