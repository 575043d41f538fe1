// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is a process-local Ledger. State is lost on restart.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
	closed  bool
}

// NewMemoryLedger creates a MemoryLedger. A ttl of zero disables claim expiry.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (l *MemoryLedger) expired(e *Entry) bool {
	return l.ttl > 0 && l.now().Sub(e.StartedAt) >= l.ttl
}

// Begin claims activityID unless an unexpired claim already holds it.
func (l *MemoryLedger) Begin(_ context.Context, activityID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	e, ok := l.entries[activityID]
	if ok && e.State == StateInFlight && !l.expired(e) {
		return ErrInFlight
	}

	attempts := 0
	if ok {
		attempts = e.Attempts
	}
	l.entries[activityID] = &Entry{
		ActivityID: activityID,
		State:      StateInFlight,
		Attempts:   attempts + 1,
		StartedAt:  l.now().UTC(),
	}
	return nil
}

// Complete records a successful run.
func (l *MemoryLedger) Complete(_ context.Context, activityID string, summary Summary) error {
	return l.finish(activityID, StateCompleted, &summary, "")
}

// Abort records a failed run.
func (l *MemoryLedger) Abort(_ context.Context, activityID string, cause error) error {
	return l.finish(activityID, StateFailed, nil, errorString(cause))
}

func (l *MemoryLedger) finish(activityID string, state State, summary *Summary, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	e, ok := l.entries[activityID]
	if !ok || e.State != StateInFlight {
		return ErrNotInFlight
	}
	now := l.now().UTC()
	e.State = state
	e.FinishedAt = &now
	e.Summary = summary
	e.Error = msg
	return nil
}

// Status returns a copy of the entry for activityID.
func (l *MemoryLedger) Status(_ context.Context, activityID string) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	e, ok := l.entries[activityID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *e
	if c.State == StateInFlight && l.expired(e) {
		c.State = StateAbandoned
	}
	return &c, nil
}

// Close makes every later call fail with ErrClosed.
func (l *MemoryLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
