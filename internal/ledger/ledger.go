// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/segmentum/internal/config"
)

var (
	// ErrInFlight is returned by Begin while the activity is being processed.
	ErrInFlight = errors.New("activity is already being processed")

	// ErrNotFound is returned by Status for an activity the ledger has never seen.
	ErrNotFound = errors.New("activity not found in ledger")

	// ErrNotInFlight is returned by Complete and Abort without a matching Begin.
	ErrNotInFlight = errors.New("activity is not in flight")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ledger is closed")
)

// State is the processing state of an activity.
type State string

const (
	StateInFlight  State = "in_flight"
	StateCompleted State = "completed"
	StateFailed    State = "failed"

	// StateAbandoned is reported for an in-flight entry whose claim expired,
	// which means the worker holding it died.
	StateAbandoned State = "abandoned"
)

// Summary is what processing reports on completion.
type Summary struct {
	Outcome         string `json:"outcome"`
	Candidates      int    `json:"candidates"`
	Efforts         int    `json:"efforts"`
	PersonalRecords int    `json:"personal_records"`
	Achievements    int    `json:"achievements"`
	Failures        int    `json:"failures"`
}

// Entry is the ledger record for one activity.
type Entry struct {
	ActivityID string     `json:"activity_id"`
	State      State      `json:"state"`
	Attempts   int        `json:"attempts"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    *Summary   `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Ledger tracks which activities are in flight and how processing ended.
//
// Begin claims an activity; a second Begin while the claim is held returns
// ErrInFlight. Begin after Complete or Abort is allowed because processing
// is idempotent. Claims expire after the configured TTL so a crashed worker
// cannot block an activity forever.
type Ledger interface {
	Begin(ctx context.Context, activityID string) error
	Complete(ctx context.Context, activityID string, summary Summary) error
	Abort(ctx context.Context, activityID string, cause error) error
	Status(ctx context.Context, activityID string) (*Entry, error)
	Close() error
}

// New opens the ledger selected by cfg.Backend.
func New(cfg config.LedgerConfig, opts ...Option) (Ledger, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLedger(cfg.InFlightTTL), nil
	case "badger":
		return OpenBadger(cfg, opts...)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
