// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/logging"
)

// Key prefixes. The claim key carries the in-flight TTL; the status key
// holds the JSON Entry and never expires.
const (
	prefixClaim  = "claim:"
	prefixStatus = "status:"
)

// Option configures OpenBadger.
type Option func(*badger.Options)

// WithInMemory keeps all data in memory. Used by tests.
func WithInMemory(inMemory bool) Option {
	return func(o *badger.Options) {
		o.InMemory = inMemory
		if inMemory {
			o.Dir = ""
			o.ValueDir = ""
		}
	}
}

// WithSyncWrites toggles fsync after every write.
func WithSyncWrites(sync bool) Option {
	return func(o *badger.Options) { o.SyncWrites = sync }
}

// BadgerLedger is a Ledger that survives restarts.
type BadgerLedger struct {
	db  *badger.DB
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	closed bool
}

// OpenBadger opens or creates a ledger at cfg.Path.
func OpenBadger(cfg config.LedgerConfig, opts ...Option) (*BadgerLedger, error) {
	bopts := badger.DefaultOptions(cfg.Path)
	bopts.Logger = nil
	bopts.MemTableSize = 16 << 20
	bopts.ValueLogFileSize = 64 << 20
	for _, opt := range opts {
		opt(&bopts)
	}
	if !bopts.InMemory && cfg.Path == "" {
		return nil, errors.New("ledger path is required for the badger backend")
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", bopts.InMemory).
		Dur("inflight_ttl", cfg.InFlightTTL).
		Msg("Ledger opened")

	return &BadgerLedger{db: db, ttl: cfg.InFlightTTL, now: time.Now}, nil
}

func (l *BadgerLedger) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	return nil
}

// Begin claims activityID. The claim key carries the in-flight TTL, so a
// worker that dies without finishing stops blocking the activity once it
// expires. Two concurrent claims conflict in Badger and one gets ErrInFlight.
func (l *BadgerLedger) Begin(ctx context.Context, activityID string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	err := l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(prefixClaim + activityID))
		if err == nil {
			return ErrInFlight
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get claim: %w", err)
		}

		prev, err := getEntry(txn, activityID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		entry := &Entry{
			ActivityID: activityID,
			State:      StateInFlight,
			Attempts:   1,
			StartedAt:  l.now().UTC(),
		}
		if prev != nil {
			entry.Attempts = prev.Attempts + 1
		}

		claim := badger.NewEntry([]byte(prefixClaim+activityID), []byte{1})
		if l.ttl > 0 {
			claim = claim.WithTTL(l.ttl)
		}
		if err := txn.SetEntry(claim); err != nil {
			return fmt.Errorf("set claim: %w", err)
		}
		return putEntry(txn, entry)
	})
	// A conflicting transaction claimed the same activity first.
	if errors.Is(err, badger.ErrConflict) {
		return ErrInFlight
	}
	if err != nil && !errors.Is(err, ErrInFlight) {
		logging.Ctx(ctx).Error().Err(err).Str("activity_id", activityID).Msg("Ledger begin failed")
	}
	return err
}

// Complete records a successful run and releases the claim.
func (l *BadgerLedger) Complete(_ context.Context, activityID string, summary Summary) error {
	return l.finish(activityID, StateCompleted, &summary, "")
}

// Abort records a failed run and releases the claim.
func (l *BadgerLedger) Abort(_ context.Context, activityID string, cause error) error {
	return l.finish(activityID, StateFailed, nil, errorString(cause))
}

func (l *BadgerLedger) finish(activityID string, state State, summary *Summary, msg string) error {
	if err := l.checkOpen(); err != nil {
		return err
	}

	return l.db.Update(func(txn *badger.Txn) error {
		entry, err := getEntry(txn, activityID)
		if errors.Is(err, ErrNotFound) {
			return ErrNotInFlight
		}
		if err != nil {
			return err
		}
		if entry.State != StateInFlight {
			return ErrNotInFlight
		}

		now := l.now().UTC()
		entry.State = state
		entry.FinishedAt = &now
		entry.Summary = summary
		entry.Error = msg

		if err := txn.Delete([]byte(prefixClaim + activityID)); err != nil {
			return fmt.Errorf("delete claim: %w", err)
		}
		return putEntry(txn, entry)
	})
}

// Status returns the entry for activityID. An in-flight entry whose claim
// has expired is reported as StateAbandoned.
func (l *BadgerLedger) Status(_ context.Context, activityID string) (*Entry, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var entry *Entry
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		entry, err = getEntry(txn, activityID)
		if err != nil {
			return err
		}
		if entry.State != StateInFlight {
			return nil
		}
		_, err = txn.Get([]byte(prefixClaim + activityID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			entry.State = StateAbandoned
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// gcDiscardRatio is the share of a value log file that must be stale
// before GC rewrites it.
const gcDiscardRatio = 0.5

// RunGC reclaims value log space held by expired claims and overwritten
// statuses. It rewrites files until badger reports nothing left to do.
func (l *BadgerLedger) RunGC() error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	for {
		err := l.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}

// Close closes the underlying database. It is safe to call more than once.
func (l *BadgerLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.db.Close()
}

func getEntry(txn *badger.Txn, activityID string) (*Entry, error) {
	item, err := txn.Get([]byte(prefixStatus + activityID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	var entry Entry
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entry)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &entry, nil
}

func putEntry(txn *badger.Txn, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return txn.Set([]byte(prefixStatus+entry.ActivityID), data)
}
