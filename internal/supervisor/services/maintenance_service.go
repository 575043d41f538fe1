// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/segmentum/internal/logging"
)

// GarbageCollector reclaims storage. *ledger.BadgerLedger satisfies it.
type GarbageCollector interface {
	RunGC() error
}

// LedgerGCService periodically runs value log GC on the processing
// ledger. A failed pass is logged and retried on the next tick.
type LedgerGCService struct {
	gc       GarbageCollector
	interval time.Duration
	name     string
}

// NewLedgerGCService creates the service. A non-positive interval means 10m.
func NewLedgerGCService(gc GarbageCollector, interval time.Duration) *LedgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &LedgerGCService{
		gc:       gc,
		interval: interval,
		name:     "ledger-gc",
	}
}

// Serve implements suture.Service.
func (s *LedgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.gc.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Ledger GC failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("Ledger GC complete")
		}
	}
}

func (s *LedgerGCService) String() string {
	return s.name
}

var errReconcilerExited = errors.New("achievement reconciler exited")

// Reconciler re-evaluates time-windowed achievements until ctx is done.
// *achievements.Engine satisfies it.
type Reconciler interface {
	RunReconciler(ctx context.Context) error
}

// ReconcilerService runs the achievement reconciler under supervision.
type ReconcilerService struct {
	reconciler Reconciler
	name       string
}

// NewReconcilerService creates the service.
func NewReconcilerService(r Reconciler) *ReconcilerService {
	return &ReconcilerService{
		reconciler: r,
		name:       "achievement-reconciler",
	}
}

// Serve implements suture.Service. Any exit other than shutdown is a
// failure so the supervisor restarts the loop.
func (s *ReconcilerService) Serve(ctx context.Context) error {
	err := s.reconciler.RunReconciler(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return errReconcilerExited
	}
	return fmt.Errorf("%w: %w", errReconcilerExited, err)
}

func (s *ReconcilerService) String() string {
	return s.name
}
