// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type fakeGC struct {
	calls atomic.Int32
	err   error
}

func (f *fakeGC) RunGC() error {
	f.calls.Add(1)
	return f.err
}

func TestLedgerGCService(t *testing.T) {
	var _ suture.Service = (*LedgerGCService)(nil)

	t.Run("defaults", func(t *testing.T) {
		svc := NewLedgerGCService(&fakeGC{}, 0)
		if svc.interval != 10*time.Minute {
			t.Errorf("expected default interval 10m, got %v", svc.interval)
		}
		if svc.String() != "ledger-gc" {
			t.Errorf("expected 'ledger-gc', got %q", svc.String())
		}
	})

	t.Run("runs gc on every tick and survives failures", func(t *testing.T) {
		gc := &fakeGC{err: errors.New("value log busy")}
		svc := NewLedgerGCService(gc, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := svc.Serve(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if gc.calls.Load() < 2 {
			t.Errorf("expected repeated GC passes, got %d", gc.calls.Load())
		}
	})
}

type fakeReconciler struct {
	calls atomic.Int32
	err   error
	block bool
}

func (f *fakeReconciler) RunReconciler(ctx context.Context) error {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestReconcilerService(t *testing.T) {
	var _ suture.Service = (*ReconcilerService)(nil)

	t.Run("returns context error on shutdown", func(t *testing.T) {
		rec := &fakeReconciler{block: true}
		svc := NewReconcilerService(rec)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if svc.String() != "achievement-reconciler" {
			t.Errorf("unexpected name %q", svc.String())
		}
	})

	t.Run("early exit is a failure", func(t *testing.T) {
		storeErr := errors.New("store closed")
		svc := NewReconcilerService(&fakeReconciler{err: storeErr})
		err := svc.Serve(context.Background())
		if !errors.Is(err, storeErr) || !errors.Is(err, errReconcilerExited) {
			t.Errorf("expected wrapped store error, got %v", err)
		}

		err = NewReconcilerService(&fakeReconciler{}).Serve(context.Background())
		if !errors.Is(err, errReconcilerExited) {
			t.Errorf("expected errReconcilerExited, got %v", err)
		}
	})
}
