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

// fakeRouter mimics a watermill router: Run blocks until ctx is done or
// Close is called, and a closed router cannot run again.
type fakeRouter struct {
	runErr  error
	started chan struct{}
	closeCh chan struct{}
	closed  atomic.Bool
	runs    atomic.Int32
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{started: make(chan struct{}, 1), closeCh: make(chan struct{})}
}

func (f *fakeRouter) Run(ctx context.Context) error {
	if f.closed.Load() {
		return errors.New("router is closed")
	}
	f.runs.Add(1)
	f.started <- struct{}{}
	if f.runErr != nil {
		return f.runErr
	}
	select {
	case <-ctx.Done():
	case <-f.closeCh:
	}
	return nil
}

func (f *fakeRouter) Close() error {
	if f.closed.CompareAndSwap(false, true) {
		close(f.closeCh)
	}
	return nil
}

func TestEventRouterService_Interface(t *testing.T) {
	var _ suture.Service = (*EventRouterService)(nil)
	if got := NewEventRouterService(nil).String(); got != "event-router" {
		t.Errorf("expected 'event-router', got %q", got)
	}
}

func TestEventRouterService_Serve(t *testing.T) {
	t.Run("runs until cancelled and closes the router", func(t *testing.T) {
		router := newFakeRouter()
		svc := NewEventRouterService(func() (EventRouter, error) { return router, nil })

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()

		waitStarted(t, router.started)
		if !svc.IsRunning() {
			t.Error("expected IsRunning while router runs")
		}
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if svc.IsRunning() {
			t.Error("expected IsRunning false after shutdown")
		}
		if !router.closed.Load() {
			t.Error("router was not closed")
		}
	})

	t.Run("factory error is returned", func(t *testing.T) {
		buildErr := errors.New("subscriber unavailable")
		svc := NewEventRouterService(func() (EventRouter, error) { return nil, buildErr })
		if err := svc.Serve(context.Background()); !errors.Is(err, buildErr) {
			t.Errorf("expected build error, got %v", err)
		}
	})

	t.Run("run error is returned", func(t *testing.T) {
		router := newFakeRouter()
		router.runErr = errors.New("handler setup failed")
		svc := NewEventRouterService(func() (EventRouter, error) { return router, nil })
		if err := svc.Serve(context.Background()); !errors.Is(err, router.runErr) {
			t.Errorf("expected run error, got %v", err)
		}
	})

	t.Run("unexpected stop is a failure", func(t *testing.T) {
		router := newFakeRouter()
		svc := NewEventRouterService(func() (EventRouter, error) { return router, nil })

		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(context.Background()) }()
		waitStarted(t, router.started)
		_ = router.Close()

		select {
		case err := <-errCh:
			if !errors.Is(err, ErrRouterStopped) {
				t.Errorf("expected ErrRouterStopped, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
	})
}

func TestEventRouterService_RestartBuildsNewRouter(t *testing.T) {
	var built atomic.Int32
	routers := make(chan *fakeRouter, 4)
	svc := NewEventRouterService(func() (EventRouter, error) {
		built.Add(1)
		r := newFakeRouter()
		routers <- r
		return r, nil
	})

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 5,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	first := <-routers
	waitStarted(t, first.started)
	_ = first.Close()

	select {
	case second := <-routers:
		waitStarted(t, second.started)
		if second == first {
			t.Error("restart reused the closed router")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("router was not rebuilt after failure")
	}

	cancel()
	<-errCh
	if built.Load() < 2 {
		t.Errorf("expected at least 2 routers built, got %d", built.Load())
	}
}
