// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrRouterStopped is returned when the event router exits while the
// service context is still live, so the supervisor restarts it.
var ErrRouterStopped = errors.New("event router stopped unexpectedly")

// EventRouter is a message router that runs until ctx is done or it is
// closed. It is satisfied by *eventprocessor.Router.
type EventRouter interface {
	Run(ctx context.Context) error
	Close() error
}

// RouterFactory builds a fresh router with its handlers registered.
type RouterFactory func() (EventRouter, error)

// EventRouterService runs the event router under supervision. A closed
// router cannot be run again, so every Serve builds a new one from the
// factory.
type EventRouterService struct {
	factory RouterFactory
	running atomic.Bool
	name    string
}

// NewEventRouterService creates the service.
func NewEventRouterService(factory RouterFactory) *EventRouterService {
	return &EventRouterService{
		factory: factory,
		name:    "event-router",
	}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	router, err := s.factory()
	if err != nil {
		return fmt.Errorf("build event router: %w", err)
	}

	s.running.Store(true)
	runErr := router.Run(ctx)
	s.running.Store(false)

	closeErr := router.Close()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if runErr != nil {
		return fmt.Errorf("event router failed: %w", runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %w", ErrRouterStopped, closeErr)
	}
	return ErrRouterStopped
}

// IsRunning reports whether a router is currently running. It backs the
// readiness check.
func (s *EventRouterService) IsRunning() bool {
	return s.running.Load()
}

func (s *EventRouterService) String() string {
	return s.name
}
