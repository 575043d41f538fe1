// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/eventprocessor"
	"github.com/tomtom215/segmentum/internal/supervisor/services"
)

// newRouterFactory returns a factory that builds a fully registered event
// router on the shared bus. Poisoned messages go back onto the bus.
func newRouterFactory(cfg config.EventsConfig, bus *eventprocessor.Bus, consumers *eventprocessor.Handlers) services.RouterFactory {
	return func() (services.EventRouter, error) {
		rc := eventprocessor.RouterConfigFromEvents(cfg)
		router, err := eventprocessor.NewRouter(&rc, bus.Publisher, eventprocessor.WatermillLogger())
		if err != nil {
			return nil, err
		}
		consumers.Register(router, bus.RouterSubscriber())
		return router, nil
	}
}

// runningCheck adapts a running flag to a readiness probe.
func runningCheck(name string, running func() bool) func(context.Context) error {
	return func(context.Context) error {
		if !running() {
			return fmt.Errorf("%s not running", name)
		}
		return nil
	}
}
