// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package notify delivers achievement events to users and external systems.
//
// Notifiers:
//   - LogNotifier: writes a structured log line per event
//   - WebhookNotifier: POSTs the event as JSON to a configured URL, rate
//     limited with golang.org/x/time/rate
//
// Dispatcher fans an event out to every enabled notifier. It also
// implements achievements.Sink, so it can be plugged into the engine
// directly when no event bus is configured.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/segmentum/internal/achievements"
)

// Notifier delivers achievement events over one channel.
type Notifier interface {
	// Name identifies the notifier in logs and metrics.
	Name() string

	// Enabled reports whether the notifier is configured.
	Enabled() bool

	Send(ctx context.Context, ev achievements.Event) error
}

// StatusError is returned when a remote endpoint answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether retrying may succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// IsTransient reports whether err is worth retrying: rate limiting,
// server errors and transport failures are; client errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var ce *ConfigError
	return !errors.As(err, &ce)
}

// ConfigError is returned for a notifier that cannot work as configured.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "invalid notifier config: " + e.Reason }
