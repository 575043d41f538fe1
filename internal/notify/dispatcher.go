// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/metrics"
)

// Dispatcher sends each event to every enabled notifier.
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher builds the notifiers described by cfg.
func NewDispatcher(cfg config.NotifyConfig) (*Dispatcher, error) {
	webhook, err := NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookRateLimit, cfg.WebhookTimeout)
	if err != nil {
		return nil, err
	}
	return NewDispatcherWith(NewLogNotifier(cfg.LogEnabled), webhook), nil
}

// NewDispatcherWith creates a Dispatcher over the given notifiers. Disabled
// notifiers are dropped.
func NewDispatcherWith(notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{}
	for _, n := range notifiers {
		if n != nil && n.Enabled() {
			d.notifiers = append(d.notifiers, n)
		}
	}
	return d
}

// Notifiers returns the names of the active notifiers.
func (d *Dispatcher) Notifiers() []string {
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Dispatch sends ev to every notifier. Failures are logged; only transient
// ones are returned, so a caller with retry support can try again.
func (d *Dispatcher) Dispatch(ctx context.Context, ev achievements.Event) error {
	var transient []error
	for _, n := range d.notifiers {
		err := n.Send(ctx, ev)
		metrics.RecordNotification(n.Name(), err)
		if err == nil {
			continue
		}

		logging.Ctx(ctx).Warn().Err(err).
			Str("notifier", n.Name()).
			Str("event", string(ev.Type)).
			Str("segment_id", ev.Achievement.SegmentID).
			Str("user_id", ev.Achievement.UserID).
			Bool("transient", IsTransient(err)).
			Msg("Notification failed")
		if IsTransient(err) {
			transient = append(transient, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(transient...)
}

// NotifyAchievement implements achievements.Sink. Delivery errors are
// logged and never returned to the engine.
func (d *Dispatcher) NotifyAchievement(ctx context.Context, ev achievements.Event) error {
	_ = d.Dispatch(ctx, ev)
	return nil
}
