// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package eventprocessor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/breaker"
	"github.com/tomtom215/segmentum/internal/metrics"
	"github.com/tomtom215/segmentum/internal/models"
)

// Publisher wraps a Watermill publisher with a circuit breaker and typed
// publish helpers. It does not own the underlying publisher.
type Publisher struct {
	publisher message.Publisher
	cb        *gobreaker.CircuitBreaker[struct{}]

	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a Publisher. A zero cfg.Name defaults to
// "event-publisher".
func NewPublisher(pub message.Publisher, cfg breaker.Config) *Publisher {
	if cfg.Name == "" {
		cfg.Name = "event-publisher"
	}
	return &Publisher{
		publisher: pub,
		cb:        breaker.New[struct{}](cfg),
	}
}

// Publish sends msg to topic through the circuit breaker.
func (p *Publisher) Publish(_ context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	metrics.RecordEventPublished(topic)
	return nil
}

func (p *Publisher) publishPayload(ctx context.Context, topic, eventID string, payload any) error {
	msg, err := newMessage(ctx, eventID, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, msg)
}

// PublishActivityUploaded requests matching of an activity.
func (p *Publisher) PublishActivityUploaded(ctx context.Context, ev *ActivityUploadedEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return p.publishPayload(ctx, TopicActivityUploaded, ev.EventID, ev)
}

// PublishSegmentCreated requests a backfill of a new segment.
func (p *Publisher) PublishSegmentCreated(ctx context.Context, ev *SegmentCreatedEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return p.publishPayload(ctx, TopicSegmentCreated, ev.EventID, ev)
}

// ScheduleBackfill implements pipeline.BackfillScheduler by publishing
// a segment-created event.
func (p *Publisher) ScheduleBackfill(ctx context.Context, segment *models.Segment) error {
	return p.PublishSegmentCreated(ctx, NewSegmentCreatedEvent(segment.ID, segment.CreatorID))
}

// NotifyAchievement implements achievements.Sink.
func (p *Publisher) NotifyAchievement(ctx context.Context, ev achievements.Event) error {
	wrapped := NewAchievementEvent(ev)
	if err := wrapped.Validate(); err != nil {
		return err
	}
	return p.publishPayload(ctx, wrapped.Topic(), wrapped.EventID, wrapped)
}

// Close stops further publishing. The underlying publisher is closed by
// its owner.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
