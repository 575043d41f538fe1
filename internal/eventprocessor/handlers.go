// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package eventprocessor

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/metrics"
)

// ActivitySubmitter queues work for the activity worker pool.
type ActivitySubmitter interface {
	Submit(ctx context.Context, activityID string) error
	SubmitBackfill(ctx context.Context, segmentID string) error
}

// AchievementDispatcher delivers achievement events to notifiers.
type AchievementDispatcher interface {
	Dispatch(ctx context.Context, ev achievements.Event) error
}

// Handlers consumes bus topics and hands the work to the pipeline and the
// notifiers. Either dependency may be nil, in which case its topics are
// not subscribed.
type Handlers struct {
	submitter  ActivitySubmitter
	dispatcher AchievementDispatcher
}

// NewHandlers creates the consumer handlers.
func NewHandlers(submitter ActivitySubmitter, dispatcher AchievementDispatcher) *Handlers {
	return &Handlers{submitter: submitter, dispatcher: dispatcher}
}

// Register adds every handler with a dependency to the router.
func (h *Handlers) Register(r *Router, sub message.Subscriber) {
	if h.submitter != nil {
		r.AddConsumerHandler("activity-uploaded", TopicActivityUploaded, sub, h.HandleActivityUploaded)
		r.AddConsumerHandler("segment-created", TopicSegmentCreated, sub, h.HandleSegmentCreated)
	}
	if h.dispatcher != nil {
		r.AddConsumerHandler("achievement-gained", TopicAchievementGained, sub, h.HandleAchievement)
		r.AddConsumerHandler("achievement-lost", TopicAchievementLost, sub, h.HandleAchievement)
	}
}

// HandleActivityUploaded queues an activity for matching. A full queue is
// returned as an error so the message is retried.
func (h *Handlers) HandleActivityUploaded(msg *message.Message) error {
	ev, err := decode[ActivityUploadedEvent](msg)
	if err != nil {
		return dropMalformed(msg, TopicActivityUploaded, err)
	}
	ctx := logging.ContextWithActivityID(messageContext(msg), ev.ActivityID)

	err = h.submitter.Submit(ctx, ev.ActivityID)
	metrics.RecordEventConsumed(TopicActivityUploaded, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to queue uploaded activity")
		return err
	}
	return nil
}

// HandleSegmentCreated queues a backfill of the new segment.
func (h *Handlers) HandleSegmentCreated(msg *message.Message) error {
	ev, err := decode[SegmentCreatedEvent](msg)
	if err != nil {
		return dropMalformed(msg, TopicSegmentCreated, err)
	}
	ctx := messageContext(msg)

	err = h.submitter.SubmitBackfill(ctx, ev.SegmentID)
	metrics.RecordEventConsumed(TopicSegmentCreated, err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("segment_id", ev.SegmentID).Msg("Failed to queue segment backfill")
		return err
	}
	return nil
}

// HandleAchievement forwards an achievement event to the notifiers.
// Only transient delivery failures are retried.
func (h *Handlers) HandleAchievement(msg *message.Message) error {
	ev, err := decode[AchievementEvent](msg)
	if err != nil {
		return dropMalformed(msg, ev.topicOr(TopicAchievementGained), err)
	}
	ctx := messageContext(msg)

	err = h.dispatcher.Dispatch(ctx, ev.Event)
	metrics.RecordEventConsumed(ev.Topic(), err)
	return err
}

func (e *AchievementEvent) topicOr(fallback string) string {
	if e == nil || e.Type == "" {
		return fallback
	}
	return e.Topic()
}

// dropMalformed acks a message that can never be processed. Retrying it
// would only delay its trip to the poison queue.
func dropMalformed(msg *message.Message, topic string, err error) error {
	metrics.RecordEventConsumed(topic, err)
	logging.Warn().
		Err(err).
		Str("topic", topic).
		Str("message_uuid", msg.UUID).
		Msg("Dropping malformed event")
	if errors.Is(err, ErrInvalidPayload) {
		return nil
	}
	return err
}
