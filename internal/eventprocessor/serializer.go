// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package eventprocessor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/segmentum/internal/logging"
)

// Message metadata keys.
const (
	MetadataEventID       = "event_id"
	MetadataCorrelationID = "correlation_id"
	MetadataSchema        = "schema_version"
)

type validatable interface {
	Validate() error
}

// newMessage encodes payload as JSON. The event id becomes the message
// UUID so redeliveries deduplicate; the correlation id in ctx travels in
// metadata.
func newMessage(ctx context.Context, eventID string, payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}
	if eventID == "" {
		eventID = watermill.NewUUID()
	}

	msg := message.NewMessage(eventID, data)
	msg.Metadata.Set(MetadataEventID, eventID)
	msg.Metadata.Set(MetadataSchema, strconv.Itoa(SchemaVersion))

	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = logging.GenerateCorrelationID()
	}
	msg.Metadata.Set(MetadataCorrelationID, correlationID)
	return msg, nil
}

// decode unmarshals and validates a message payload into T.
func decode[T any, PT interface {
	*T
	validatable
}](msg *message.Message) (PT, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p := PT(&v)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return p, nil
}

// messageContext returns the message context carrying its correlation id.
func messageContext(msg *message.Message) context.Context {
	ctx := msg.Context()
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	return ctx
}
