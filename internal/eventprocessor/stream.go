// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

//go:build nats

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName is the JetStream stream holding every topic.
const StreamName = "SEGMENTUM"

// StreamSubjects are the subjects bound to StreamName.
var StreamSubjects = []string{"activity.>", "segment.>", "achievement.>", "events.>"}

// EnsureStream creates the stream or updates its configuration. It is
// idempotent.
func EnsureStream(ctx context.Context, nc *natsgo.Conn) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	cfg := jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   StreamSubjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     7 * 24 * time.Hour,
		Duplicates: 5 * time.Minute,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	_, err = js.Stream(ctx, StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", StreamName, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", StreamName, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", StreamName, err)
	}
	return nil
}

// durableName derives a consumer name per topic. Durable names may not
// contain dots.
func durableName(prefix, topic string) string {
	return prefix + "_" + strings.NewReplacer(".", "_", ">", "all", "*", "any").Replace(topic)
}
