// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package eventprocessor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/logging"
)

// Event bus backends.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// Bus is a connected publisher/subscriber pair for one backend.
type Bus struct {
	Backend    string
	Publisher  message.Publisher
	Subscriber message.Subscriber

	closeOnce sync.Once
	closers   []func() error
}

// Close shuts down the subscriber, the publisher and any embedded server,
// in that order.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		var errs []error
		for _, c := range b.closers {
			if cerr := c(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}

// WatermillLogger adapts the application logger for Watermill.
func WatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger())
}

// NewBus connects the configured backend. The nats backend is only
// available in binaries built with -tags nats.
func NewBus(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = WatermillLogger()
	}
	switch cfg.Backend {
	case "", BackendGoChannel:
		return newGoChannelBus(cfg, logger), nil
	case BackendNATS:
		return newNATSBus(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown event backend %q", cfg.Backend)
	}
}

// newGoChannelBus creates an in-process bus. One GoChannel serves as both
// publisher and subscriber; it is closed once.
func newGoChannelBus(cfg config.EventsConfig, logger watermill.LoggerAdapter) *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)
	return &Bus{
		Backend:    BackendGoChannel,
		Publisher:  pubSub,
		Subscriber: pubSub,
		closers:    []func() error{pubSub.Close},
	}
}

// RouterSubscriber returns the bus subscriber for use by a Router. A
// watermill Router closes its subscribers when it stops; the returned
// subscriber ignores that Close so a replacement router can subscribe
// again. The bus itself still closes the real subscriber.
func (b *Bus) RouterSubscriber() message.Subscriber {
	return routerSubscriber{b.Subscriber}
}

type routerSubscriber struct {
	message.Subscriber
}

func (routerSubscriber) Close() error { return nil }
