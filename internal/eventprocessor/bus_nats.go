// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

//go:build nats

package eventprocessor

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/segmentum/internal/config"
)

func newNATSBus(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	bus := &Bus{Backend: BackendNATS}
	var closers []func() error
	fail := func(err error) (*Bus, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	natsURL := cfg.NATSURL
	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(cfg.NATSURL, cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		closers = append(closers, srv.Shutdown)
		natsURL = srv.ClientURL()
	}

	nc, err := natsgo.Connect(natsURL, natsgo.RetryOnFailedConnect(true), natsgo.MaxReconnects(-1))
	if err != nil {
		return fail(fmt.Errorf("connect to NATS: %w", err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = EnsureStream(ctx, nc)
	cancel()
	nc.Close()
	if err != nil {
		return fail(err)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         natsURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("create watermill publisher: %w", err))
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              natsURL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			AckAsync:      false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(StreamName),
				natsgo.DeliverNew(),
				natsgo.MaxDeliver(10),
			},
			DurablePrefix:     cfg.DurablePrefix,
			DurableCalculator: durableName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return fail(fmt.Errorf("create watermill subscriber: %w", err))
	}

	bus.Publisher = pub
	bus.Subscriber = sub
	bus.closers = append([]func() error{sub.Close, pub.Close}, reverse(closers)...)
	return bus, nil
}

func reverse(fns []func() error) []func() error {
	out := make([]func() error, len(fns))
	for i, fn := range fns {
		out[len(fns)-1-i] = fn
	}
	return out
}
