// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package eventprocessor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/breaker"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/models"
)

type fakeSubmitter struct {
	mu        sync.Mutex
	fail      error
	calls     int
	activity  chan string
	backfills chan string
}

func newFakeSubmitter() *fakeSubmitter {
	return &fakeSubmitter{activity: make(chan string, 16), backfills: make(chan string, 16)}
}

func (f *fakeSubmitter) Submit(_ context.Context, id string) error {
	f.mu.Lock()
	f.calls++
	err := f.fail
	f.mu.Unlock()
	if err != nil {
		return err
	}
	f.activity <- id
	return nil
}

func (f *fakeSubmitter) SubmitBackfill(_ context.Context, id string) error {
	f.backfills <- id
	return nil
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDispatcher struct {
	events chan achievements.Event
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev achievements.Event) error {
	f.events <- ev
	return nil
}

type harness struct {
	bus       *Bus
	router    *Router
	publisher *Publisher
}

func startHarness(t *testing.T, rc RouterConfig, h *Handlers, extraTopics ...string) (*harness, map[string]<-chan *message.Message) {
	t.Helper()

	bus, err := NewBus(config.EventsConfig{Backend: BackendGoChannel, BufferSize: 16}, nil)
	require.NoError(t, err)

	router, err := NewRouter(&rc, bus.Publisher, nil)
	require.NoError(t, err)
	h.Register(router, bus.Subscriber)

	ctx, cancel := context.WithCancel(context.Background())

	extra := make(map[string]<-chan *message.Message)
	for _, topic := range extraTopics {
		ch, err := bus.Subscriber.Subscribe(ctx, topic)
		require.NoError(t, err)
		extra[topic] = ch
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = router.Run(ctx)
	}()
	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	t.Cleanup(func() {
		cancel()
		<-done
		_ = bus.Close()
	})

	return &harness{
		bus:       bus,
		router:    router,
		publisher: NewPublisher(bus.Publisher, breaker.Config{Name: t.Name()}),
	}, extra
}

func testRouterConfig() RouterConfig {
	rc := DefaultRouterConfig()
	rc.CloseTimeout = time.Second
	rc.RetryMaxRetries = 1
	rc.RetryInitialInterval = time.Millisecond
	rc.RetryMaxInterval = 5 * time.Millisecond
	return rc
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	var zero T
	return zero
}

func TestEvents_Validate(t *testing.T) {
	ev := NewActivityUploadedEvent("act-1", "user-1")
	require.NoError(t, ev.Validate())
	assert.Equal(t, SchemaVersion, ev.SchemaVersion)
	assert.NotEmpty(t, ev.EventID)

	ev.ActivityID = ""
	var verr *ValidationError
	require.ErrorAs(t, ev.Validate(), &verr)
	assert.Equal(t, "activity_id", verr.Field)

	seg := NewSegmentCreatedEvent("", "user-1")
	require.Error(t, seg.Validate())

	ach := NewAchievementEvent(achievements.Event{
		Type:        "achievement.renamed",
		Achievement: models.Achievement{UserID: "u", SegmentID: "s", Type: models.AchievementKOM},
	})
	require.Error(t, ach.Validate())
}

func TestNewMessage_CarriesCorrelationID(t *testing.T) {
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	ev := NewActivityUploadedEvent("act-1", "user-1")

	msg, err := newMessage(ctx, ev.EventID, ev)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, msg.UUID)
	assert.Equal(t, ev.EventID, msg.Metadata.Get(MetadataEventID))
	assert.Equal(t, "corr-1", msg.Metadata.Get(MetadataCorrelationID))
	assert.Equal(t, "corr-1", logging.CorrelationIDFromContext(messageContext(msg)))

	decoded, err := decode[ActivityUploadedEvent](msg)
	require.NoError(t, err)
	assert.Equal(t, "act-1", decoded.ActivityID)
}

func TestDecode_InvalidPayload(t *testing.T) {
	_, err := decode[ActivityUploadedEvent](message.NewMessage("m1", []byte("{not json")))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = decode[ActivityUploadedEvent](message.NewMessage("m2", []byte(`{"event_id":"e1"}`)))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestNewBus_Backends(t *testing.T) {
	bus, err := NewBus(config.EventsConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendGoChannel, bus.Backend)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, err = NewBus(config.EventsConfig{Backend: "kafka"}, nil)
	require.Error(t, err)
}

func TestRouterConfigFromEvents(t *testing.T) {
	rc := RouterConfigFromEvents(config.EventsConfig{
		RetryMaxRetries: 4,
		RetryInterval:   50 * time.Millisecond,
		ThrottlePerSec:  20,
		DedupEnabled:    false,
		PoisonTopic:     "events.dead",
	})
	assert.Equal(t, 4, rc.RetryMaxRetries)
	assert.Equal(t, 50*time.Millisecond, rc.RetryInitialInterval)
	assert.Equal(t, 5*time.Second, rc.RetryMaxInterval)
	assert.Equal(t, int64(20), rc.ThrottlePerSecond)
	assert.False(t, rc.DeduplicationEnabled)
	assert.Equal(t, "events.dead", rc.PoisonQueueTopic)
	assert.Equal(t, 30*time.Second, rc.CloseTimeout)
}

func TestRouter_ActivityUploadedReachesSubmitter(t *testing.T) {
	sub := newFakeSubmitter()
	h, _ := startHarness(t, testRouterConfig(), NewHandlers(sub, nil))
	assert.True(t, h.router.IsRunning())

	ctx := context.Background()
	require.NoError(t, h.publisher.PublishActivityUploaded(ctx, NewActivityUploadedEvent("act-1", "user-1")))
	assert.Equal(t, "act-1", receive(t, sub.activity))

	require.NoError(t, h.publisher.PublishSegmentCreated(ctx, NewSegmentCreatedEvent("seg-1", "user-1")))
	assert.Equal(t, "seg-1", receive(t, sub.backfills))
}

func TestRouter_DeduplicatesByEventID(t *testing.T) {
	sub := newFakeSubmitter()
	h, _ := startHarness(t, testRouterConfig(), NewHandlers(sub, nil))
	ctx := context.Background()

	ev := NewActivityUploadedEvent("act-1", "user-1")
	require.NoError(t, h.publisher.PublishActivityUploaded(ctx, ev))
	require.NoError(t, h.publisher.PublishActivityUploaded(ctx, ev))
	require.NoError(t, h.publisher.PublishActivityUploaded(ctx, NewActivityUploadedEvent("act-2", "user-1")))

	assert.Equal(t, "act-1", receive(t, sub.activity))
	assert.Equal(t, "act-2", receive(t, sub.activity))
	assert.Equal(t, 2, sub.Calls())
}

func TestRouter_MalformedPayloadIsDropped(t *testing.T) {
	sub := newFakeSubmitter()
	h, _ := startHarness(t, testRouterConfig(), NewHandlers(sub, nil))

	require.NoError(t, h.bus.Publisher.Publish(TopicActivityUploaded, message.NewMessage("bad-1", []byte("not json"))))
	require.NoError(t, h.publisher.PublishActivityUploaded(context.Background(), NewActivityUploadedEvent("act-ok", "user-1")))

	assert.Equal(t, "act-ok", receive(t, sub.activity))
	assert.Equal(t, 1, sub.Calls())
}

func TestRouter_PoisonAfterRetries(t *testing.T) {
	sub := newFakeSubmitter()
	sub.fail = errors.New("queue full")
	h, extra := startHarness(t, testRouterConfig(), NewHandlers(sub, nil), TopicPoison)

	ev := NewActivityUploadedEvent("act-1", "user-1")
	require.NoError(t, h.publisher.PublishActivityUploaded(context.Background(), ev))

	poisoned := receive(t, extra[TopicPoison])
	poisoned.Ack()
	assert.Equal(t, ev.EventID, poisoned.Metadata.Get(MetadataEventID))
	assert.Contains(t, poisoned.Metadata.Get("reason_poisoned"), "queue full")
	// first attempt plus one retry
	assert.Equal(t, 2, sub.Calls())
}

func TestPublisher_AchievementSinkRoundTrip(t *testing.T) {
	disp := &fakeDispatcher{events: make(chan achievements.Event, 4)}
	h, _ := startHarness(t, testRouterConfig(), NewHandlers(nil, disp))

	elapsed := 301.5
	effortID := "eff-1"
	sent := achievements.Event{
		Type: achievements.EventGained,
		Achievement: models.Achievement{
			ID:                 "ach-1",
			UserID:             "user-1",
			SegmentID:          "seg-1",
			Type:               models.AchievementKOM,
			EffortID:           &effortID,
			ElapsedTimeSeconds: &elapsed,
			EarnedAt:           time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		OccurredAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	var sink achievements.Sink = h.publisher
	require.NoError(t, sink.NotifyAchievement(context.Background(), sent))

	got := receive(t, disp.events)
	assert.Equal(t, sent.Type, got.Type)
	assert.Equal(t, sent.Achievement.ID, got.Achievement.ID)
	assert.Equal(t, models.AchievementKOM, got.Achievement.Type)
	require.NotNil(t, got.Achievement.ElapsedTimeSeconds)
	assert.InDelta(t, elapsed, *got.Achievement.ElapsedTimeSeconds, 1e-9)
	assert.True(t, sent.OccurredAt.Equal(got.OccurredAt))
}

func TestPublisher_Closed(t *testing.T) {
	bus, err := NewBus(config.EventsConfig{}, nil)
	require.NoError(t, err)
	defer bus.Close()

	p := NewPublisher(bus.Publisher, breaker.Config{})
	require.NoError(t, p.Close())
	err = p.PublishActivityUploaded(context.Background(), NewActivityUploadedEvent("a", "u"))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestPublisher_ScheduleBackfill(t *testing.T) {
	sub := newFakeSubmitter()
	h, _ := startHarness(t, testRouterConfig(), NewHandlers(sub, nil))

	seg := &models.Segment{ID: "seg-9", CreatorID: "user-2"}
	require.NoError(t, h.publisher.ScheduleBackfill(context.Background(), seg))
	assert.Equal(t, "seg-9", receive(t, sub.backfills))
}

func TestBus_RouterSubscriberSurvivesRouterRestart(t *testing.T) {
	bus, err := NewBus(config.EventsConfig{Backend: BackendGoChannel, BufferSize: 16}, nil)
	require.NoError(t, err)
	defer bus.Close()

	sub := newFakeSubmitter()
	run := func() (context.CancelFunc, <-chan struct{}) {
		rc := testRouterConfig()
		router, err := NewRouter(&rc, bus.Publisher, nil)
		require.NoError(t, err)
		NewHandlers(sub, nil).Register(router, bus.RouterSubscriber())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = router.Run(ctx)
		}()
		select {
		case <-router.Running():
		case <-time.After(5 * time.Second):
			t.Fatal("router did not start")
		}
		return cancel, done
	}

	pub := NewPublisher(bus.Publisher, breaker.Config{Name: t.Name()})
	ctx := context.Background()

	cancel, done := run()
	require.NoError(t, pub.PublishActivityUploaded(ctx, NewActivityUploadedEvent("act-1", "u")))
	assert.Equal(t, "act-1", receive(t, sub.activity))
	cancel()
	<-done

	cancel, done = run()
	defer func() {
		cancel()
		<-done
	}()
	require.NoError(t, pub.PublishActivityUploaded(ctx, NewActivityUploadedEvent("act-2", "u")))
	assert.Equal(t, "act-2", receive(t, sub.activity))
}
