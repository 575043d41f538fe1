// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package achievements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/keylock"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/metrics"
	"github.com/tomtom215/segmentum/internal/models"
)

// Store is the persistence the engine needs. *database.DB implements it.
type Store interface {
	ActiveAchievement(ctx context.Context, segmentID string, typ models.AchievementType) (*models.Achievement, error)
	TransferAchievement(ctx context.Context, segmentID string, typ models.AchievementType, next *models.Achievement, at time.Time) ([]*models.Achievement, error)
	RefreshAchievement(ctx context.Context, a *models.Achievement) error
	SegmentAchievements(ctx context.Context, segmentID string) ([]*models.Achievement, error)
	UserAchievements(ctx context.Context, userID string, activeOnly bool) ([]*models.Achievement, error)
	SegmentsForReconcile(ctx context.Context, since time.Time) ([]string, error)

	FastestEffort(ctx context.Context, segmentID, gender string) (*models.Effort, error)
	FastestUserEffort(ctx context.Context, userID, segmentID string) (*models.Effort, error)
	EffortCounts(ctx context.Context, segmentID string, since time.Time) ([]models.EffortCount, error)
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// Engine keeps achievement state in line with the stored efforts. Every
// evaluation re-derives holder and contender from current state, so
// running it twice changes nothing the second time.
type Engine struct {
	store Store
	sink  Sink
	locks *keylock.Locker
	cfg   config.AchievementsConfig

	now   func() time.Time
	newID func() string
}

// NewEngine creates an Engine. A nil sink drops events; a nil locker gets
// a private one.
func NewEngine(store Store, sink Sink, locks *keylock.Locker, cfg config.AchievementsConfig) *Engine {
	if sink == nil {
		sink = nopSink{}
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &Engine{
		store: store,
		sink:  sink,
		locks: locks,
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// OnEffort re-evaluates every achievement type on the effort's segment and
// returns the events it emitted.
func (e *Engine) OnEffort(ctx context.Context, effort *models.Effort) ([]Event, error) {
	return e.Reconcile(ctx, effort.SegmentID)
}

// Reconcile re-evaluates every achievement type on a segment. Types are
// independent; a failure on one does not stop the others.
func (e *Engine) Reconcile(ctx context.Context, segmentID string) ([]Event, error) {
	var (
		events []Event
		errs   []error
	)
	for _, typ := range models.AchievementTypes {
		evs, err := e.evaluate(ctx, segmentID, typ)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", typ, err))
			continue
		}
		events = append(events, evs...)
	}
	return events, errors.Join(errs...)
}

// ReconcileAll re-evaluates segments that have an active achievement or an
// effort inside the local legend window, so aged-out efforts release their
// crowns. It returns the number of events emitted.
func (e *Engine) ReconcileAll(ctx context.Context) (int, error) {
	segments, err := e.store.SegmentsForReconcile(ctx, e.now().Add(-e.cfg.LocalLegendWindow))
	if err != nil {
		return 0, err
	}

	emitted := 0
	var errs []error
	for _, id := range segments {
		if err := ctx.Err(); err != nil {
			return emitted, err
		}
		events, err := e.Reconcile(ctx, id)
		emitted += len(events)
		if err != nil {
			errs = append(errs, fmt.Errorf("segment %s: %w", id, err))
		}
	}

	logging.Info().
		Int("segments", len(segments)).
		Int("events", emitted).
		Int("errors", len(errs)).
		Msg("Achievement reconcile complete")
	return emitted, errors.Join(errs...)
}

// RunReconciler calls ReconcileAll every interval until ctx is done.
func (e *Engine) RunReconciler(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.ReconcileAll(ctx); err != nil && ctx.Err() == nil {
				logging.Warn().Err(err).Msg("Achievement reconcile finished with errors")
			}
		}
	}
}

// SegmentAchievements returns the active holders on a segment.
func (e *Engine) SegmentAchievements(ctx context.Context, segmentID string) (*models.SegmentAchievements, error) {
	list, err := e.store.SegmentAchievements(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	out := &models.SegmentAchievements{SegmentID: segmentID}
	for _, a := range list {
		out.Set(a)
	}
	return out, nil
}

// UserAchievements returns a user's achievements, newest first.
func (e *Engine) UserAchievements(ctx context.Context, userID string, activeOnly bool) ([]*models.Achievement, error) {
	return e.store.UserAchievements(ctx, userID, activeOnly)
}

func (e *Engine) evaluate(ctx context.Context, segmentID string, typ models.AchievementType) ([]Event, error) {
	var events []Event
	err := e.locks.Do(ctx, keylock.Key("ach", segmentID, string(typ)), func(ctx context.Context) error {
		var err error
		events, err = e.evaluateLocked(ctx, segmentID, typ)
		return err
	})
	return events, err
}

func (e *Engine) evaluateLocked(ctx context.Context, segmentID string, typ models.AchievementType) ([]Event, error) {
	stored, err := e.store.ActiveAchievement(ctx, segmentID, typ)
	if err != nil {
		return nil, err
	}

	current, contender, err := e.standings(ctx, segmentID, typ, stored)
	if err != nil {
		return nil, err
	}

	out := Transition(current, contender)

	// The stored holder no longer qualifies at all.
	vacated := stored != nil && current == nil
	if !out.Changed && !vacated {
		if out.Next != nil && stored != nil && !storedMatches(stored, out.Next) {
			applyStats(stored, out.Next)
			if err := e.store.RefreshAchievement(ctx, stored); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	now := e.now().UTC()
	var next *models.Achievement
	if out.Next != nil {
		next = &models.Achievement{
			ID:        e.newID(),
			UserID:    out.Next.UserID,
			SegmentID: segmentID,
			Type:      typ,
			EarnedAt:  now,
		}
		applyStats(next, out.Next)
	}

	lost, err := e.store.TransferAchievement(ctx, segmentID, typ, next, now)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(lost)+1)
	for _, l := range lost {
		events = append(events, Event{Type: EventLost, Achievement: *l, Counterpart: next, OccurredAt: now})
	}
	if next != nil {
		ev := Event{Type: EventGained, Achievement: *next, OccurredAt: now}
		if len(lost) > 0 {
			ev.Counterpart = lost[0]
		}
		events = append(events, ev)
	}

	for _, ev := range events {
		metrics.RecordAchievementTransition(string(typ), ev.Type.short())
		logging.Ctx(ctx).Info().
			Str("segment_id", segmentID).
			Str("type", string(typ)).
			Str("event", string(ev.Type)).
			Str("user_id", ev.Achievement.UserID).
			Msg("Achievement changed")
		if err := e.sink.NotifyAchievement(ctx, ev); err != nil {
			logging.Ctx(ctx).Warn().Err(err).
				Str("segment_id", segmentID).
				Str("event", string(ev.Type)).
				Msg("Failed to emit achievement event")
		}
	}
	return events, nil
}

func (t EventType) short() string {
	if t == EventGained {
		return "gained"
	}
	return "lost"
}

// standings derives the live standing of the stored holder and the best
// contender from current state.
func (e *Engine) standings(ctx context.Context, segmentID string, typ models.AchievementType, stored *models.Achievement) (current, contender *Holder, err error) {
	if !typ.Timed() {
		counts, err := e.store.EffortCounts(ctx, segmentID, e.now().Add(-e.cfg.LocalLegendWindow))
		if err != nil {
			return nil, nil, err
		}
		if len(counts) > 0 {
			contender = countHolder(typ, counts[0])
		}
		if stored != nil {
			for _, c := range counts {
				if c.UserID == stored.UserID {
					current = countHolder(typ, c)
					break
				}
			}
		}
		return current, contender, nil
	}

	best, err := e.store.FastestEffort(ctx, segmentID, typ.Gender())
	switch {
	case err == nil:
		contender = effortHolder(typ, best)
	case !errors.Is(err, database.ErrNotFound):
		return nil, nil, err
	}

	if stored != nil {
		current, err = e.liveTimedHolder(ctx, segmentID, typ, stored.UserID)
		if err != nil {
			return nil, nil, err
		}
	}
	return current, contender, nil
}

func (e *Engine) liveTimedHolder(ctx context.Context, segmentID string, typ models.AchievementType, userID string) (*Holder, error) {
	if g := typ.Gender(); g != "" {
		profile, err := e.store.GetUserProfile(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if profile.Gender != g {
			return nil, nil
		}
	}

	eff, err := e.store.FastestUserEffort(ctx, userID, segmentID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return effortHolder(typ, eff), nil
}

func effortHolder(typ models.AchievementType, eff *models.Effort) *Holder {
	return &Holder{
		UserID:             eff.UserID,
		Type:               typ,
		EffortID:           eff.ID,
		ElapsedTimeSeconds: eff.ElapsedTimeSeconds,
		At:                 eff.StartedAt,
	}
}

func countHolder(typ models.AchievementType, c models.EffortCount) *Holder {
	return &Holder{UserID: c.UserID, Type: typ, EffortCount: c.Count, At: c.LastEffort}
}

func applyStats(a *models.Achievement, h *Holder) {
	if h.Type.Timed() {
		id, elapsed := h.EffortID, h.ElapsedTimeSeconds
		a.EffortID = &id
		a.ElapsedTimeSeconds = &elapsed
		a.EffortCount = nil
		return
	}
	n := h.EffortCount
	a.EffortCount = &n
	a.EffortID = nil
	a.ElapsedTimeSeconds = nil
}

// storedMatches reports whether the persisted row already carries the
// holder's live statistics.
func storedMatches(a *models.Achievement, h *Holder) bool {
	if h.Type.Timed() {
		return a.EffortID != nil && *a.EffortID == h.EffortID &&
			a.ElapsedTimeSeconds != nil && *a.ElapsedTimeSeconds == h.ElapsedTimeSeconds
	}
	return a.EffortCount != nil && *a.EffortCount == h.EffortCount
}
