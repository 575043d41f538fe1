// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/breaker"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/effort"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/ledger"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/matcher"
	"github.com/tomtom215/segmentum/internal/metrics"
	"github.com/tomtom215/segmentum/internal/models"
	"github.com/tomtom215/segmentum/internal/records"
)

// Processing outcomes, also used as metric labels.
const (
	OutcomeSuccess   = "success"
	OutcomePartial   = "partial"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// Store is the persistence the processor needs. *database.DB implements it.
type Store interface {
	GetTrack(ctx context.Context, id string) (*models.Track, error)
	DeleteTrack(ctx context.Context, id string) ([]database.EffortRef, error)
	FindCandidateTracks(ctx context.Context, bbox geo.BBox, activityType, userID string) ([]models.ActivitySummary, error)
	FindCandidateSegments(ctx context.Context, bbox geo.BBox, radiusMeters float64, activityType, userID string) ([]*models.Segment, error)
	GetSegment(ctx context.Context, id string) (*models.Segment, error)
	InsertSegment(ctx context.Context, s *models.Segment) error
	SoftDeleteSegment(ctx context.Context, id string, at time.Time) error
}

// Recorder stores efforts and maintains personal records.
type Recorder interface {
	RecordEffort(ctx context.Context, e *models.Effort) (*records.Result, error)
	Rederive(ctx context.Context, userID, segmentID string) (*models.Effort, error)
}

// Achiever re-evaluates crowns after efforts change.
type Achiever interface {
	OnEffort(ctx context.Context, e *models.Effort) ([]achievements.Event, error)
	Reconcile(ctx context.Context, segmentID string) ([]achievements.Event, error)
}

// Invalidator drops cached leaderboards of a segment.
type Invalidator interface {
	Invalidate(segmentID string)
}

// BackfillScheduler queues matching of stored activities against a new
// segment.
type BackfillScheduler interface {
	ScheduleBackfill(ctx context.Context, segment *models.Segment) error
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Store        Store
	Ledger       ledger.Ledger
	Records      Recorder
	Achievements Achiever
	Leaderboards Invalidator

	// Backfill is optional; without it CreateSegment does not schedule a
	// backfill.
	Backfill BackfillScheduler
}

// EffortOutcome is one effort written for an activity.
type EffortOutcome struct {
	SegmentID          string               `json:"segment_id"`
	EffortID           string               `json:"effort_id"`
	ElapsedTimeSeconds float64              `json:"elapsed_time_seconds"`
	Inserted           bool                 `json:"inserted"`
	IsPersonalRecord   bool                 `json:"is_personal_record"`
	Achievements       []achievements.Event `json:"achievements,omitempty"`
}

// SegmentFailure records a segment whose write-back failed.
type SegmentFailure struct {
	SegmentID string `json:"segment_id"`
	Error     string `json:"error"`
}

// Result is what processing one activity produced.
type Result struct {
	ActivityID string           `json:"activity_id"`
	Outcome    string           `json:"outcome"`
	Candidates int              `json:"candidates"`
	Matches    int              `json:"matches"`
	Efforts    []EffortOutcome  `json:"efforts,omitempty"`
	Failures   []SegmentFailure `json:"failures,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Summary condenses the result for the ledger.
func (r *Result) Summary() ledger.Summary {
	s := ledger.Summary{
		Outcome:    r.Outcome,
		Candidates: r.Candidates,
		Failures:   len(r.Failures),
	}
	for _, e := range r.Efforts {
		if e.Inserted {
			s.Efforts++
		}
		if e.IsPersonalRecord && e.Inserted {
			s.PersonalRecords++
		}
		for _, ev := range e.Achievements {
			if ev.Type == achievements.EventGained {
				s.Achievements++
			}
		}
	}
	return s
}

// Processor turns stored tracks into efforts, personal records and
// achievement changes.
type Processor struct {
	deps     Deps
	matching config.MatchingConfig
	worker   config.WorkerConfig

	matcher *matcher.Matcher
	deriver *effort.Deriver
	lookup  *gobreaker.CircuitBreaker[[]*models.Segment]

	now   func() time.Time
	newID func() string
}

// NewProcessor creates a Processor.
func NewProcessor(deps Deps, cfg *config.Config) *Processor {
	return &Processor{
		deps:     deps,
		matching: cfg.Matching,
		worker:   cfg.Worker,
		matcher:  matcher.New(cfg.Matching),
		deriver:  effort.NewDeriver(cfg.Effort),
		lookup: breaker.New[[]*models.Segment](breaker.Config{
			Name:             "candidate-lookup",
			FailureThreshold: cfg.Worker.BreakerFailureThreshold,
			Timeout:          cfg.Worker.BreakerTimeout,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// ProcessActivity matches an activity against nearby segments and writes
// the resulting efforts. It is idempotent: reprocessing finds the stored
// efforts and changes nothing. A concurrent call for the same activity
// fails with ledger.ErrInFlight.
//
// Input defects are returned together with a rejected Result. A failure
// on one segment is recorded in Result.Failures and does not stop the
// others.
func (p *Processor) ProcessActivity(ctx context.Context, activityID string) (*Result, error) {
	start := p.now()
	ctx = logging.ContextWithActivityID(ctx, activityID)

	if err := p.deps.Ledger.Begin(ctx, activityID); err != nil {
		if errors.Is(err, ledger.ErrInFlight) {
			metrics.RecordLedgerRejection()
			metrics.RecordActivityProcessed(OutcomeDuplicate, p.now().Sub(start))
		}
		return nil, fmt.Errorf("activity %s: %w", activityID, err)
	}

	res, err := p.process(ctx, activityID)
	res.Duration = p.now().Sub(start)
	metrics.RecordActivityProcessed(res.Outcome, res.Duration)

	if err != nil {
		if lerr := p.deps.Ledger.Abort(ctx, activityID, err); lerr != nil {
			logging.Ctx(ctx).Warn().Err(lerr).Msg("Failed to record activity failure in ledger")
		}
		ev := logging.Ctx(ctx).Warn()
		if res.Outcome == OutcomeFailed {
			ev = logging.Ctx(ctx).Error()
		}
		ev.Err(err).Str("outcome", res.Outcome).Msg("Activity processing did not complete")
		return res, err
	}

	if lerr := p.deps.Ledger.Complete(ctx, activityID, res.Summary()); lerr != nil {
		logging.Ctx(ctx).Warn().Err(lerr).Msg("Failed to record activity completion in ledger")
	}

	logging.Ctx(ctx).Info().
		Str("outcome", res.Outcome).
		Int("candidates", res.Candidates).
		Int("matches", res.Matches).
		Int("failures", len(res.Failures)).
		Dur("duration", res.Duration).
		Msg("Activity processed")
	return res, nil
}

func (p *Processor) process(ctx context.Context, activityID string) (*Result, error) {
	res := &Result{ActivityID: activityID, Outcome: OutcomeFailed}

	track, err := p.loadTrack(ctx, activityID)
	if err != nil {
		return res, err
	}
	if err := p.validateTrack(track); err != nil {
		res.Outcome = OutcomeRejected
		res.Reason = err.Error()
		return res, err
	}

	candidates, err := p.findCandidates(ctx, track)
	if err != nil {
		return res, err
	}
	res.Candidates = len(candidates)

	matches, err := p.match(ctx, track, candidates)
	if err != nil {
		return res, err
	}
	res.Matches = len(matches)

	errs := p.writeBack(ctx, track, matches, res)

	switch {
	case len(errs) == 0:
		res.Outcome = OutcomeSuccess
		return res, nil
	case len(errs) < len(matches):
		res.Outcome = OutcomePartial
	default:
		res.Outcome = OutcomeFailed
	}

	// A transient write-back failure fails the attempt so the pool retries
	// the whole activity; stored efforts are found again and left alone.
	var transient []error
	for _, err := range errs {
		if database.IsTransient(err) {
			transient = append(transient, err)
		}
	}
	if len(transient) > 0 {
		return res, fmt.Errorf("%d of %d segment write-backs failed: %w", len(errs), len(matches), errors.Join(transient...))
	}
	if res.Outcome == OutcomeFailed {
		return res, fmt.Errorf("all %d segment write-backs failed: %w", len(errs), errs[0])
	}
	return res, nil
}

func (p *Processor) loadTrack(ctx context.Context, activityID string) (*models.Track, error) {
	track, err := p.deps.Store.GetTrack(ctx, activityID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("activity %s: %w", activityID, ErrTrackNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load track: %w", err)
	}
	return track, nil
}

func (p *Processor) validateTrack(track *models.Track) error {
	minPoints := p.matching.MinTrackPoints
	if minPoints < 2 {
		minPoints = 2
	}
	if len(track.Points) < minPoints {
		return fmt.Errorf("%w: %d points, need %d", ErrTrackTooShort, len(track.Points), minPoints)
	}
	if !track.HasTiming() {
		return fmt.Errorf("activity %s: %w", track.ID, effort.ErrNoTimingData)
	}
	return nil
}

// findCandidates runs the spatial lookup through the circuit breaker,
// retrying transient database errors with exponential backoff.
func (p *Processor) findCandidates(ctx context.Context, track *models.Track) ([]*models.Segment, error) {
	bbox := track.Bounds()
	var candidates []*models.Segment
	err := retryTransient(ctx, 3, p.worker.InitialBackoff, p.worker.MaxBackoff, func() error {
		var err error
		candidates, err = p.lookup.Execute(func() ([]*models.Segment, error) {
			return p.deps.Store.FindCandidateSegments(ctx, bbox, p.matching.CandidateRadiusMeters, track.ActivityType, track.UserID)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("candidate lookup: %w", err)
	}
	visible := candidates[:0]
	for _, seg := range candidates {
		if seg.MatchableBy(track.UserID) {
			visible = append(visible, seg)
		}
	}
	return visible, nil
}

// match confirms traversals of every candidate in parallel. The prepared
// track is read-only and shared by all goroutines.
func (p *Processor) match(ctx context.Context, track *models.Track, candidates []*models.Segment) ([]matcher.MatchResult, error) {
	if len(candidates) == 0 {
		metrics.RecordMatch(0, 0, 0)
		return nil, nil
	}
	start := time.Now()
	prepared := p.matcher.Prepare(track)

	limit := p.worker.MatchConcurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	perSegment := make([][]matcher.MatchResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, seg := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			traversals := p.matcher.MatchSegment(prepared, seg)
			if len(traversals) > 1 {
				logging.Ctx(ctx).Debug().
					Str("segment_id", seg.ID).
					Int("traversals", len(traversals)).
					Str("policy", p.matching.TraversalPolicy).
					Msg("Segment traversed more than once")
			}
			perSegment[i] = p.matcher.Select(prepared, traversals)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []matcher.MatchResult
	for _, rs := range perSegment {
		out = append(out, rs...)
	}
	metrics.RecordMatch(len(candidates), len(out), time.Since(start))
	return out, nil
}

// writeBack stores one effort per match, in candidate order, and returns
// the failures. Each step takes its own exclusive section, so write-back
// for one (user, segment) never interleaves with another worker's.
func (p *Processor) writeBack(ctx context.Context, track *models.Track, matches []matcher.MatchResult, res *Result) []error {
	var errs []error
	for _, m := range matches {
		out, err := p.recordMatch(ctx, track, m)
		if err != nil {
			errs = append(errs, fmt.Errorf("segment %s: %w", m.SegmentID, err))
			res.Failures = append(res.Failures, SegmentFailure{SegmentID: m.SegmentID, Error: err.Error()})
			logging.Ctx(ctx).Warn().Err(err).Str("segment_id", m.SegmentID).Msg("Segment write-back failed")
			continue
		}
		res.Efforts = append(res.Efforts, *out)
	}
	return errs
}

func (p *Processor) recordMatch(ctx context.Context, track *models.Track, m matcher.MatchResult) (*EffortOutcome, error) {
	mt, err := p.deriver.Derive(track, m.StartFraction, m.EndFraction)
	if err != nil {
		return nil, fmt.Errorf("derive effort: %w", err)
	}

	e := &models.Effort{
		ID:                 p.newID(),
		SegmentID:          m.SegmentID,
		ActivityID:         track.ID,
		UserID:             track.UserID,
		StartedAt:          mt.StartedAt.UTC(),
		ElapsedTimeSeconds: mt.ElapsedTimeSeconds,
		MovingTimeSeconds:  mt.MovingTimeSeconds,
		DistanceMeters:     mt.DistanceMeters,
		AverageSpeedMPS:    mt.AverageSpeedMPS,
		MaxSpeedMPS:        mt.MaxSpeedMPS,
		StartFraction:      m.StartFraction,
		EndFraction:        m.EndFraction,
		CreatedAt:          p.now().UTC(),
	}

	rec, err := p.deps.Records.RecordEffort(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("record effort: %w", err)
	}
	stored := rec.Effort

	events, err := p.deps.Achievements.OnEffort(ctx, stored)
	if rec.Inserted || len(events) > 0 {
		p.deps.Leaderboards.Invalidate(m.SegmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("evaluate achievements: %w", err)
	}

	if rec.IsPR && rec.Inserted {
		logging.Ctx(ctx).Info().
			Str("segment_id", m.SegmentID).
			Float64("elapsed_seconds", stored.ElapsedTimeSeconds).
			Float64("improvement_seconds", rec.ImprovementSeconds()).
			Msg("New personal record")
	}

	return &EffortOutcome{
		SegmentID:          m.SegmentID,
		EffortID:           stored.ID,
		ElapsedTimeSeconds: stored.ElapsedTimeSeconds,
		Inserted:           rec.Inserted,
		IsPersonalRecord:   rec.IsPR,
		Achievements:       events,
	}, nil
}

// retryTransient retries fn while it fails with a transient database
// error, doubling the delay each time up to maxDelay.
func retryTransient(ctx context.Context, attempts int, delay, maxDelay time.Duration, fn func() error) error {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = fn()
		if err == nil || !database.IsTransient(err) || attempt == attempts {
			return err
		}

		logging.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying transient failure")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
	}
	return err
}
