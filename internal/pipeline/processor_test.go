// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/segmentum/internal/achievements"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/effort"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/ledger"
	"github.com/tomtom215/segmentum/internal/models"
	"github.com/tomtom215/segmentum/internal/records"
)

var metersPerDegree = geo.EarthRadiusMeters * math.Pi / 180

func xy(east, north float64) geo.Point {
	return geo.Point{Lat: north / metersPerDegree, Lon: east / metersPerDegree}
}

var trackStart = time.Date(2026, 5, 10, 7, 30, 0, 0, time.UTC)

// eastTrack rides 2000 m east from (0,0) at speed m/s, one point every 10 m.
func eastTrack(id, user string, speed float64) *models.Track {
	t := &models.Track{ID: id, UserID: user, ActivityType: "ride"}
	for d := 0.0; d <= 2000; d += 10 {
		ts := trackStart.Add(time.Duration(d / speed * float64(time.Second)))
		t.Points = append(t.Points, models.TrackPoint{Point: xy(d, 0), Time: &ts})
	}
	return t
}

func eastSegment(id string, from, to float64) *models.Segment {
	var pts []geo.Point
	for d := from; d <= to; d += 100 {
		pts = append(pts, xy(d, 0))
	}
	return &models.Segment{ID: id, ActivityType: "ride", Points: pts}
}

type fakeStore struct {
	mu            sync.Mutex
	tracks        map[string]*models.Track
	segments      map[string]*models.Segment
	lookupErrs    []error
	lookups       int
	deleteRefs    []database.EffortRef
	trackSummarys []models.ActivitySummary
	trackOwner    string
}

func newFakeStore() *fakeStore {
	return &fakeStore{tracks: map[string]*models.Track{}, segments: map[string]*models.Segment{}}
}

func (s *fakeStore) GetTrack(_ context.Context, id string) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track %s: %w", id, database.ErrNotFound)
	}
	return t, nil
}

func (s *fakeStore) DeleteTrack(_ context.Context, id string) ([]database.EffortRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[id]; !ok {
		return nil, fmt.Errorf("track %s: %w", id, database.ErrNotFound)
	}
	delete(s.tracks, id)
	return s.deleteRefs, nil
}

func (s *fakeStore) FindCandidateTracks(_ context.Context, _ geo.BBox, _ string, userID string) ([]models.ActivitySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackOwner = userID
	return s.trackSummarys, nil
}

func (s *fakeStore) FindCandidateSegments(context.Context, geo.BBox, float64, string, string) ([]*models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if len(s.lookupErrs) > 0 {
		err := s.lookupErrs[0]
		s.lookupErrs = s.lookupErrs[1:]
		return nil, err
	}
	out := make([]*models.Segment, 0, len(s.segments))
	for _, seg := range s.segments {
		if !seg.Deleted() {
			out = append(out, seg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetSegment(_ context.Context, id string) (*models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok {
		return nil, fmt.Errorf("segment %s: %w", id, database.ErrNotFound)
	}
	return seg, nil
}

func (s *fakeStore) InsertSegment(_ context.Context, seg *models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[seg.ID] = seg
	return nil
}

func (s *fakeStore) SoftDeleteSegment(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok || seg.Deleted() {
		return fmt.Errorf("segment %s: %w", id, database.ErrNotFound)
	}
	seg.DeletedAt = &at
	return nil
}

// fakeRecorder keeps one effort per (activity, segment) and flags the
// fastest per (user, segment).
type fakeRecorder struct {
	mu        sync.Mutex
	efforts   map[string]*models.Effort
	rederived []string
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{efforts: map[string]*models.Effort{}}
}

func (r *fakeRecorder) RecordEffort(_ context.Context, e *models.Effort) (*records.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := e.ActivityID + "/" + e.SegmentID
	if existing, ok := r.efforts[key]; ok {
		return &records.Result{Effort: existing, IsPR: existing.IsPersonalRecord}, nil
	}
	var prev *models.Effort
	for _, o := range r.efforts {
		if o.UserID == e.UserID && o.SegmentID == e.SegmentID && o.IsPersonalRecord {
			prev = o
		}
	}
	res := &records.Result{Effort: e, Inserted: true}
	if prev == nil || e.FasterThan(prev) {
		if prev != nil {
			prev.IsPersonalRecord = false
		}
		e.IsPersonalRecord = true
		res.IsPR = true
		res.Previous = prev
	}
	r.efforts[key] = e
	return res, nil
}

func (r *fakeRecorder) Rederive(_ context.Context, userID, segmentID string) (*models.Effort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rederived = append(r.rederived, userID+"/"+segmentID)
	return nil, nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.efforts)
}

type fakeAchiever struct {
	mu         sync.Mutex
	failFor    map[string]error
	failOnce   map[string]error
	onEffort   []string
	reconciled []string
}

func (a *fakeAchiever) OnEffort(_ context.Context, e *models.Effort) ([]achievements.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.failFor[e.SegmentID]; err != nil {
		return nil, err
	}
	if err := a.failOnce[e.SegmentID]; err != nil {
		delete(a.failOnce, e.SegmentID)
		return nil, err
	}
	a.onEffort = append(a.onEffort, e.SegmentID)
	return []achievements.Event{{
		Type:        achievements.EventGained,
		Achievement: models.Achievement{UserID: e.UserID, SegmentID: e.SegmentID, Type: models.AchievementCourseRecord},
	}}, nil
}

func (a *fakeAchiever) evaluated() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.onEffort...)
}

func (a *fakeAchiever) Reconcile(_ context.Context, segmentID string) ([]achievements.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reconciled = append(a.reconciled, segmentID)
	return nil, nil
}

type fakeInvalidator struct {
	mu       sync.Mutex
	segments []string
}

func (f *fakeInvalidator) Invalidate(segmentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = append(f.segments, segmentID)
}

type fakeBackfill struct {
	scheduled []string
}

func (f *fakeBackfill) ScheduleBackfill(_ context.Context, seg *models.Segment) error {
	f.scheduled = append(f.scheduled, seg.ID)
	return nil
}

type fixture struct {
	proc     *Processor
	store    *fakeStore
	ledger   ledger.Ledger
	recorder *fakeRecorder
	achiever *fakeAchiever
	inval    *fakeInvalidator
	backfill *fakeBackfill
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Defaults()
	cfg.Worker.InitialBackoff = time.Millisecond
	cfg.Worker.MaxBackoff = 5 * time.Millisecond
	cfg.Worker.MatchConcurrency = 2

	f := &fixture{
		store:    newFakeStore(),
		ledger:   ledger.NewMemoryLedger(time.Minute),
		recorder: newFakeRecorder(),
		achiever: &fakeAchiever{failFor: map[string]error{}, failOnce: map[string]error{}},
		inval:    &fakeInvalidator{},
		backfill: &fakeBackfill{},
	}
	t.Cleanup(func() { _ = f.ledger.Close() })

	f.proc = NewProcessor(Deps{
		Store:        f.store,
		Ledger:       f.ledger,
		Records:      f.recorder,
		Achievements: f.achiever,
		Leaderboards: f.inval,
		Backfill:     f.backfill,
	}, cfg)

	var n atomic.Int64
	f.proc.newID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
	return f
}

func TestProcessActivity_WritesEffort(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.segments["seg-a"] = eastSegment("seg-a", 500, 1500)

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 1, res.Candidates)
	assert.Equal(t, 1, res.Matches)
	require.Len(t, res.Efforts, 1)

	e := res.Efforts[0]
	assert.Equal(t, "seg-a", e.SegmentID)
	assert.True(t, e.Inserted)
	assert.True(t, e.IsPersonalRecord)
	assert.InDelta(t, 200, e.ElapsedTimeSeconds, 3)
	assert.Len(t, e.Achievements, 1)

	assert.Equal(t, []string{"seg-a"}, f.inval.segments)
	assert.Equal(t, []string{"seg-a"}, f.achiever.onEffort)

	entry, err := f.ledger.Status(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StateCompleted, entry.State)
	require.NotNil(t, entry.Summary)
	assert.Equal(t, 1, entry.Summary.Efforts)
	assert.Equal(t, 1, entry.Summary.PersonalRecords)
	assert.Equal(t, 1, entry.Summary.Achievements)
}

func TestProcessActivity_ReprocessIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.segments["seg-a"] = eastSegment("seg-a", 500, 1500)

	first, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)
	second, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)

	assert.Equal(t, 1, f.recorder.count())
	require.Len(t, second.Efforts, 1)
	assert.False(t, second.Efforts[0].Inserted)
	assert.Equal(t, first.Efforts[0].EffortID, second.Efforts[0].EffortID)
	assert.Equal(t, 0, second.Summary().Efforts)
}

func TestProcessActivity_NoCandidates(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, res.Efforts)
	assert.Empty(t, f.inval.segments)
}

func TestProcessActivity_InputDefectsAreRejected(t *testing.T) {
	tests := []struct {
		name  string
		track func() *models.Track
		want  error
	}{
		{
			name: "too short",
			track: func() *models.Track {
				tr := eastTrack("act-1", "u1", 5)
				tr.Points = tr.Points[:1]
				return tr
			},
			want: ErrTrackTooShort,
		},
		{
			name: "no timing",
			track: func() *models.Track {
				tr := eastTrack("act-1", "u1", 5)
				tr.Points[3].Time = nil
				return tr
			},
			want: effort.ErrNoTimingData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.tracks["act-1"] = tt.track()

			res, err := f.proc.ProcessActivity(context.Background(), "act-1")
			require.ErrorIs(t, err, tt.want)
			assert.True(t, IsInputDefect(err))
			assert.False(t, Retryable(err))
			require.NotNil(t, res)
			assert.Equal(t, OutcomeRejected, res.Outcome)
			assert.NotEmpty(t, res.Reason)
			assert.Zero(t, f.store.lookups)

			entry, err := f.ledger.Status(context.Background(), "act-1")
			require.NoError(t, err)
			assert.Equal(t, ledger.StateFailed, entry.State)
		})
	}
}

func TestProcessActivity_TrackNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.ProcessActivity(context.Background(), "missing")
	require.ErrorIs(t, err, ErrTrackNotFound)
	assert.False(t, Retryable(err))
}

func TestProcessActivity_RejectsInFlightDuplicate(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	require.NoError(t, f.ledger.Begin(context.Background(), "act-1"))

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.ErrorIs(t, err, ledger.ErrInFlight)
	assert.Nil(t, res)
	assert.False(t, Retryable(err))
}

func TestProcessActivity_PartialSuccess(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.segments["seg-a"] = eastSegment("seg-a", 200, 800)
	f.store.segments["seg-b"] = eastSegment("seg-b", 1000, 1800)
	f.achiever.failFor["seg-a"] = errors.New("holder row references unknown effort")

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePartial, res.Outcome)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "seg-a", res.Failures[0].SegmentID)
	require.Len(t, res.Efforts, 1)
	assert.Equal(t, "seg-b", res.Efforts[0].SegmentID)

	// the effort on seg-a is stored even though its crown evaluation failed
	assert.Equal(t, 2, f.recorder.count())
	assert.ElementsMatch(t, []string{"seg-a", "seg-b"}, f.inval.segments)

	entry, err := f.ledger.Status(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StateCompleted, entry.State)
}

func TestProcessActivity_TransientPartialFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.segments["seg-a"] = eastSegment("seg-a", 200, 800)
	f.store.segments["seg-b"] = eastSegment("seg-b", 1000, 1800)
	f.achiever.failOnce["seg-a"] = errors.New("TransactionContext Error: Transaction conflict: cannot update a table that has been altered")

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.Error(t, err)
	assert.True(t, Retryable(err))
	assert.True(t, database.IsTransient(err))
	require.NotNil(t, res)
	assert.Equal(t, OutcomePartial, res.Outcome)
	require.Len(t, res.Efforts, 1)

	entry, err := f.ledger.Status(context.Background(), "act-1")
	require.NoError(t, err)
	assert.NotEqual(t, ledger.StateCompleted, entry.State)

	// the next attempt finds both efforts and completes the crown evaluation
	res, err = f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 2, f.recorder.count())
	assert.Contains(t, f.achiever.evaluated(), "seg-a")
}

func TestPool_RetriesTransientPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.segments["seg-a"] = eastSegment("seg-a", 200, 800)
	f.store.segments["seg-b"] = eastSegment("seg-b", 1000, 1800)
	f.achiever.failOnce["seg-a"] = errors.New("Transaction conflict on efforts")

	pool := startPool(t, f.proc, testWorkerConfig())
	require.NoError(t, pool.Submit(context.Background(), "act-1"))

	require.Eventually(t, func() bool {
		entry, err := f.ledger.Status(context.Background(), "act-1")
		return err == nil && entry.State == ledger.StateCompleted
	}, 5*time.Second, 5*time.Millisecond)

	assert.ElementsMatch(t, []string{"seg-a", "seg-b", "seg-b"}, f.achiever.evaluated())
	assert.Equal(t, 2, f.recorder.count())
}

func TestProcessActivity_DerivationDefectIsNotRetried(t *testing.T) {
	f := newFixture(t)
	track := eastTrack("act-1", "u1", 5)
	// timestamps run backwards inside the segment
	for i := 60; i < 80; i++ {
		ts := trackStart.Add(-time.Duration(i) * time.Second)
		track.Points[i].Time = &ts
	}
	f.store.tracks["act-1"] = track
	f.store.segments["seg-a"] = eastSegment("seg-a", 500, 1000)

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, err, effort.ErrNonMonotonicTime)
	assert.False(t, Retryable(err))
}

func TestProcessActivity_PrivateSegmentOnlyMatchesCreator(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "owner", 5)
	f.store.tracks["act-2"] = eastTrack("act-2", "stranger", 5)
	seg := eastSegment("seg-a", 500, 1500)
	seg.CreatorID = "owner"
	seg.Visibility = models.VisibilityPrivate
	f.store.segments["seg-a"] = seg

	res, err := f.proc.ProcessActivity(context.Background(), "act-2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Empty(t, res.Efforts)

	res, err = f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)
	require.Len(t, res.Efforts, 1)
	assert.Equal(t, "seg-a", res.Efforts[0].SegmentID)
	assert.Equal(t, 1, f.recorder.count())
}

func TestBackfillSegment_PrivateSegment(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "owner", 5)
	f.store.tracks["act-2"] = eastTrack("act-2", "stranger", 8)
	seg := eastSegment("seg-a", 500, 1500)
	seg.CreatorID = "owner"
	seg.Visibility = models.VisibilityPrivate
	f.store.segments["seg-a"] = seg
	f.store.trackSummarys = []models.ActivitySummary{{ID: "act-1"}, {ID: "act-2"}}

	res, err := f.proc.BackfillSegment(context.Background(), "seg-a")
	require.NoError(t, err)
	assert.Equal(t, "owner", f.store.trackOwner)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Efforts, 1)
	assert.Equal(t, 1, f.recorder.count())

	f.store.segments["seg-b"] = eastSegment("seg-b", 500, 1500)
	_, err = f.proc.BackfillSegment(context.Background(), "seg-b")
	require.NoError(t, err)
	assert.Empty(t, f.store.trackOwner, "public segments backfill every user's tracks")
}

func TestProcessActivity_AllWriteBacksFail(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.segments["seg-a"] = eastSegment("seg-a", 200, 800)
	f.achiever.failFor["seg-a"] = errors.New("bad connection")

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.Error(t, err)
	assert.True(t, Retryable(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestProcessActivity_RetriesTransientLookup(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.segments["seg-a"] = eastSegment("seg-a", 500, 1500)
	f.store.lookupErrs = []error{errors.New("dial tcp: connection refused")}

	res, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.lookups)
	assert.Len(t, res.Efforts, 1)
}

func TestProcessActivity_PermanentLookupErrorNotRetried(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.lookupErrs = []error{errors.New("syntax error")}

	_, err := f.proc.ProcessActivity(context.Background(), "act-1")
	require.Error(t, err)
	assert.Equal(t, 1, f.store.lookups)

	entry, serr := f.ledger.Status(context.Background(), "act-1")
	require.NoError(t, serr)
	assert.Equal(t, ledger.StateFailed, entry.State)
	assert.Contains(t, entry.Error, "syntax error")
}

func TestCreateSegment_FromPoints(t *testing.T) {
	f := newFixture(t)
	seg, err := f.proc.CreateSegment(context.Background(), CreateSegmentInput{
		Name:         "  River Road  ",
		ActivityType: "ride",
		CreatorID:    "u1",
		Points:       []geo.Point{xy(0, 0), xy(500, 0), xy(1000, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, "River Road", seg.Name)
	assert.InDelta(t, 1000, seg.DistanceMeters, 1)
	assert.Equal(t, models.ClimbNone, seg.ClimbCategory)
	assert.Contains(t, f.store.segments, seg.ID)
	assert.Equal(t, []string{seg.ID}, f.backfill.scheduled)
}

func TestCreateSegment_FromActivity(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)

	seg, err := f.proc.CreateSegment(context.Background(), CreateSegmentInput{
		Name:          "Middle",
		CreatorID:     "u1",
		ActivityID:    "act-1",
		StartFraction: 0.25,
		EndFraction:   0.75,
	})
	require.NoError(t, err)
	assert.Equal(t, "ride", seg.ActivityType)
	assert.InDelta(t, 1000, seg.DistanceMeters, 1)
	assert.InDelta(t, xy(500, 0).Lon, seg.Points[0].Lon, 1e-7)
}

func TestCreateSegment_Errors(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)

	_, err := f.proc.CreateSegment(context.Background(), CreateSegmentInput{
		CreatorID: "u2", ActivityID: "act-1", StartFraction: 0, EndFraction: 1,
	})
	assert.ErrorIs(t, err, ErrNotOwner)

	_, err = f.proc.CreateSegment(context.Background(), CreateSegmentInput{
		CreatorID: "u1", ActivityID: "act-1", StartFraction: 0.6, EndFraction: 0.4,
	})
	assert.ErrorIs(t, err, ErrInvalidSegment)

	_, err = f.proc.CreateSegment(context.Background(), CreateSegmentInput{
		CreatorID: "u1", Points: []geo.Point{xy(0, 0)},
	})
	assert.ErrorIs(t, err, ErrInvalidSegment)

	_, err = f.proc.CreateSegment(context.Background(), CreateSegmentInput{
		CreatorID: "u1", Points: []geo.Point{{Lat: 91, Lon: 0}, {Lat: 0, Lon: 0}},
	})
	assert.ErrorIs(t, err, ErrInvalidSegment)
	assert.Empty(t, f.backfill.scheduled)
}

func TestBackfillSegment(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.tracks["act-2"] = eastTrack("act-2", "u2", 8)
	untimed := eastTrack("act-3", "u3", 5)
	untimed.Points[0].Time = nil
	f.store.tracks["act-3"] = untimed
	f.store.segments["seg-a"] = eastSegment("seg-a", 500, 1500)
	f.store.trackSummarys = []models.ActivitySummary{{ID: "act-1"}, {ID: "act-2"}, {ID: "act-3"}}

	res, err := f.proc.BackfillSegment(context.Background(), "seg-a")
	require.NoError(t, err)
	assert.Equal(t, 3, res.TracksScanned)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Efforts, 2)
	assert.Empty(t, res.Failures)

	_, err = f.proc.BackfillSegment(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSegmentNotFound)
}

func TestDeleteActivity_RederivesAffectedSegments(t *testing.T) {
	f := newFixture(t)
	f.store.tracks["act-1"] = eastTrack("act-1", "u1", 5)
	f.store.deleteRefs = []database.EffortRef{
		{UserID: "u1", SegmentID: "seg-a"},
		{UserID: "u1", SegmentID: "seg-b"},
	}

	res, err := f.proc.DeleteActivity(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"seg-a", "seg-b"}, res.Segments)
	assert.Equal(t, []string{"u1/seg-a", "u1/seg-b"}, f.recorder.rederived)
	assert.Equal(t, []string{"seg-a", "seg-b"}, f.achiever.reconciled)
	assert.Equal(t, []string{"seg-a", "seg-b"}, f.inval.segments)

	_, err = f.proc.DeleteActivity(context.Background(), "act-1")
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestDeleteSegment(t *testing.T) {
	f := newFixture(t)
	f.store.segments["seg-a"] = eastSegment("seg-a", 0, 1000)

	require.NoError(t, f.proc.DeleteSegment(context.Background(), "seg-a"))
	assert.True(t, f.store.segments["seg-a"].Deleted())
	assert.Equal(t, []string{"seg-a"}, f.inval.segments)

	assert.ErrorIs(t, f.proc.DeleteSegment(context.Background(), "seg-a"), ErrSegmentNotFound)
}
