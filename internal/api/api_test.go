// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/eventprocessor"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/leaderboard"
	"github.com/tomtom215/segmentum/internal/ledger"
	"github.com/tomtom215/segmentum/internal/models"
	"github.com/tomtom215/segmentum/internal/pipeline"
)

const testGPX = `<?xml version="1.0"?>
<gpx version="1.1" creator="test">
  <trk><name>Lunch Run</name><type>running</type><trkseg>
    <trkpt lat="37.8000" lon="-122.4000"><time>2026-06-01T12:00:00Z</time></trkpt>
    <trkpt lat="37.8010" lon="-122.4000"><time>2026-06-01T12:00:30Z</time></trkpt>
    <trkpt lat="37.8020" lon="-122.4000"><time>2026-06-01T12:01:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`

type fakeStore struct {
	mu        sync.Mutex
	pingErr   error
	insertErr error
	tracks    map[string]*models.Track
	segments  map[string]*models.Segment
	efforts   []*models.Effort
	profiles  map[string]*models.UserProfile
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tracks:   map[string]*models.Track{},
		segments: map[string]*models.Segment{},
		profiles: map[string]*models.UserProfile{},
	}
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) InsertTrack(_ context.Context, t *models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.tracks[t.ID] = t
	return nil
}

func (s *fakeStore) GetTrack(_ context.Context, id string) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) GetSegment(_ context.Context, id string) (*models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.segments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return seg, nil
}

func (s *fakeStore) UserSegmentEfforts(_ context.Context, userID, segmentID string) ([]*models.Effort, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Effort
	for _, e := range s.efforts {
		if e.UserID == userID && e.SegmentID == segmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertUserProfile(_ context.Context, p *models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

type fakeSegments struct {
	created   []pipeline.CreateSegmentInput
	createErr error
	deleteErr error
	deleted   []string
	actResult *pipeline.DeleteResult
	actErr    error
}

func (f *fakeSegments) CreateSegment(_ context.Context, in pipeline.CreateSegmentInput) (*models.Segment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &models.Segment{ID: "seg-new", Name: in.Name, CreatorID: in.CreatorID, ActivityType: in.ActivityType, Points: in.Points}, nil
}

func (f *fakeSegments) DeleteSegment(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSegments) DeleteActivity(context.Context, string) (*pipeline.DeleteResult, error) {
	return f.actResult, f.actErr
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []*eventprocessor.ActivityUploadedEvent
}

func (p *fakePublisher) PublishActivityUploaded(_ context.Context, ev *eventprocessor.ActivityUploadedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

type fakeLeaderboards struct {
	lastFilter leaderboard.Filter
	lastPage   leaderboard.Page
	position   *models.PositionView
	posErr     error
}

func (f *fakeLeaderboards) Rank(_ context.Context, segmentID string, filter leaderboard.Filter, page leaderboard.Page) (*models.LeaderboardView, error) {
	f.lastFilter = filter
	f.lastPage = page
	return &models.LeaderboardView{
		SegmentID:  segmentID,
		Filter:     filter.Key(),
		Entries:    []models.LeaderboardEntry{{Rank: 1, UserID: "u1"}, {Rank: 2, UserID: "u2"}},
		TotalCount: 5,
		Offset:     page.Offset,
		Limit:      2,
	}, nil
}

func (f *fakeLeaderboards) Position(_ context.Context, segmentID string, _ leaderboard.Filter, userID string, _ int) (*models.PositionView, error) {
	if f.posErr != nil {
		return nil, f.posErr
	}
	return &models.PositionView{SegmentID: segmentID, UserID: userID, Rank: 3, TotalCount: 5}, nil
}

type fakeAchievements struct {
	activeOnly bool
}

func (f *fakeAchievements) SegmentAchievements(_ context.Context, segmentID string) (*models.SegmentAchievements, error) {
	return &models.SegmentAchievements{
		SegmentID: segmentID,
		KOM:       &models.Achievement{ID: "a1", UserID: "u1", SegmentID: segmentID, Type: models.AchievementKOM},
	}, nil
}

func (f *fakeAchievements) UserAchievements(_ context.Context, userID string, activeOnly bool) ([]*models.Achievement, error) {
	f.activeOnly = activeOnly
	return []*models.Achievement{{ID: "a1", UserID: userID, SegmentID: "s1", Type: models.AchievementLocalLegend}}, nil
}

type harness struct {
	store     *fakeStore
	segments  *fakeSegments
	publisher *fakePublisher
	ranks     *fakeLeaderboards
	achieve   *fakeAchievements
	ledger    *ledger.MemoryLedger
	handler   *Handler
	server    http.Handler
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Defaults()
	cfg.Security.RateLimitDisabled = true
	for _, m := range mutate {
		m(cfg)
	}

	h := &harness{
		store:     newFakeStore(),
		segments:  &fakeSegments{},
		publisher: &fakePublisher{},
		ranks:     &fakeLeaderboards{},
		achieve:   &fakeAchievements{},
		ledger:    ledger.NewMemoryLedger(time.Minute),
	}
	t.Cleanup(func() { _ = h.ledger.Close() })

	h.handler = NewHandler(Deps{
		Store:        h.store,
		Segments:     h.segments,
		Publisher:    h.publisher,
		Leaderboards: h.ranks,
		Achievements: h.achieve,
		Ledger:       h.ledger,
	}, cfg)
	h.handler.newID = func() string { return "act-1" }
	h.server = NewRouter(h.handler, NewChiMiddleware(ChiMiddlewareConfigFromSecurity(cfg.Security))).SetupChi()

	h.store.segments["s1"] = &models.Segment{ID: "s1", Name: "Hill", Points: []geo.Point{{Lat: 1, Lon: 1}, {Lat: 1.01, Lon: 1}}}
	deletedAt := time.Now()
	h.store.segments["gone"] = &models.Segment{ID: "gone", DeletedAt: &deletedAt}
	return h
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func (h *harness) do(t *testing.T, method, target string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.server.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/health/live", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, env = h.do(t, http.MethodGet, "/api/v1/health/ready", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, "ok", status.Checks["database"])

	h.handler.deps.Checks = []ReadinessCheck{{Name: "event_router", Check: func(context.Context) error {
		return errors.New("not running")
	}}}
	rec, env = h.do(t, http.MethodGet, "/api/v1/health/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeServiceUnavailable, env.Error.Code)
}

func TestUploadActivity_RawGPX(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodPost, "/api/v1/activities?user_id=u1", strings.NewReader(testGPX), "application/gpx+xml")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "act-1", resp.ActivityID)
	assert.Equal(t, "run", resp.ActivityType)
	assert.Equal(t, "Lunch Run", resp.Name)
	assert.Equal(t, 3, resp.Points)
	assert.True(t, resp.Timed)
	assert.True(t, resp.Queued)

	stored, ok := h.store.tracks["act-1"]
	require.True(t, ok)
	assert.Equal(t, "u1", stored.UserID)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, "act-1", h.publisher.events[0].ActivityID)
	assert.False(t, h.publisher.events[0].Reprocess)
}

func TestUploadActivity_Multipart(t *testing.T) {
	h := newHarness(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(uploadFormField, "commute.gpx")
	require.NoError(t, err)
	_, err = part.Write([]byte(testGPX))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec, env := h.do(t, http.MethodPost, "/api/v1/activities?user_id=u1&activity_type=ride&name=Commute", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "ride", resp.ActivityType, "query overrides the file")
	assert.Equal(t, "Commute", resp.Name)
}

func TestUploadActivity_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing user", "/api/v1/activities", testGPX, http.StatusBadRequest, ErrCodeValidationFailed},
		{"bad activity type", "/api/v1/activities?user_id=u1&activity_type=Road+Ride", testGPX, http.StatusBadRequest, ErrCodeValidationFailed},
		{"empty body", "/api/v1/activities?user_id=u1", "", http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown format", "/api/v1/activities?user_id=u1&filename=notes.txt", "hello", http.StatusUnsupportedMediaType, ErrCodeUnsupportedFormat},
		{"no points", "/api/v1/activities?user_id=u1&filename=a.gpx", "<gpx></gpx>", http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec, env := h.do(t, http.MethodPost, tt.target, strings.NewReader(tt.body), "application/octet-stream")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Empty(t, h.store.tracks)
		})
	}
}

func TestUploadActivity_TooLarge(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.Server.MaxUploadBytes = 64 })

	rec, env := h.do(t, http.MethodPost, "/api/v1/activities?user_id=u1", strings.NewReader(testGPX), "application/gpx+xml")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodePayloadTooLarge, env.Error.Code)
}

func TestUploadActivity_PublishFailureStillStores(t *testing.T) {
	h := newHarness(t)
	h.publisher.err = errors.New("bus down")

	rec, env := h.do(t, http.MethodPost, "/api/v1/activities?user_id=u1", strings.NewReader(testGPX), "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.False(t, resp.Queued)
	assert.Contains(t, h.store.tracks, "act-1")
}

func TestProcessActivity(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, http.MethodPost, "/api/v1/activities/missing/process", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.store.tracks["a9"] = &models.Track{ID: "a9", UserID: "u9"}
	rec, _ = h.do(t, http.MethodPost, "/api/v1/activities/a9/process", nil, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, h.publisher.events, 1)
	assert.True(t, h.publisher.events[0].Reprocess)
	assert.Equal(t, "u9", h.publisher.events[0].UserID)

	h.publisher.err = errors.New("bus down")
	rec, _ = h.do(t, http.MethodPost, "/api/v1/activities/a9/process", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestActivityStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rec, _ := h.do(t, http.MethodGet, "/api/v1/activities/a1/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, h.ledger.Begin(ctx, "a1"))
	require.NoError(t, h.ledger.Complete(ctx, "a1", ledger.Summary{Outcome: "success", Efforts: 2}))

	rec, env := h.do(t, http.MethodGet, "/api/v1/activities/a1/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entry ledger.Entry
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, ledger.StateCompleted, entry.State)
	require.NotNil(t, entry.Summary)
	assert.Equal(t, 2, entry.Summary.Efforts)
}

func TestDeleteActivity(t *testing.T) {
	h := newHarness(t)

	h.segments.actErr = fmt.Errorf("activity x: %w", pipeline.ErrTrackNotFound)
	rec, _ := h.do(t, http.MethodDelete, "/api/v1/activities/x", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.segments.actResult = &pipeline.DeleteResult{ActivityID: "x", Segments: []string{"s1"}}
	h.segments.actErr = errors.New("reconcile failed")
	rec, env := h.do(t, http.MethodDelete, "/api/v1/activities/x", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var res pipeline.DeleteResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, []string{"s1"}, res.Segments)
}

func TestCreateSegment(t *testing.T) {
	h := newHarness(t)

	body := `{"name":" Hawk Hill ","activity_type":"ride","creator_id":"u1",
		"points":[{"lat":37.83,"lon":-122.49},{"lat":37.84,"lon":-122.50,"elevation":120}]}`
	rec, env := h.do(t, http.MethodPost, "/api/v1/segments", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var seg models.Segment
	require.NoError(t, json.Unmarshal(env.Data, &seg))
	assert.Equal(t, "seg-new", seg.ID)

	require.Len(t, h.segments.created, 1)
	in := h.segments.created[0]
	assert.Equal(t, "Hawk Hill", in.Name)
	assert.Equal(t, "public", in.Visibility)
	require.Len(t, in.Points, 2)
	require.NotNil(t, in.Points[1].Elevation)
	assert.InDelta(t, 120, *in.Points[1].Elevation, 1e-9)

	body = `{"name":"From ride","creator_id":"u1","activity_id":"a1","start_fraction":0.25}`
	rec, _ = h.do(t, http.MethodPost, "/api/v1/segments", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	in = h.segments.created[1]
	assert.Equal(t, "a1", in.ActivityID)
	assert.InDelta(t, 0.25, in.StartFraction, 1e-9)
	assert.InDelta(t, 1.0, in.EndFraction, 1e-9)
}

func TestCreateSegment_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
	}{
		{"malformed json", `{"name":`, nil, http.StatusBadRequest},
		{"unknown field", `{"name":"x","creator_id":"u1","bogus":1}`, nil, http.StatusBadRequest},
		{"missing name", `{"creator_id":"u1","activity_id":"a1"}`, nil, http.StatusBadRequest},
		{"no geometry", `{"name":"x","creator_id":"u1","activity_type":"ride"}`, nil, http.StatusBadRequest},
		{"both geometries", `{"name":"x","creator_id":"u1","activity_type":"ride","activity_id":"a1","points":[{"lat":1,"lon":1},{"lat":2,"lon":2}]}`, nil, http.StatusBadRequest},
		{"bad latitude", `{"name":"x","creator_id":"u1","activity_type":"ride","points":[{"lat":91,"lon":1},{"lat":2,"lon":2}]}`, nil, http.StatusBadRequest},
		{"fraction out of range", `{"name":"x","creator_id":"u1","activity_id":"a1","end_fraction":1.5}`, nil, http.StatusBadRequest},
		{"not owner", `{"name":"x","creator_id":"u1","activity_id":"a1"}`, pipeline.ErrNotOwner, http.StatusForbidden},
		{"degenerate", `{"name":"x","creator_id":"u1","activity_type":"ride","points":[{"lat":1,"lon":1},{"lat":1,"lon":1}]}`, fmt.Errorf("%w: zero length", pipeline.ErrInvalidSegment), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.segments.createErr = tt.createErr
			rec, env := h.do(t, http.MethodPost, "/api/v1/segments", strings.NewReader(tt.body), "application/json")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
		})
	}
}

func TestGetAndDeleteSegment(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/segments/s1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var seg models.Segment
	require.NoError(t, json.Unmarshal(env.Data, &seg))
	assert.Equal(t, "Hill", seg.Name)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/segments/gone", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = h.do(t, http.MethodGet, "/api/v1/segments/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = h.do(t, http.MethodDelete, "/api/v1/segments/s1", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"s1"}, h.segments.deleted)

	h.segments.deleteErr = fmt.Errorf("segment s1: %w", pipeline.ErrSegmentNotFound)
	rec, _ = h.do(t, http.MethodDelete, "/api/v1/segments/s1", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSegmentLeaderboard(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/segments/s1/leaderboard?gender=f&scope=year&offset=2&limit=2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, models.GenderFemale, h.ranks.lastFilter.Gender())
	assert.Equal(t, leaderboard.ScopeYear, h.ranks.lastFilter.Scope())
	assert.Equal(t, leaderboard.Page{Offset: 2, Limit: 2}, h.ranks.lastPage)

	require.NotNil(t, env.Meta)
	require.NotNil(t, env.Meta.Pagination)
	assert.Equal(t, int64(5), env.Meta.Pagination.Total)
	assert.Equal(t, 2, env.Meta.Pagination.Count)
	assert.True(t, env.Meta.Pagination.HasMore)

	rec, env = h.do(t, http.MethodGet, "/api/v1/segments/s1/leaderboard?gender=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeBadRequest, env.Error.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/segments/s1/leaderboard?limit=5000", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/segments/gone/leaderboard", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSegmentPosition(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, http.MethodGet, "/api/v1/segments/s1/leaderboard/position", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "user_id is required")

	rec, env := h.do(t, http.MethodGet, "/api/v1/segments/s1/leaderboard/position?user_id=u7", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pos models.PositionView
	require.NoError(t, json.Unmarshal(env.Data, &pos))
	assert.Equal(t, 3, pos.Rank)
	assert.Equal(t, "u7", pos.UserID)

	h.ranks.posErr = leaderboard.ErrNoEffort
	rec, _ = h.do(t, http.MethodGet, "/api/v1/segments/s1/leaderboard/position?user_id=u7", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSegmentAchievementsAndEfforts(t *testing.T) {
	h := newHarness(t)
	h.store.efforts = []*models.Effort{
		{ID: "e1", UserID: "u1", SegmentID: "s1", IsPersonalRecord: true},
		{ID: "e2", UserID: "u2", SegmentID: "s1"},
	}

	rec, env := h.do(t, http.MethodGet, "/api/v1/segments/s1/achievements", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var holders models.SegmentAchievements
	require.NoError(t, json.Unmarshal(env.Data, &holders))
	require.NotNil(t, holders.KOM)
	assert.Equal(t, "u1", holders.KOM.UserID)
	assert.Nil(t, holders.QOM)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/segments/s1/efforts", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = h.do(t, http.MethodGet, "/api/v1/segments/s1/efforts?user_id=u1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var efforts []models.Effort
	require.NoError(t, json.Unmarshal(env.Data, &efforts))
	require.Len(t, efforts, 1)
	assert.Equal(t, "e1", efforts[0].ID)

	rec, env = h.do(t, http.MethodGet, "/api/v1/segments/s1/efforts?user_id=nobody", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestUserEndpoints(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/users/u1/achievements?active=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, h.achieve.activeOnly)
	var list []models.Achievement
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, models.AchievementLocalLegend, list[0].Type)

	rec, _ = h.do(t, http.MethodGet, "/api/v1/users/u1/achievements?active=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = h.do(t, http.MethodPut, "/api/v1/users/u1/profile", strings.NewReader(`{"gender":"F","birth_year":1990,"weight_kg":58.5,"country":"NZ"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored := h.store.profiles["u1"]
	require.NotNil(t, stored)
	assert.Equal(t, models.GenderFemale, stored.Gender)
	require.NotNil(t, stored.BirthYear)
	assert.Equal(t, 1990, *stored.BirthYear)
	assert.Equal(t, "NZ", stored.Country)

	rec, env = h.do(t, http.MethodPut, "/api/v1/users/u1/profile", strings.NewReader(`{"gender":"X"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeValidationFailed, env.Error.Code)
}

func TestRouterFallbacks(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(t, http.MethodGet, "/api/v1/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)

	rec, _ = h.do(t, http.MethodPatch, "/api/v1/segments/s1", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Security.RateLimitDisabled = false
		c.Security.RateLimitReqs = 2
		c.Security.RateLimitWindow = time.Minute
	})

	for i := 0; i < 2; i++ {
		rec, _ := h.do(t, http.MethodGet, "/api/v1/segments/s1", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := h.do(t, http.MethodGet, "/api/v1/segments/s1", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeTooManyRequests, env.Error.Code)
}

func TestWriteServiceError_Transient(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	writeServiceError(NewResponseWriter(rec, req), errors.New("dial tcp: connection refused"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	writeServiceError(NewResponseWriter(rec, req), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
