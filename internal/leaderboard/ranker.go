// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/segmentum/internal/cache"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/metrics"
	"github.com/tomtom215/segmentum/internal/models"
)

// ErrNoEffort is returned by Position when the user has no effort that
// passes the filter.
var ErrNoEffort = errors.New("no effort for user under filter")

// Store is the query side the ranker needs. *database.DB implements it.
type Store interface {
	Leaderboard(ctx context.Context, q models.LeaderboardQuery, offset, limit int) ([]models.LeaderboardEntry, int, error)
	UserBest(ctx context.Context, q models.LeaderboardQuery, userID string) (*models.LeaderboardEntry, error)
	CountFaster(ctx context.Context, q models.LeaderboardQuery, elapsed float64, startedAt time.Time, effortID string) (int, error)
}

// Page selects a slice of the ranking.
type Page struct {
	Offset int
	Limit  int
}

// Ranker answers leaderboard and position queries, caching results for a
// short TTL. Invalidate drops everything cached for a segment.
type Ranker struct {
	store Store
	cfg   config.LeaderboardConfig
	now   func() time.Time

	views     *cache.Cache[*models.LeaderboardView]
	positions *cache.Cache[*models.PositionView]

	mu          sync.Mutex
	generations map[string]uint64
}

// NewRanker creates a Ranker. Call Close to stop the cache sweepers.
func NewRanker(store Store, cfg config.LeaderboardConfig) *Ranker {
	return &Ranker{
		store:       store,
		cfg:         cfg,
		now:         time.Now,
		views:       cache.New[*models.LeaderboardView](cfg.CacheTTL),
		positions:   cache.New[*models.PositionView](cfg.CacheTTL),
		generations: make(map[string]uint64),
	}
}

// Close releases the caches.
func (r *Ranker) Close() {
	r.views.Close()
	r.positions.Close()
}

func (r *Ranker) generation(segmentID string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[segmentID]
}

// Invalidate makes every cached result for segmentID stale. The pipeline
// calls it after writing efforts for the segment.
func (r *Ranker) Invalidate(segmentID string) {
	r.mu.Lock()
	r.generations[segmentID]++
	r.mu.Unlock()

	prefix := "lb:" + segmentID + ":"
	r.views.DeletePrefix(prefix)
	r.positions.DeletePrefix(prefix)
}

type cacheParams struct {
	Filter string `json:"f"`
	Offset int    `json:"o,omitempty"`
	Limit  int    `json:"l,omitempty"`
	UserID string `json:"u,omitempty"`
	Window int    `json:"w,omitempty"`
}

func (r *Ranker) cacheKey(segmentID string, p cacheParams) string {
	return cache.GenerateKey(fmt.Sprintf("lb:%s:%d", segmentID, r.generation(segmentID)), p)
}

func (r *Ranker) clampPage(p Page) Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = r.cfg.DefaultPageSize
	}
	if r.cfg.MaxPageSize > 0 && p.Limit > r.cfg.MaxPageSize {
		p.Limit = r.cfg.MaxPageSize
	}
	return p
}

func (r *Ranker) query(segmentID string, f Filter) models.LeaderboardQuery {
	q := f.Resolve(r.now())
	q.SegmentID = segmentID
	return q
}

// Rank returns one page of the segment's leaderboard. Each user appears
// once with their fastest effort under the filter; ranks are unique and
// consecutive and gaps are relative to the leader.
func (r *Ranker) Rank(ctx context.Context, segmentID string, f Filter, page Page) (*models.LeaderboardView, error) {
	page = r.clampPage(page)
	key := r.cacheKey(segmentID, cacheParams{Filter: f.Key(), Offset: page.Offset, Limit: page.Limit})

	if v, ok := r.views.Get(key); ok {
		metrics.RecordLeaderboardQuery("rank", true)
		return v, nil
	}
	metrics.RecordLeaderboardQuery("rank", false)

	entries, total, err := r.store.Leaderboard(ctx, r.query(segmentID, f), page.Offset, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to rank segment %s: %w", segmentID, err)
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	view := &models.LeaderboardView{
		SegmentID:  segmentID,
		Filter:     f.Key(),
		Entries:    entries,
		TotalCount: total,
		Offset:     page.Offset,
		Limit:      page.Limit,
	}
	r.views.Set(key, view)
	return view, nil
}

// Position returns the user's rank under the filter together with up to
// window entries on each side. A window below zero uses the configured
// default.
func (r *Ranker) Position(ctx context.Context, segmentID string, f Filter, userID string, window int) (*models.PositionView, error) {
	if window < 0 {
		window = r.cfg.PositionWindow
	}
	key := r.cacheKey(segmentID, cacheParams{Filter: f.Key(), UserID: userID, Window: window})
	if v, ok := r.positions.Get(key); ok {
		metrics.RecordLeaderboardQuery("position", true)
		return v, nil
	}
	metrics.RecordLeaderboardQuery("position", false)

	q := r.query(segmentID, f)

	best, err := r.store.UserBest(ctx, q, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNoEffort
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user best: %w", err)
	}

	faster, err := r.store.CountFaster(ctx, q, best.ElapsedTimeSeconds, best.StartedAt, best.EffortID)
	if err != nil {
		return nil, fmt.Errorf("failed to count faster efforts: %w", err)
	}
	rank := faster + 1

	offset := max(rank-1-window, 0)
	around, total, err := r.store.Leaderboard(ctx, q, offset, rank-offset+window)
	if err != nil {
		return nil, fmt.Errorf("failed to load surrounding entries: %w", err)
	}

	entry := *best
	entry.Rank = rank
	for _, e := range around {
		if e.UserID == userID {
			entry = e
			break
		}
	}
	if around == nil {
		around = []models.LeaderboardEntry{}
	}

	view := &models.PositionView{
		SegmentID:  segmentID,
		UserID:     userID,
		Rank:       entry.Rank,
		TotalCount: total,
		Entry:      entry,
		Around:     around,
	}
	r.positions.Set(key, view)
	return view, nil
}
