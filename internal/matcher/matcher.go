// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package matcher decides which segments a track genuinely traverses and
// where on the track each traversal starts and ends.
//
// A traversal requires the track to pass near the segment start, later pass
// near the segment end, progress forward along the segment in between and
// stay inside a corridor around the segment geometry. Proximity alone (for
// example crossing the segment, or riding it backwards) is not a match.
package matcher

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/segmentum/internal/cache"
	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

// Traversal selection policies for segments covered more than once.
const (
	PolicyFirst = "first"
	PolicyBest  = "best"
	PolicyAll   = "all"
)

// MatchResult is one confirmed traversal of a segment.
type MatchResult struct {
	SegmentID string `json:"segment_id"`

	// StartFraction and EndFraction locate the traversal on the track as
	// fractions of the track length.
	StartFraction float64 `json:"start_fraction"`
	EndFraction   float64 `json:"end_fraction"`

	// StartIndex and EndIndex bound the track points covering the traversal.
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`

	// Traversal is the 1-based ordinal of this pass within the track;
	// Traversals is how many passes the track made in total.
	Traversal  int `json:"traversal"`
	Traversals int `json:"traversals"`
}

// Matcher confirms segment traversals. It holds no mutable state and is
// safe for concurrent use.
type Matcher struct {
	cfg config.MatchingConfig
}

// New creates a Matcher.
func New(cfg config.MatchingConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// Track is a track prepared for matching: geometry, cumulative distances
// and a spatial index over its points. Build it once with Prepare and share
// it across goroutines matching different segments.
type Track struct {
	src    *models.Track
	pts    []geo.Point
	cum    []float64
	total  float64
	bounds geo.BBox
	grid   *cache.SpatialHashGrid

	// Edges longer than reach (recording gaps, auto-pause) cannot be found
	// through their endpoints in the grid and are tested directly.
	reach     float64
	longEdges []int
}

// Prepare indexes a track for matching.
func (m *Matcher) Prepare(track *models.Track) *Track {
	pts := track.Geometry()
	cum := geo.CumulativeDistances(pts)

	reach := m.cfg.GridCellMeters
	if reach <= 0 {
		reach = 50
	}
	t := &Track{
		src:    track,
		pts:    pts,
		cum:    cum,
		bounds: geo.Bounds(pts),
		grid:   cache.NewSpatialHashGrid(reach),
		reach:  reach,
	}
	if len(cum) > 0 {
		t.total = cum[len(cum)-1]
	}
	for i, p := range pts {
		t.grid.Insert(i, p)
		if i > 0 && cum[i]-cum[i-1] > reach {
			t.longEdges = append(t.longEdges, i-1)
		}
	}
	return t
}

// Length returns the track length in meters.
func (t *Track) Length() float64 { return t.total }

// Match returns the traversals of each candidate, applying the configured
// traversal policy. Segments with no traversal are absent from the result.
func (m *Matcher) Match(track *models.Track, candidates []*models.Segment) []MatchResult {
	prepared := m.Prepare(track)
	var out []MatchResult
	for _, seg := range candidates {
		out = append(out, m.Select(prepared, m.MatchSegment(prepared, seg))...)
	}
	return out
}

// MatchAll returns every traversal of every candidate regardless of policy.
func (m *Matcher) MatchAll(track *models.Track, candidates []*models.Segment) []MatchResult {
	prepared := m.Prepare(track)
	var out []MatchResult
	for _, seg := range candidates {
		out = append(out, m.MatchSegment(prepared, seg)...)
	}
	return out
}

// Select applies the traversal policy to the traversals of one segment.
func (m *Matcher) Select(t *Track, traversals []MatchResult) []MatchResult {
	if len(traversals) <= 1 {
		return traversals
	}
	switch m.cfg.TraversalPolicy {
	case PolicyAll:
		return traversals
	case PolicyBest:
		best, bestDur := -1, time.Duration(math.MaxInt64)
		for i, tr := range traversals {
			d, ok := t.duration(tr)
			if !ok {
				return traversals[:1]
			}
			if d < bestDur {
				best, bestDur = i, d
			}
		}
		return traversals[best : best+1]
	default:
		return traversals[:1]
	}
}

// MatchSegment returns all traversals of seg by the prepared track, in
// track order, up to the configured maximum.
func (m *Matcher) MatchSegment(t *Track, seg *models.Segment) []MatchResult {
	if len(t.pts) < 2 || len(seg.Points) < 2 || t.total == 0 {
		return nil
	}
	segLen := geo.Length(seg.Points)
	if segLen == 0 {
		return nil
	}
	if !t.bounds.Expand(m.cfg.CorridorToleranceMeters).Intersects(geo.Bounds(seg.Points)) {
		return nil
	}

	starts := t.passes(seg.Start(), m.cfg.EndpointToleranceMeters)
	if len(starts) == 0 {
		return nil
	}
	ends := t.passes(seg.End(), m.cfg.EndpointToleranceMeters)
	if len(ends) == 0 {
		return nil
	}

	c := newCorridor(seg.Points, segLen, m.cfg)
	var out []MatchResult
	after := -1.0 // track position the next traversal must start beyond
	for _, s := range starts {
		if s.along <= after {
			continue
		}
		e, ok := firstPassAfter(ends, s.along)
		if !ok {
			break
		}
		if !c.follows(t, s, e) {
			continue
		}
		out = append(out, MatchResult{
			SegmentID:     seg.ID,
			StartFraction: s.along / t.total,
			EndFraction:   e.along / t.total,
			StartIndex:    s.edge,
			EndIndex:      e.edge + 1,
		})
		after = e.along
		if len(out) >= m.cfg.MaxTraversals {
			break
		}
	}
	for i := range out {
		out[i].Traversal = i + 1
		out[i].Traversals = len(out)
	}
	return out
}

// duration returns the elapsed time of a traversal when the track is timed.
func (t *Track) duration(r MatchResult) (time.Duration, bool) {
	start, ok1 := t.timeAt(r.StartFraction * t.total)
	end, ok2 := t.timeAt(r.EndFraction * t.total)
	if !ok1 || !ok2 {
		return 0, false
	}
	return end.Sub(start), true
}

func (t *Track) timeAt(along float64) (time.Time, bool) {
	i, f := geo.IndexAtFraction(t.cum, along/t.total)
	a, b := t.src.Points[i].Time, t.src.Points[i+1].Time
	if a == nil || b == nil {
		return time.Time{}, false
	}
	return a.Add(time.Duration(float64(b.Sub(*a)) * f)), true
}

// pass is one contiguous approach of the track to a point: the edge of
// closest approach and the distance along the track at that spot.
type pass struct {
	edge  int
	along float64
	dist  float64
}

// passes finds every separate occasion on which the track comes within tol
// meters of p. Edges are tested, not just recorded points, so sparse
// sampling does not hide a pass. An edge no longer than reach that comes
// within tol of p has an endpoint within tol+reach, so the grid query stays
// bounded however long the track's longest gap is.
func (t *Track) passes(p geo.Point, tol float64) []pass {
	near := t.grid.QueryNearby(p, tol+t.reach)
	if len(near) == 0 && len(t.longEdges) == 0 {
		return nil
	}

	edges := make(map[int]struct{}, len(near)*2+len(t.longEdges))
	for _, i := range near {
		if i > 0 {
			edges[i-1] = struct{}{}
		}
		if i < len(t.pts)-1 {
			edges[i] = struct{}{}
		}
	}
	for _, e := range t.longEdges {
		edges[e] = struct{}{}
	}
	sorted := make([]int, 0, len(edges))
	for e := range edges {
		sorted = append(sorted, e)
	}
	sort.Ints(sorted)

	var (
		out     []pass
		cur     *pass
		lastHit = -2
	)
	for _, e := range sorted {
		_, f, d := geo.ClosestPointOnSegment(p, t.pts[e], t.pts[e+1])
		if d > tol {
			continue
		}
		along := t.cum[e] + f*(t.cum[e+1]-t.cum[e])
		if cur == nil || e > lastHit+1 {
			out = append(out, pass{edge: e, along: along, dist: d})
			cur = &out[len(out)-1]
		} else if d < cur.dist {
			*cur = pass{edge: e, along: along, dist: d}
		}
		lastHit = e
	}
	return out
}

func firstPassAfter(ps []pass, along float64) (pass, bool) {
	for _, p := range ps {
		if p.along > along {
			return p, true
		}
	}
	return pass{}, false
}
