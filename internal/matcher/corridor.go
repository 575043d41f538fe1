// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package matcher

import (
	"math"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/geo"
)

// maxDetourRatio bounds how much longer than the segment the ridden stretch
// may be (GPS jitter inflates track length).
const maxDetourRatio = 1.5

// corridor checks that a stretch of track follows a segment.
type corridor struct {
	seg      *geo.Locator
	segLen   float64
	samples  []geo.Point
	tol      float64
	maxOff   float64
	backstep float64 // allowed backward movement, as a fraction of the segment
}

func newCorridor(segPts []geo.Point, segLen float64, cfg config.MatchingConfig) *corridor {
	return &corridor{
		seg:      geo.NewLocator(segPts),
		segLen:   segLen,
		samples:  sampleLine(segPts, cfg.CorridorSampleMeters),
		tol:      cfg.CorridorToleranceMeters,
		maxOff:   cfg.MaxOffCorridorRatio,
		backstep: cfg.CorridorToleranceMeters / segLen,
	}
}

// follows reports whether the track between passes s and e runs along the
// segment in the forward direction without leaving the corridor.
func (c *corridor) follows(t *Track, s, e pass) bool {
	// The ridden stretch must be of comparable length; a long detour that
	// happens to start and end at the right places is not a traversal.
	ridden := e.along - s.along
	if ridden < c.segLen-2*c.tol || ridden > c.segLen*maxDetourRatio+2*c.tol {
		return false
	}

	// Track points inside the traversal: forward progress and corridor.
	var off, n int
	progress := 0.0
	for i := s.edge + 1; i <= e.edge; i++ {
		d, f := c.seg.DistanceTo(t.pts[i])
		n++
		if d > c.tol {
			off++
			continue
		}
		// Near either end a loop segment is ambiguous about where it is.
		if t.cum[i]-s.along < c.tol || e.along-t.cum[i] < c.tol {
			continue
		}
		if f < progress-c.backstep {
			return false
		}
		progress = math.Max(progress, f)
	}
	if n > 0 && float64(off)/float64(n) > c.maxOff {
		return false
	}

	// Segment samples must be covered by the ridden stretch.
	sub := geo.SubLine(t.pts, s.along/t.total, e.along/t.total)
	if len(sub) < 2 {
		return false
	}
	ridLoc := geo.NewLocator(sub)
	off = 0
	for _, p := range c.samples {
		if d, _ := ridLoc.DistanceTo(p); d > c.tol {
			off++
		}
	}
	return len(c.samples) == 0 || float64(off)/float64(len(c.samples)) <= c.maxOff
}

// sampleLine returns points every step meters along line, excluding both ends.
func sampleLine(line []geo.Point, step float64) []geo.Point {
	cum := geo.CumulativeDistances(line)
	total := cum[len(cum)-1]
	if step <= 0 || total <= step {
		return nil
	}
	var out []geo.Point
	for d := step; d < total; d += step {
		i, f := geo.IndexAtFraction(cum, d/total)
		out = append(out, geo.Interpolate(line[i], line[i+1], f))
	}
	return out
}
