// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package geo provides the geometric primitives used by segment matching and
// effort derivation: great-circle distance, bearings, interpolation,
// cumulative distance along a polyline and locating a point along a line.
//
// All functions are pure. Distances are in meters, angles in degrees.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius (IUGG).
const EarthRadiusMeters = 6371008.8

// Point is a WGS84 coordinate with optional elevation in meters.
type Point struct {
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Elevation *float64 `json:"ele,omitempty"`
}

// Valid reports whether the coordinate lies in the WGS84 range and is finite.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLat := lat2 - lat1
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Bearing returns the initial bearing from a to b in degrees, [0, 360).
func Bearing(a, b Point) float64 {
	lat1, lat2 := toRad(a.Lat), toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return math.Mod(toDeg(math.Atan2(y, x))+360, 360)
}

// BearingDelta returns the smallest absolute difference between two bearings.
func BearingDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Interpolate returns the point at parameter t in [0,1] between a and b.
// Elevation is interpolated only when both ends carry one.
func Interpolate(a, b Point, t float64) Point {
	p := Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lon: a.Lon + (b.Lon-a.Lon)*t,
	}
	if a.Elevation != nil && b.Elevation != nil {
		e := *a.Elevation + (*b.Elevation-*a.Elevation)*t
		p.Elevation = &e
	}
	return p
}

// CumulativeDistances returns prefix sums of the distance along pts.
// The result has len(pts) entries and starts at 0.
func CumulativeDistances(pts []Point) []float64 {
	cum := make([]float64, len(pts))
	for i := 1; i < len(pts); i++ {
		cum[i] = cum[i-1] + Haversine(pts[i-1], pts[i])
	}
	return cum
}

// Length returns the total length of the polyline.
func Length(pts []Point) float64 {
	var total float64
	for i := 1; i < len(pts); i++ {
		total += Haversine(pts[i-1], pts[i])
	}
	return total
}

// IndexAtFraction maps a fraction of total length to the edge (i, i+1) that
// contains it and the parameter t along that edge. For fraction 1 it returns
// the last edge with t = 1.
func IndexAtFraction(cum []float64, fraction float64) (int, float64) {
	n := len(cum)
	if n < 2 {
		return 0, 0
	}
	total := cum[n-1]
	if total == 0 || fraction <= 0 {
		return 0, 0
	}
	if fraction >= 1 {
		return n - 2, 1
	}
	target := fraction * total

	lo, hi := 0, n-1
	for lo < hi-1 {
		mid := (lo + hi) / 2
		if cum[mid] <= target {
			lo = mid
		} else {
			hi = mid
		}
	}
	edge := cum[lo+1] - cum[lo]
	if edge == 0 {
		return lo, 0
	}
	return lo, (target - cum[lo]) / edge
}

// PointAtFraction returns the point at the given fraction of the line length.
func PointAtFraction(pts []Point, fraction float64) Point {
	if len(pts) == 0 {
		return Point{}
	}
	if len(pts) == 1 {
		return pts[0]
	}
	i, t := IndexAtFraction(CumulativeDistances(pts), fraction)
	return Interpolate(pts[i], pts[i+1], t)
}

// ClosestPointOnSegment projects p onto the edge a-b. It returns the projected
// point, its parameter t in [0,1] along the edge and the distance from p in
// meters. The projection uses a local equirectangular frame centered on a,
// which is accurate at segment scale.
func ClosestPointOnSegment(p, a, b Point) (Point, float64, float64) {
	cosLat := math.Cos(toRad(a.Lat))
	bx := toRad(b.Lon-a.Lon) * cosLat
	by := toRad(b.Lat - a.Lat)
	px := toRad(p.Lon-a.Lon) * cosLat
	py := toRad(p.Lat - a.Lat)

	var t float64
	if den := bx*bx + by*by; den > 0 {
		t = (px*bx + py*by) / den
	}
	t = math.Max(0, math.Min(1, t))

	proj := Interpolate(a, b, t)
	return proj, t, Haversine(p, proj)
}

// DistanceToLine returns the minimum distance from p to the polyline and the
// fraction of the line's length at which the closest point lies.
func DistanceToLine(p Point, line []Point) (float64, float64) {
	return distanceToLineCum(p, line, CumulativeDistances(line))
}

// LocateFraction returns the fraction along line of the point closest to p.
func LocateFraction(line []Point, p Point) float64 {
	_, f := DistanceToLine(p, line)
	return f
}

// Locator answers repeated closest-point queries against one polyline
// without recomputing its cumulative distances.
type Locator struct {
	line []Point
	cum  []float64
}

// NewLocator prepares line for repeated DistanceTo queries.
func NewLocator(line []Point) *Locator {
	return &Locator{line: line, cum: CumulativeDistances(line)}
}

// Length returns the length of the underlying line.
func (l *Locator) Length() float64 {
	if len(l.cum) == 0 {
		return 0
	}
	return l.cum[len(l.cum)-1]
}

// DistanceTo returns the distance from p to the line and the fraction of the
// closest point.
func (l *Locator) DistanceTo(p Point) (float64, float64) {
	return distanceToLineCum(p, l.line, l.cum)
}

func distanceToLineCum(p Point, line []Point, cum []float64) (float64, float64) {
	switch len(line) {
	case 0:
		return math.Inf(1), 0
	case 1:
		return Haversine(p, line[0]), 0
	}

	best := math.Inf(1)
	bestAlong := 0.0
	for i := 0; i < len(line)-1; i++ {
		_, t, d := ClosestPointOnSegment(p, line[i], line[i+1])
		if d < best {
			best = d
			bestAlong = cum[i] + t*(cum[i+1]-cum[i])
		}
	}
	total := cum[len(cum)-1]
	if total == 0 {
		return best, 0
	}
	return best, bestAlong / total
}

// SubLine returns the part of pts between two length fractions, with
// interpolated endpoints.
func SubLine(pts []Point, from, to float64) []Point {
	if len(pts) < 2 || to <= from {
		return nil
	}
	cum := CumulativeDistances(pts)
	i0, t0 := IndexAtFraction(cum, from)
	i1, t1 := IndexAtFraction(cum, to)

	out := []Point{Interpolate(pts[i0], pts[i0+1], t0)}
	for i := i0 + 1; i <= i1; i++ {
		out = append(out, pts[i])
	}
	out = append(out, Interpolate(pts[i1], pts[i1+1], t1))
	return out
}
