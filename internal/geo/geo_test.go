// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ele(v float64) *float64 { return &v }

func TestHaversine(t *testing.T) {
	t.Parallel()

	// One degree of latitude along a meridian.
	d := Haversine(Point{Lat: 0, Lon: 0}, Point{Lat: 1, Lon: 0})
	assert.InDelta(t, 111195, d, 5)

	assert.Zero(t, Haversine(Point{Lat: 45, Lon: 7}, Point{Lat: 45, Lon: 7}))

	// Symmetric.
	a, b := Point{Lat: 51.5, Lon: -0.12}, Point{Lat: 48.85, Lon: 2.35}
	assert.InDelta(t, Haversine(a, b), Haversine(b, a), 1e-9)
	assert.InDelta(t, 343500, Haversine(a, b), 1500)
}

func TestBearing(t *testing.T) {
	t.Parallel()

	o := Point{Lat: 0, Lon: 0}
	assert.InDelta(t, 0, Bearing(o, Point{Lat: 1, Lon: 0}), 1e-6)
	assert.InDelta(t, 90, Bearing(o, Point{Lat: 0, Lon: 1}), 1e-6)
	assert.InDelta(t, 180, Bearing(o, Point{Lat: -1, Lon: 0}), 1e-6)
	assert.InDelta(t, 270, Bearing(o, Point{Lat: 0, Lon: -1}), 1e-6)

	assert.InDelta(t, 20, BearingDelta(350, 10), 1e-9)
	assert.InDelta(t, 180, BearingDelta(0, 180), 1e-9)
}

func TestInterpolate(t *testing.T) {
	t.Parallel()

	a := Point{Lat: 10, Lon: 20, Elevation: ele(100)}
	b := Point{Lat: 12, Lon: 24, Elevation: ele(200)}
	m := Interpolate(a, b, 0.25)
	assert.InDelta(t, 10.5, m.Lat, 1e-12)
	assert.InDelta(t, 21, m.Lon, 1e-12)
	require.NotNil(t, m.Elevation)
	assert.InDelta(t, 125, *m.Elevation, 1e-12)

	noEle := Interpolate(Point{Lat: 0, Lon: 0}, b, 0.5)
	assert.Nil(t, noEle.Elevation)
}

func TestCumulativeDistancesAndFractions(t *testing.T) {
	t.Parallel()

	line := []Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.001}, {Lat: 0, Lon: 0.003}}
	cum := CumulativeDistances(line)
	require.Len(t, cum, 3)
	assert.Zero(t, cum[0])
	assert.InDelta(t, 2*cum[1], cum[2]-cum[1], 1e-6)
	assert.InDelta(t, cum[2], Length(line), 1e-9)

	i, tt := IndexAtFraction(cum, 0.5)
	assert.Equal(t, 1, i)
	assert.InDelta(t, 0.25, tt, 1e-6)

	i, tt = IndexAtFraction(cum, 1)
	assert.Equal(t, 1, i)
	assert.Equal(t, 1.0, tt)

	mid := PointAtFraction(line, 0.5)
	assert.InDelta(t, 0.0015, mid.Lon, 1e-9)
}

func TestDistanceToLine(t *testing.T) {
	t.Parallel()

	line := []Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}}

	// ~111 m north of the line's midpoint.
	d, f := DistanceToLine(Point{Lat: 0.001, Lon: 0.005}, line)
	assert.InDelta(t, 111.2, d, 0.5)
	assert.InDelta(t, 0.5, f, 1e-3)

	// Beyond the end clamps to fraction 1.
	d, f = DistanceToLine(Point{Lat: 0, Lon: 0.02}, line)
	assert.InDelta(t, 1112, d, 2)
	assert.Equal(t, 1.0, f)

	assert.InDelta(t, 0.25, LocateFraction(line, Point{Lat: 0, Lon: 0.0025}), 1e-3)

	loc := NewLocator(line)
	d2, f2 := loc.DistanceTo(Point{Lat: 0.001, Lon: 0.005})
	assert.InDelta(t, 111.2, d2, 0.5)
	assert.InDelta(t, 0.5, f2, 1e-3)
	assert.InDelta(t, Length(line), loc.Length(), 1e-9)

	inf, _ := DistanceToLine(Point{}, nil)
	assert.True(t, math.IsInf(inf, 1))
}

func TestSubLine(t *testing.T) {
	t.Parallel()

	line := []Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.001}, {Lat: 0, Lon: 0.002}, {Lat: 0, Lon: 0.004}}
	sub := SubLine(line, 0.25, 0.75)
	require.GreaterOrEqual(t, len(sub), 2)
	assert.InDelta(t, 0.001, sub[0].Lon, 1e-9)
	assert.InDelta(t, 0.003, sub[len(sub)-1].Lon, 1e-9)
	assert.InDelta(t, Length(line)/2, Length(sub), 1e-6)

	assert.Nil(t, SubLine(line, 0.5, 0.5))
}

func TestBBox(t *testing.T) {
	t.Parallel()

	b := Bounds([]Point{{Lat: 1, Lon: 2}, {Lat: -1, Lon: 5}, {Lat: 0.5, Lon: 3}})
	assert.Equal(t, BBox{MinLat: -1, MinLon: 2, MaxLat: 1, MaxLon: 5}, b)
	assert.True(t, b.Contains(Point{Lat: 0, Lon: 3}))
	assert.False(t, b.Contains(Point{Lat: 0, Lon: 6}))

	other := BBox{MinLat: 1.0005, MinLon: 5.0005, MaxLat: 2, MaxLon: 6}
	assert.False(t, b.Intersects(other))
	assert.True(t, b.Expand(100).Intersects(other))

	dLat, dLon := MetersToDegrees(111195, 60)
	assert.InDelta(t, 1, dLat, 1e-3)
	assert.InDelta(t, 2, dLon, 1e-2)
}
