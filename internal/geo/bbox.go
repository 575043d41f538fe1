// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package geo

import "math"

// metersPerDegreeLat is the length of one degree of latitude.
const metersPerDegreeLat = EarthRadiusMeters * math.Pi / 180

// BBox is an axis-aligned bounding box in degrees.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Bounds returns the bounding box of pts. The zero BBox is returned for no points.
func Bounds(pts []Point) BBox {
	if len(pts) == 0 {
		return BBox{}
	}
	b := BBox{MinLat: pts[0].Lat, MaxLat: pts[0].Lat, MinLon: pts[0].Lon, MaxLon: pts[0].Lon}
	for _, p := range pts[1:] {
		b.MinLat = math.Min(b.MinLat, p.Lat)
		b.MaxLat = math.Max(b.MaxLat, p.Lat)
		b.MinLon = math.Min(b.MinLon, p.Lon)
		b.MaxLon = math.Max(b.MaxLon, p.Lon)
	}
	return b
}

// Expand grows the box by meters on every side.
func (b BBox) Expand(meters float64) BBox {
	dLat := meters / metersPerDegreeLat
	dLon := dLat / math.Max(math.Cos(toRad(math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat)))), 0.01)
	return BBox{
		MinLat: math.Max(-90, b.MinLat-dLat),
		MaxLat: math.Min(90, b.MaxLat+dLat),
		MinLon: math.Max(-180, b.MinLon-dLon),
		MaxLon: math.Min(180, b.MaxLon+dLon),
	}
}

// Intersects reports whether the two boxes overlap (touching counts).
func (b BBox) Intersects(o BBox) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat &&
		b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon
}

// Contains reports whether p lies inside the box.
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// MetersToDegrees converts a ground distance to degrees of latitude and of
// longitude at the given latitude.
func MetersToDegrees(meters, lat float64) (dLat, dLon float64) {
	dLat = meters / metersPerDegreeLat
	dLon = dLat / math.Max(math.Cos(toRad(lat)), 0.01)
	return dLat, dLon
}
