// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package cache

import (
	"math"
	"sort"

	"github.com/tomtom215/segmentum/internal/geo"
)

// CellKey is a grid cell coordinate.
type CellKey struct {
	X, Y int
}

// SpatialHashGrid buckets indexed points into fixed-size cells so that
// "which points lie within r meters of p" only inspects nearby cells.
//
// The matcher builds one grid per track, keyed by point index, then queries
// it with every candidate segment's start and end. A grid is not safe for
// concurrent Insert; concurrent queries after building are fine.
type SpatialHashGrid struct {
	cellDeg float64
	cells   map[CellKey][]int
	points  map[int]geo.Point
}

// NewSpatialHashGrid creates a grid with cells of roughly cellMeters on a side
// (measured along a meridian).
func NewSpatialHashGrid(cellMeters float64) *SpatialHashGrid {
	if cellMeters <= 0 {
		cellMeters = 50
	}
	dLat, _ := geo.MetersToDegrees(cellMeters, 0)
	return &SpatialHashGrid{
		cellDeg: dLat,
		cells:   make(map[CellKey][]int),
		points:  make(map[int]geo.Point),
	}
}

func (g *SpatialHashGrid) cellKey(p geo.Point) CellKey {
	return CellKey{
		X: int(math.Floor(p.Lon / g.cellDeg)),
		Y: int(math.Floor(p.Lat / g.cellDeg)),
	}
}

// Insert adds point p under id. Re-inserting an id moves it.
func (g *SpatialHashGrid) Insert(id int, p geo.Point) {
	if old, ok := g.points[id]; ok {
		g.removeFromCell(id, g.cellKey(old))
	}
	k := g.cellKey(p)
	g.cells[k] = append(g.cells[k], id)
	g.points[id] = p
}

// Remove deletes id from the grid.
func (g *SpatialHashGrid) Remove(id int) bool {
	p, ok := g.points[id]
	if !ok {
		return false
	}
	g.removeFromCell(id, g.cellKey(p))
	delete(g.points, id)
	return true
}

func (g *SpatialHashGrid) removeFromCell(id int, k CellKey) {
	ids := g.cells[k]
	for i, v := range ids {
		if v == id {
			ids[i] = ids[len(ids)-1]
			ids = ids[:len(ids)-1]
			break
		}
	}
	if len(ids) == 0 {
		delete(g.cells, k)
		return
	}
	g.cells[k] = ids
}

// QueryNearby returns the ids of all points within radiusMeters of p, in
// ascending id order. Longitude cell reach widens with latitude so that the
// search square always covers the radius.
func (g *SpatialHashGrid) QueryNearby(p geo.Point, radiusMeters float64) []int {
	dLat, dLon := geo.MetersToDegrees(radiusMeters, p.Lat)
	reachY := int(math.Ceil(dLat/g.cellDeg)) + 1
	reachX := int(math.Ceil(dLon/g.cellDeg)) + 1
	center := g.cellKey(p)

	var out []int
	for dx := -reachX; dx <= reachX; dx++ {
		for dy := -reachY; dy <= reachY; dy++ {
			for _, id := range g.cells[CellKey{X: center.X + dx, Y: center.Y + dy}] {
				if geo.Haversine(p, g.points[id]) <= radiusMeters {
					out = append(out, id)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}

// Size returns the number of indexed points.
func (g *SpatialHashGrid) Size() int { return len(g.points) }
