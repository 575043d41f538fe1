// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package effort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

// ramp describes a stretch of constant grade, sampled every 10m.
type ramp struct {
	meters float64
	grade  float64 // percent
}

func buildProfile(ramps ...ramp) []geo.Point {
	dist, ele := 0.0, 100.0
	mk := func() geo.Point {
		e := ele
		return geo.Point{Lat: 0, Lon: dist / metersPerDegree, Elevation: &e}
	}
	pts := []geo.Point{mk()}
	for _, r := range ramps {
		for covered := 0.0; covered < r.meters-1e-9; covered += 10 {
			dist += 10
			ele += 10 * r.grade / 100
			pts = append(pts, mk())
		}
	}
	return pts
}

func TestProfile_ConstantGrade(t *testing.T) {
	t.Parallel()

	p, err := testDeriver().Profile(buildProfile(ramp{meters: 1000, grade: 10}))
	require.NoError(t, err)
	assert.InDelta(t, 1000, p.DistanceMeters, 0.01)
	assert.InDelta(t, 100, p.ElevationGainMeters, 1e-6)
	assert.Zero(t, p.ElevationLossMeters)
	assert.InDelta(t, 10, p.AverageGrade, 1e-3)
	assert.InDelta(t, 10, p.MaxGrade, 1e-3)
	assert.Equal(t, models.ClimbCat4, p.ClimbCategory)
}

func TestProfile_MaxGradeUsesWindow(t *testing.T) {
	t.Parallel()

	pts := buildProfile(
		ramp{meters: 500, grade: 0},
		ramp{meters: 200, grade: 20},
		ramp{meters: 300, grade: -5},
	)
	p, err := testDeriver().Profile(pts)
	require.NoError(t, err)
	assert.InDelta(t, 20, p.MaxGrade, 1e-3)
	assert.InDelta(t, 40, p.ElevationGainMeters, 1e-6)
	assert.InDelta(t, 15, p.ElevationLossMeters, 1e-6)
	assert.InDelta(t, 2.5, p.AverageGrade, 1e-3)
	assert.Equal(t, models.ClimbNone, p.ClimbCategory, "2.5% average is below the climb threshold")
}

func TestProfile_NoElevation(t *testing.T) {
	t.Parallel()

	p, err := testDeriver().Profile([]geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}})
	require.NoError(t, err)
	assert.Zero(t, p.AverageGrade)
	assert.Zero(t, p.MaxGrade)
	assert.Equal(t, models.ClimbNone, p.ClimbCategory)

	_, err = testDeriver().Profile([]geo.Point{{Lat: 0, Lon: 0}})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestClimbCategory(t *testing.T) {
	t.Parallel()

	d := testDeriver()
	tests := []struct {
		distance, grade float64
		want            string
	}{
		{10000, 9, models.ClimbHC},
		{10000, 7, models.ClimbCat1},
		{4000, 10, models.ClimbCat2},
		{4000, 5, models.ClimbCat3},
		{1000, 10, models.ClimbCat4},
		{1000, 5, models.ClimbNone},
		{50000, 2, models.ClimbNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.ClimbCategory(tt.distance, tt.grade), "%vm at %v%%", tt.distance, tt.grade)
	}

	custom := NewDeriver(config.EffortConfig{
		GradeWindowMeters: 100,
		MinClimbGrade:     1,
		ClimbBands:        config.ClimbBands{HC: 100, Cat1: 80, Cat2: 60, Cat3: 40, Cat4: 20},
	})
	assert.Equal(t, models.ClimbHC, custom.ClimbCategory(1000, 10))
}
