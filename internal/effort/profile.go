// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package effort

import (
	"errors"
	"math"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

// ErrTooFewPoints is returned when a segment geometry has fewer than two points.
var ErrTooFewPoints = errors.New("segment needs at least two points")

// Profile holds the derived attributes of a segment.
type Profile struct {
	DistanceMeters      float64 `json:"distance_meters"`
	ElevationGainMeters float64 `json:"elevation_gain_meters"`
	ElevationLossMeters float64 `json:"elevation_loss_meters"`
	AverageGrade        float64 `json:"average_grade"` // percent
	MaxGrade            float64 `json:"max_grade"`     // percent
	ClimbCategory       string  `json:"climb_category"`
}

// Profile computes distance, elevation and grade metrics for a segment
// geometry. Points without elevation are ignored for the elevation metrics.
func (d *Deriver) Profile(pts []geo.Point) (Profile, error) {
	if len(pts) < 2 {
		return Profile{}, ErrTooFewPoints
	}
	p := Profile{DistanceMeters: geo.Length(pts)}

	// Elevation series along distance, restricted to points that have one.
	var (
		dist []float64
		ele  []float64
	)
	cum := geo.CumulativeDistances(pts)
	for i, pt := range pts {
		if pt.Elevation != nil {
			dist = append(dist, cum[i])
			ele = append(ele, *pt.Elevation)
		}
	}
	for i := 1; i < len(ele); i++ {
		if delta := ele[i] - ele[i-1]; delta > 0 {
			p.ElevationGainMeters += delta
		} else {
			p.ElevationLossMeters -= delta
		}
	}

	if len(ele) >= 2 && p.DistanceMeters > 0 {
		p.AverageGrade = (ele[len(ele)-1] - ele[0]) / p.DistanceMeters * 100
		p.MaxGrade = maxWindowGrade(dist, ele, d.gradeWindow)
	}
	p.ClimbCategory = d.ClimbCategory(p.DistanceMeters, p.AverageGrade)
	return p, nil
}

// maxWindowGrade returns the steepest grade, in percent, measured over
// trailing windows of at least window meters. A series shorter than the
// window yields its overall grade.
func maxWindowGrade(dist, ele []float64, window float64) float64 {
	n := len(dist)
	span := dist[n-1] - dist[0]
	if span <= 0 {
		return 0
	}
	if span <= window {
		return (ele[n-1] - ele[0]) / span * 100
	}

	best := math.Inf(-1)
	i := 0
	for j := 1; j < n; j++ {
		if dist[j]-dist[0] < window {
			continue
		}
		// Advance i to the latest start still at least one window behind j.
		for i+1 < j && dist[j]-dist[i+1] >= window {
			i++
		}
		if run := dist[j] - dist[i]; run > 0 {
			best = math.Max(best, (ele[j]-ele[i])/run*100)
		}
	}
	if math.IsInf(best, -1) {
		return 0
	}
	return best
}

// ClimbCategory bands a climb by its score, distance x grade fraction
// (roughly the meters climbed). Segments flatter than the minimum climb
// grade are never categorized.
func (d *Deriver) ClimbCategory(distanceMeters, averageGradePercent float64) string {
	return climbCategory(d.bands, d.minGrade, distanceMeters, averageGradePercent)
}

func climbCategory(b config.ClimbBands, minGrade, distance, grade float64) string {
	if grade < minGrade {
		return models.ClimbNone
	}
	score := distance * grade / 100
	switch {
	case score >= b.HC:
		return models.ClimbHC
	case score >= b.Cat1:
		return models.ClimbCat1
	case score >= b.Cat2:
		return models.ClimbCat2
	case score >= b.Cat3:
		return models.ClimbCat3
	case score >= b.Cat4:
		return models.ClimbCat4
	default:
		return models.ClimbNone
	}
}
