// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package effort turns a matched portion of a track into comparable timing
// metrics, and computes grade and climb category for new segments.
package effort

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/segmentum/internal/config"
	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

var (
	// ErrNoTimingData is returned when a point needed for timing has no timestamp.
	ErrNoTimingData = errors.New("track has no timing data")

	// ErrInvalidRange is returned for fractions outside [0,1] or start >= end.
	ErrInvalidRange = errors.New("invalid fraction range")

	// ErrNonMonotonicTime is returned when timestamps go backwards within the range.
	ErrNonMonotonicTime = errors.New("timestamps are not monotonic")
)

// Metrics are the timing results for one traversal.
type Metrics struct {
	StartedAt          time.Time      `json:"started_at"`
	EndedAt            time.Time      `json:"ended_at"`
	ElapsedTimeSeconds float64        `json:"elapsed_time_seconds"`
	MovingTimeSeconds  float64        `json:"moving_time_seconds"`
	DistanceMeters     float64        `json:"distance_meters"`
	AverageSpeedMPS    float64        `json:"average_speed_mps"`
	MaxSpeedMPS        float64        `json:"max_speed_mps"`
	StopIntervals      []StopInterval `json:"stop_intervals,omitempty"`
}

// Deriver computes effort metrics and segment profiles.
type Deriver struct {
	stopSpeed   float64
	gradeWindow float64
	minGrade    float64
	bands       config.ClimbBands
}

// NewDeriver creates a Deriver from configuration.
func NewDeriver(cfg config.EffortConfig) *Deriver {
	return &Deriver{
		stopSpeed:   cfg.StopSpeedThresholdMPS,
		gradeWindow: cfg.GradeWindowMeters,
		minGrade:    cfg.MinClimbGrade,
		bands:       cfg.ClimbBands,
	}
}

// sample is one point of the timed sub-track: distance along the source
// track and the time the athlete was there.
type sample struct {
	dist float64
	at   time.Time
}

// Derive computes metrics for the part of track between two length fractions.
// Positions between recorded points are interpolated, both in space and time.
func (d *Deriver) Derive(track *models.Track, startFraction, endFraction float64) (Metrics, error) {
	if startFraction < 0 || endFraction > 1 || startFraction >= endFraction {
		return Metrics{}, fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, startFraction, endFraction)
	}
	if len(track.Points) < 2 {
		return Metrics{}, fmt.Errorf("%w: need at least 2 points", ErrInvalidRange)
	}

	samples, err := timedSamples(track, startFraction, endFraction)
	if err != nil {
		return Metrics{}, err
	}

	first, last := samples[0], samples[len(samples)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return Metrics{}, fmt.Errorf("%w: elapsed %vs", ErrNonMonotonicTime, elapsed)
	}
	distance := last.dist - first.dist

	stops := stopIntervals(samples, d.stopSpeed)
	var stopped float64
	for _, s := range stops {
		stopped += s.Duration().Seconds()
	}

	var maxSpeed float64
	for i := 1; i < len(samples); i++ {
		dt := samples[i].at.Sub(samples[i-1].at).Seconds()
		if dt <= 0 {
			continue
		}
		maxSpeed = math.Max(maxSpeed, (samples[i].dist-samples[i-1].dist)/dt)
	}

	return Metrics{
		StartedAt:          first.at,
		EndedAt:            last.at,
		ElapsedTimeSeconds: elapsed,
		MovingTimeSeconds:  math.Max(0, elapsed-stopped),
		DistanceMeters:     distance,
		AverageSpeedMPS:    distance / elapsed,
		MaxSpeedMPS:        maxSpeed,
		StopIntervals:      stops,
	}, nil
}

// timedSamples builds the interpolated sub-track between two fractions.
func timedSamples(track *models.Track, from, to float64) ([]sample, error) {
	cum := geo.CumulativeDistances(track.Geometry())
	i0, t0 := geo.IndexAtFraction(cum, from)
	i1, t1 := geo.IndexAtFraction(cum, to)

	for i := i0; i <= i1+1 && i < len(track.Points); i++ {
		if track.Points[i].Time == nil {
			return nil, fmt.Errorf("%w: point %d", ErrNoTimingData, i)
		}
	}

	at := func(i int, t float64) sample {
		a, b := *track.Points[i].Time, *track.Points[i+1].Time
		return sample{
			dist: cum[i] + (cum[i+1]-cum[i])*t,
			at:   a.Add(time.Duration(float64(b.Sub(a)) * t)),
		}
	}

	out := make([]sample, 0, i1-i0+2)
	out = append(out, at(i0, t0))
	for i := i0 + 1; i <= i1; i++ {
		out = append(out, sample{dist: cum[i], at: *track.Points[i].Time})
	}
	out = append(out, at(i1, t1))

	for i := 1; i < len(out); i++ {
		if out[i].at.Before(out[i-1].at) {
			return nil, fmt.Errorf("%w: sample %d", ErrNonMonotonicTime, i)
		}
	}
	return out, nil
}
