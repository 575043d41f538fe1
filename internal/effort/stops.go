// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package effort

import (
	"time"

	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

// StopInterval is a contiguous period during which the athlete moved slower
// than the stop threshold.
type StopInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Location of the stop (first point of the interval).
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Duration returns the length of the stop.
func (s StopInterval) Duration() time.Duration { return s.End.Sub(s.Start) }

// stopIntervals merges consecutive sample pairs whose speed is below
// threshold into intervals.
func stopIntervals(samples []sample, threshold float64) []StopInterval {
	var (
		out  []StopInterval
		open *StopInterval
	)
	for i := 1; i < len(samples); i++ {
		dt := samples[i].at.Sub(samples[i-1].at).Seconds()
		if dt <= 0 {
			continue
		}
		slow := (samples[i].dist-samples[i-1].dist)/dt < threshold
		switch {
		case slow && open == nil:
			open = &StopInterval{Start: samples[i-1].at, End: samples[i].at}
		case slow:
			open.End = samples[i].at
		case open != nil:
			out = append(out, *open)
			open = nil
		}
	}
	if open != nil {
		out = append(out, *open)
	}
	return out
}

// StopIntervals returns every interval of points during which speed stayed
// below threshold (m/s).
func StopIntervals(points []models.TrackPoint, threshold float64) []StopInterval {
	return DetectStops(&models.Track{Points: points}, threshold, 0)
}

// DetectStops returns the stops of at least minDuration on a whole track.
// Points without timestamps split the track; the untimed gaps are skipped.
// The trail maintenance tagger consumes these to find places where people
// routinely stop.
func DetectStops(track *models.Track, threshold float64, minDuration time.Duration) []StopInterval {
	var (
		out []StopInterval
		run []sample
		pts []models.TrackPoint
	)
	flush := func() {
		for _, s := range stopIntervals(run, threshold) {
			if s.Duration() < minDuration {
				continue
			}
			// Attach location of the stop start.
			for _, p := range pts {
				if p.Time != nil && p.Time.Equal(s.Start) {
					s.Lat, s.Lon = p.Lat, p.Lon
					break
				}
			}
			out = append(out, s)
		}
		run, pts = nil, nil
	}

	var dist float64
	for i, p := range track.Points {
		if p.Time == nil {
			flush()
			continue
		}
		if i > 0 && track.Points[i-1].Time != nil {
			dist += geo.Haversine(track.Points[i-1].Point, p.Point)
		}
		run = append(run, sample{dist: dist, at: *p.Time})
		pts = append(pts, p)
	}
	flush()
	return out
}
