// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package trackio

import (
	"bytes"
	"fmt"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"

	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

const (
	semicircleConst = 11930464.7111 // 2^31 / 180

	invalidSint32 = 0x7FFFFFFF
	invalidUint16 = 0xFFFF
	invalidUint32 = 0xFFFFFFFF
)

// ParseFIT decodes the record messages of a FIT activity. Records without
// a position are skipped. The activity type comes from the first session.
func ParseFIT(data []byte) (*Activity, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode FIT: %w", ErrNoPoints)
	}

	a := &Activity{}
	dec := decoder.New(bytes.NewReader(data))
	for dec.Next() {
		fit, err := dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode FIT: %w", err)
		}
		for i := range fit.Messages {
			msg := &fit.Messages[i]
			switch msg.Num {
			case typedef.MesgNumRecord:
				if pt, ok := recordPoint(mesgdef.NewRecord(msg)); ok {
					a.Points = append(a.Points, pt)
				}
			case typedef.MesgNumSession:
				s := mesgdef.NewSession(msg)
				if a.ActivityType == "" {
					a.ActivityType = sportType(s.Sport)
				}
				if a.Name == "" {
					a.Name = s.SportProfileName
				}
			}
		}
	}

	if len(a.Points) == 0 {
		return nil, ErrNoPoints
	}
	return a, nil
}

func recordPoint(r *mesgdef.Record) (models.TrackPoint, bool) {
	if r.PositionLat == invalidSint32 || r.PositionLong == invalidSint32 {
		return models.TrackPoint{}, false
	}
	pt := models.TrackPoint{Point: geo.Point{
		Lat: float64(r.PositionLat) / semicircleConst,
		Lon: float64(r.PositionLong) / semicircleConst,
	}}
	if !pt.Valid() {
		return models.TrackPoint{}, false
	}

	// altitude is scaled 5 with a 500 m offset
	switch {
	case r.EnhancedAltitude != invalidUint32:
		ele := float64(r.EnhancedAltitude)/5 - 500
		pt.Elevation = &ele
	case r.Altitude != invalidUint16:
		ele := float64(r.Altitude)/5 - 500
		pt.Elevation = &ele
	}

	if !r.Timestamp.IsZero() {
		ts := r.Timestamp.UTC()
		pt.Time = &ts
	}
	return pt, true
}

func sportType(s typedef.Sport) string {
	switch s {
	case typedef.SportCycling, typedef.SportEBiking:
		return "ride"
	case typedef.SportRunning:
		return "run"
	case typedef.SportWalking:
		return "walk"
	case typedef.SportHiking:
		return "hike"
	case typedef.SportSwimming:
		return "swim"
	case typedef.SportCrossCountrySkiing:
		return "nordic_ski"
	}
	return ""
}
