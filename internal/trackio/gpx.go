// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package trackio

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tomtom215/segmentum/internal/geo"
	"github.com/tomtom215/segmentum/internal/models"
)

type gpxFile struct {
	Metadata struct {
		Name string `xml:"name"`
	} `xml:"metadata"`
	Tracks []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name     string       `xml:"name"`
	Type     string       `xml:"type"`
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Ele  *float64 `xml:"ele"`
	Time string   `xml:"time"`
}

// ParseGPX decodes the track points of every <trk> and <trkseg> in order.
// Points with out-of-range coordinates are dropped; points without a
// parseable <time> are kept untimed.
func ParseGPX(r io.Reader) (*Activity, error) {
	var doc gpxFile
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode GPX: %w", err)
	}

	a := &Activity{Name: strings.TrimSpace(doc.Metadata.Name)}
	for _, trk := range doc.Tracks {
		if a.Name == "" {
			a.Name = strings.TrimSpace(trk.Name)
		}
		if a.ActivityType == "" {
			a.ActivityType = normalizeType(trk.Type)
		}
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				pt := models.TrackPoint{Point: geo.Point{Lat: p.Lat, Lon: p.Lon, Elevation: p.Ele}}
				if !pt.Valid() {
					continue
				}
				if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(p.Time)); err == nil {
					ts = ts.UTC()
					pt.Time = &ts
				}
				a.Points = append(a.Points, pt)
			}
		}
	}

	if len(a.Points) == 0 {
		return nil, ErrNoPoints
	}
	return a, nil
}

// normalizeType maps the free-form GPX <type> (Strava writes "cycling",
// Garmin "road_biking") onto activity types.
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "bik"), strings.Contains(t, "cycl"), t == "ride", t == "1":
		return "ride"
	case strings.Contains(t, "run"), t == "9":
		return "run"
	case strings.Contains(t, "hik"):
		return "hike"
	case strings.Contains(t, "walk"):
		return "walk"
	case strings.Contains(t, "swim"):
		return "swim"
	}
	return strings.ReplaceAll(t, " ", "_")
}
