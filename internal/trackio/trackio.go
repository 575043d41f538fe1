// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package trackio decodes uploaded GPS files into track points.
//
// GPX and FIT are supported. Parse picks the decoder from the file
// extension, falling back to the content: a FIT file carries ".FIT" at
// bytes 8-11 of its header and a GPX file opens a <gpx> element.
package trackio

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tomtom215/segmentum/internal/models"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither GPX nor FIT.
	ErrUnsupportedFormat = errors.New("unsupported track format")

	// ErrNoPoints is returned when a file decodes but holds no usable position.
	ErrNoPoints = errors.New("track has no points")
)

// Format is a track file format.
type Format string

const (
	FormatGPX     Format = "gpx"
	FormatFIT     Format = "fit"
	FormatUnknown Format = ""
)

// Activity is a decoded track file. ActivityType is empty when the file
// does not say.
type Activity struct {
	Name         string
	ActivityType string
	Points       []models.TrackPoint
}

// DetectFormat identifies a file by extension, then by content.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gpx":
		return FormatGPX
	case ".fit":
		return FormatFIT
	}
	if len(data) >= 12 && string(data[8:12]) == ".FIT" {
		return FormatFIT
	}
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(bytes.ToLower(head), []byte("<gpx")) {
		return FormatGPX
	}
	return FormatUnknown
}

// Parse decodes data in whichever supported format it is.
func Parse(filename string, data []byte) (*Activity, error) {
	var (
		a   *Activity
		err error
	)
	switch DetectFormat(filename, data) {
	case FormatGPX:
		a, err = ParseGPX(bytes.NewReader(data))
	case FormatFIT:
		a, err = ParseFIT(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return nil, err
	}
	if a.Name == "" && filename != "" {
		a.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return a, nil
}
