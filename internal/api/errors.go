// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/segmentum/internal/database"
	"github.com/tomtom215/segmentum/internal/effort"
	"github.com/tomtom215/segmentum/internal/leaderboard"
	"github.com/tomtom215/segmentum/internal/ledger"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/pipeline"
	"github.com/tomtom215/segmentum/internal/trackio"
)

var (
	// ErrEmptyUpload is returned for an upload without a file body.
	ErrEmptyUpload = errors.New("upload body is empty")

	// ErrMissingGeometry is returned for a segment with neither points nor an activity.
	ErrMissingGeometry = errors.New("either points or activity_id is required")

	errNotConfigured = errors.New("not configured")
)

// writeServiceError maps a pipeline, store or decoder error to a status
// and error code. Unknown errors are logged and reported as 500.
func writeServiceError(rw *ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, err.Error())

	case errors.Is(err, trackio.ErrUnsupportedFormat):
		rw.Error(http.StatusUnsupportedMediaType, ErrCodeUnsupportedFormat, err.Error())

	case errors.Is(err, ErrEmptyUpload),
		errors.Is(err, ErrMissingGeometry),
		errors.Is(err, trackio.ErrNoPoints),
		errors.Is(err, pipeline.ErrInvalidSegment),
		errors.Is(err, pipeline.ErrTrackTooShort),
		errors.Is(err, effort.ErrNoTimingData),
		errors.Is(err, leaderboard.ErrInvalidFilter):
		rw.BadRequest(err.Error())

	case errors.Is(err, pipeline.ErrNotOwner):
		rw.Error(http.StatusForbidden, ErrCodeForbidden, err.Error())

	case errors.Is(err, pipeline.ErrTrackNotFound),
		errors.Is(err, pipeline.ErrSegmentNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, leaderboard.ErrNoEffort),
		errors.Is(err, database.ErrNotFound):
		rw.NotFound(err.Error())

	case errors.Is(err, database.ErrAlreadyExists):
		rw.Error(http.StatusConflict, ErrCodeConflict, err.Error())

	case database.IsTransient(err):
		rw.ServiceUnavailable("Storage temporarily unavailable", nil)

	default:
		logging.Ctx(rw.r.Context()).Error().Err(err).Str("path", rw.r.URL.Path).Msg("Request failed")
		rw.InternalError("Internal server error")
	}
}
