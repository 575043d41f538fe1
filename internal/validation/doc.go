// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

// Package validation validates API request structs with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide (GetValidator). It
// reports fields by their JSON name and registers two domain tags:
//
//   - activitytype: a lowercase slug such as "ride", "run" or "trail_run"
//   - fraction: a float in [0, 1], used for track sub-range selection
//
// Usage:
//
//	type CreateSegmentRequest struct {
//	    Name          string   `json:"name" validate:"required,min=1,max=200"`
//	    ActivityType  string   `json:"activity_type" validate:"omitempty,activitytype"`
//	    StartFraction *float64 `json:"start_fraction" validate:"omitempty,fraction"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, verr)
//	    return
//	}
//
// ValidateStruct returns *RequestValidationError (nil on success). Compare
// the result to nil directly; assigning it to an error variable first yields
// a non-nil interface holding a nil pointer.
package validation
