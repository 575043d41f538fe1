// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package database

import (
	"time"

	"github.com/tomtom215/segmentum/internal/metrics"
)

// observe starts timing a query; call the returned func when it finishes.
//
//	defer observe("get_track")()
func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.RecordDBQuery(operation, time.Since(start))
	}
}
