// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package middleware

import (
	"net/http"
	"time"

	"github.com/tomtom215/segmentum/internal/logging"
)

// slowRequestThreshold promotes access log lines to warn level.
const slowRequestThreshold = time.Second

// AccessLog writes one structured log line per request. It must run inside
// RequestID so the line carries the request and correlation ids.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		logger := logging.Ctx(r.Context())
		event := logger.Debug()
		switch {
		case ww.statusCode >= http.StatusInternalServerError:
			event = logger.Error()
		case duration >= slowRequestThreshold:
			event = logger.Warn()
		}

		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", routePattern(r)).
			Int("status", ww.statusCode).
			Dur("duration", duration).
			Str("remote_addr", r.RemoteAddr).
			Msg("request completed")
	})
}
