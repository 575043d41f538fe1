// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package middleware provides HTTP middleware for the segmentum API.

All middleware has the chi signature func(http.Handler) http.Handler and is
installed with r.Use in the api package.

Key Components:

  - RequestID: X-Request-ID propagation with logging context integration
  - AccessLog: one zerolog line per request, promoted on errors and slow requests
  - PrometheusMetrics: request count, latency and in-flight gauge per route pattern
  - Compression: gzip for clients sending Accept-Encoding: gzip

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)         // must be first, AccessLog reads its ids
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)

Thread Safety:

All middleware is safe for concurrent use. Compression pools gzip writers in
a sync.Pool.
*/
package middleware
