// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

/*
Package api provides the HTTP REST API for Segmentum.

Routes (all under /api/v1):

	GET    /health/live
	GET    /health/ready
	POST   /activities                        upload GPX/FIT, 202
	POST   /activities/{id}/process           queue reprocessing, 202
	GET    /activities/{id}/status            processing ledger entry
	DELETE /activities/{id}
	POST   /segments                          201
	GET    /segments/{id}
	DELETE /segments/{id}                     soft delete, 204
	GET    /segments/{id}/leaderboard         ?scope=&gender=&age_group=&weight_class=&country=&offset=&limit=
	GET    /segments/{id}/leaderboard/position ?user_id=&window= plus the leaderboard filters
	GET    /segments/{id}/achievements
	GET    /segments/{id}/efforts             ?user_id=
	GET    /users/{id}/achievements           ?active=true
	PUT    /users/{id}/profile

Prometheus metrics are served at /metrics.

Every response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 3}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "...", "request_id": "..."}, "meta": {...}}

Uploads are accepted as soon as the track is stored; matching runs on the
worker pool after the activity.uploaded event is consumed.
*/
package api
