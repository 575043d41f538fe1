// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/segmentum/internal/leaderboard"
	"github.com/tomtom215/segmentum/internal/models"
	"github.com/tomtom215/segmentum/internal/pipeline"
)

// CreateSegment handles POST /segments.
func (h *Handler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CreateSegmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if !validateRequest(rw, &req) {
		return
	}
	if len(req.Points) == 0 && req.ActivityID == "" {
		rw.ValidationError(ErrMissingGeometry.Error(), map[string]interface{}{"field": "points"})
		return
	}
	if len(req.Points) > 0 && req.ActivityID != "" {
		rw.ValidationError("points and activity_id cannot be combined", map[string]interface{}{"field": "activity_id"})
		return
	}
	if req.ActivityID == "" && req.ActivityType == "" {
		rw.ValidationError("activity_type is required", map[string]interface{}{"field": "activity_type"})
		return
	}

	seg, err := h.deps.Segments.CreateSegment(r.Context(), req.input())
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Created(seg)
}

// loadSegment resolves the {id} path parameter to a live segment.
func (h *Handler) loadSegment(ctx context.Context, r *http.Request) (*models.Segment, error) {
	id := chi.URLParam(r, "id")
	seg, err := h.deps.Store.GetSegment(ctx, id)
	if err != nil {
		return nil, err
	}
	if seg.Deleted() {
		return nil, fmt.Errorf("segment %s: %w", id, pipeline.ErrSegmentNotFound)
	}
	return seg, nil
}

// GetSegment handles GET /segments/{id}.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	seg, err := h.loadSegment(r.Context(), r)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(seg)
}

// DeleteSegment handles DELETE /segments/{id}.
func (h *Handler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.deps.Segments.DeleteSegment(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.NoContent()
}

// SegmentLeaderboard handles GET /segments/{id}/leaderboard.
func (h *Handler) SegmentLeaderboard(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	page := PageRequest{
		Offset: getIntParam(r, "offset", 0),
		Limit:  getIntParam(r, "limit", 0),
	}
	if !validateRequest(rw, &page) {
		return
	}
	filter, err := leaderboard.ParseFilter(r.URL.Query())
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	seg, err := h.loadSegment(r.Context(), r)
	if err != nil {
		writeServiceError(rw, err)
		return
	}

	view, err := h.deps.Leaderboards.Rank(r.Context(), seg.ID, filter, leaderboard.Page{Offset: page.Offset, Limit: page.Limit})
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.SuccessWithPagination(view, &PaginationMeta{
		Total:   int64(view.TotalCount),
		Count:   len(view.Entries),
		Offset:  view.Offset,
		Limit:   view.Limit,
		HasMore: view.Offset+len(view.Entries) < view.TotalCount,
	})
}

// SegmentPosition handles GET /segments/{id}/leaderboard/position.
func (h *Handler) SegmentPosition(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req := PositionRequest{
		UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
		Window: getIntParam(r, "window", -1),
	}
	if !validateRequest(rw, &req) {
		return
	}
	filter, err := leaderboard.ParseFilter(r.URL.Query())
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	seg, err := h.loadSegment(r.Context(), r)
	if err != nil {
		writeServiceError(rw, err)
		return
	}

	view, err := h.deps.Leaderboards.Position(r.Context(), seg.ID, filter, req.UserID, req.Window)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(view)
}

// SegmentAchievements handles GET /segments/{id}/achievements.
func (h *Handler) SegmentAchievements(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	seg, err := h.loadSegment(r.Context(), r)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	holders, err := h.deps.Achievements.SegmentAchievements(r.Context(), seg.ID)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(holders)
}

// SegmentEfforts handles GET /segments/{id}/efforts?user_id=. The personal
// record comes first, then the remaining efforts fastest first.
func (h *Handler) SegmentEfforts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		rw.ValidationError("user_id is required", map[string]interface{}{"field": "user_id"})
		return
	}
	seg, err := h.loadSegment(r.Context(), r)
	if err != nil {
		writeServiceError(rw, err)
		return
	}

	efforts, err := h.deps.Store.UserSegmentEfforts(r.Context(), userID, seg.ID)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	if efforts == nil {
		efforts = []*models.Effort{}
	}
	rw.SuccessWithPagination(efforts, &PaginationMeta{Total: int64(len(efforts)), Count: len(efforts)})
}
