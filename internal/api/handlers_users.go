// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/segmentum/internal/models"
)

// UserAchievements handles GET /users/{id}/achievements. With active=true
// only currently held achievements are listed.
func (h *Handler) UserAchievements(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			rw.ValidationError("active must be true or false", map[string]interface{}{"field": "active", "value": v})
			return
		}
		activeOnly = b
	}

	list, err := h.deps.Achievements.UserAchievements(r.Context(), chi.URLParam(r, "id"), activeOnly)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	if list == nil {
		list = []*models.Achievement{}
	}
	rw.SuccessWithPagination(list, &PaginationMeta{Total: int64(len(list)), Count: len(list)})
}

// PutUserProfile handles PUT /users/{id}/profile, which feeds the
// demographic leaderboard filters and the KOM/QOM split.
func (h *Handler) PutUserProfile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := chi.URLParam(r, "id")
	if userID == "" || len(userID) > 128 {
		rw.ValidationError("user id must be 1 to 128 characters", map[string]interface{}{"field": "id"})
		return
	}

	var req ProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if !validateRequest(rw, &req) {
		return
	}

	profile := req.profile(userID)
	if err := h.deps.Store.UpsertUserProfile(r.Context(), profile); err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(profile)
}
