// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/segmentum/internal/eventprocessor"
	"github.com/tomtom215/segmentum/internal/logging"
	"github.com/tomtom215/segmentum/internal/models"
	"github.com/tomtom215/segmentum/internal/trackio"
)

// uploadFormField is the multipart field carrying the track file.
const uploadFormField = "file"

// UploadActivity stores an uploaded GPX or FIT file and queues it for
// matching. The body is either multipart/form-data with a "file" field or
// the raw file; user_id, activity_type and name come from the query.
//
// Responds 202 once the track is stored. Matching runs asynchronously and
// its progress is read from GET /activities/{id}/status.
func (h *Handler) UploadActivity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	q := r.URL.Query()
	req := UploadRequest{
		UserID:       strings.TrimSpace(q.Get("user_id")),
		ActivityType: strings.TrimSpace(q.Get("activity_type")),
		Name:         strings.TrimSpace(q.Get("name")),
	}
	if !validateRequest(rw, &req) {
		return
	}

	filename, data, err := h.readUpload(w, r)
	if err != nil {
		writeServiceError(rw, err)
		return
	}

	parsed, err := trackio.Parse(filename, data)
	if err != nil {
		writeServiceError(rw, err)
		return
	}

	track := &models.Track{
		ID:           h.newID(),
		UserID:       req.UserID,
		ActivityType: firstNonEmpty(req.ActivityType, parsed.ActivityType, "ride"),
		Name:         firstNonEmpty(req.Name, parsed.Name),
		Points:       parsed.Points,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.deps.Store.InsertTrack(r.Context(), track); err != nil {
		writeServiceError(rw, err)
		return
	}

	resp := UploadResponse{
		ActivityID:   track.ID,
		UserID:       track.UserID,
		ActivityType: track.ActivityType,
		Name:         track.Name,
		Points:       len(track.Points),
		Timed:        track.HasTiming(),
		Queued:       h.queue(r, track.ID, track.UserID, false),
	}

	logging.Ctx(r.Context()).Info().
		Str("activity_id", track.ID).
		Str("user_id", sanitizeLogValue(track.UserID)).
		Int("points", resp.Points).
		Bool("queued", resp.Queued).
		Msg("Activity uploaded")

	rw.Accepted(resp)
}

// readUpload returns the file name and bytes of the upload, bounded by
// the configured maximum size.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	limit := int64(32 << 20)
	if h.config != nil && h.config.Server.MaxUploadBytes > 0 {
		limit = h.config.Server.MaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	filename := r.URL.Query().Get("filename")
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var body io.Reader = r.Body
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile(uploadFormField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return "", nil, err
			}
			return "", nil, fmt.Errorf("%w: %v", ErrEmptyUpload, err)
		}
		defer file.Close()
		if filename == "" {
			filename = header.Filename
		}
		body = file
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", nil, err
	}
	if buf.Len() == 0 {
		return "", nil, ErrEmptyUpload
	}
	return filename, buf.Bytes(), nil
}

// queue publishes the activity for processing and reports whether it was
// accepted by the bus.
func (h *Handler) queue(r *http.Request, activityID, userID string, reprocess bool) bool {
	if h.deps.Publisher == nil {
		return false
	}
	ev := eventprocessor.NewActivityUploadedEvent(activityID, userID)
	ev.Reprocess = reprocess
	if err := h.deps.Publisher.PublishActivityUploaded(r.Context(), ev); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("activity_id", activityID).Msg("Failed to queue activity")
		return false
	}
	return true
}

// ProcessActivity queues a stored activity for (re)processing.
func (h *Handler) ProcessActivity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	activityID := chi.URLParam(r, "id")

	track, err := h.deps.Store.GetTrack(r.Context(), activityID)
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	if !h.queue(r, track.ID, track.UserID, true) {
		rw.ServiceUnavailable("Activity could not be queued", map[string]string{"activity_id": track.ID})
		return
	}
	rw.Accepted(map[string]interface{}{"activity_id": track.ID, "queued": true})
}

// ActivityStatus reports the ledger entry of an activity.
func (h *Handler) ActivityStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	entry, err := h.deps.Ledger.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(rw, err)
		return
	}
	rw.Success(entry)
}

// DeleteActivity removes an activity and re-derives personal records and
// achievements on the segments it had efforts on. When some of that
// re-derivation fails the deletion still stands; the failure is logged
// and the reconciler repairs the achievements later.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	res, err := h.deps.Segments.DeleteActivity(r.Context(), chi.URLParam(r, "id"))
	if res == nil {
		writeServiceError(rw, err)
		return
	}
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("activity_id", res.ActivityID).Msg("Activity deleted with re-derivation errors")
	}
	rw.Success(res)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
