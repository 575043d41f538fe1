// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus is the body of the readiness probe.
type HealthStatus struct {
	Status string            `json:"status"` // "ready" or "not_ready"
	Checks map[string]string `json:"checks"`
	Uptime float64           `json:"uptime_seconds"`
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 only when the database answers and every registered check
// passes, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{
		Status: "ready",
		Checks: make(map[string]string, len(h.deps.Checks)+1),
		Uptime: time.Since(h.startTime).Seconds(),
	}
	record := func(name string, err error) {
		if err != nil {
			status.Status = "not_ready"
			status.Checks[name] = err.Error()
			return
		}
		status.Checks[name] = "ok"
	}

	if h.deps.Store == nil {
		record("database", errNotConfigured)
	} else {
		record("database", h.deps.Store.Ping(ctx))
	}
	for _, c := range h.deps.Checks {
		record(c.Name, c.Check(ctx))
	}

	if status.Status != "ready" {
		rw.ServiceUnavailable("Service not ready", status)
		return
	}
	rw.Success(status)
}
