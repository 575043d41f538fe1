// Segmentum - Segment Matching, Effort Ranking and Achievement Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/segmentum

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/segmentum/internal/middleware"
)

// Router binds the handlers to their routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer OPTIONS preflight

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// ========================
	// Activity Endpoints
	// ========================
	r.Route("/api/v1/activities", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.With(router.chiMiddleware.RateLimitUpload()).Post("/", router.handler.UploadActivity)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/process", router.handler.ProcessActivity)
			r.Get("/status", router.handler.ActivityStatus)
			r.With(router.chiMiddleware.RateLimitWrite()).Delete("/", router.handler.DeleteActivity)
		})
	})

	// ========================
	// Segment Endpoints
	// ========================
	r.Route("/api/v1/segments", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.With(router.chiMiddleware.RateLimitWrite()).Post("/", router.handler.CreateSegment)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", router.handler.GetSegment)
			r.With(router.chiMiddleware.RateLimitWrite()).Delete("/", router.handler.DeleteSegment)

			// Read-heavy, compressed
			r.Group(func(r chi.Router) {
				r.Use(middleware.Compression)
				r.Get("/leaderboard", router.handler.SegmentLeaderboard)
				r.Get("/leaderboard/position", router.handler.SegmentPosition)
				r.Get("/achievements", router.handler.SegmentAchievements)
				r.Get("/efforts", router.handler.SegmentEfforts)
			})
		})
	})

	// ========================
	// User Endpoints
	// ========================
	r.Route("/api/v1/users/{id}", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/achievements", router.handler.UserAchievements)
		r.Put("/profile", router.handler.PutUserProfile)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
