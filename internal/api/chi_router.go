// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires handlers and middleware into a chi mux.
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

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, codeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(Metrics())
		r.Use(Identify(router.handler.identities))

		r.Route("/api/v1/auth", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitAuth()).Post("/anonymous", router.handler.SignInAnonymously)
			r.Get("/me", router.handler.WhoAmI)
		})

		r.Route("/api/v1/shared", func(r chi.Router) {
			r.Get("/", router.handler.ListShared)
			r.Get("/mine", router.handler.ListMine)
			r.Get("/code/{code}", router.handler.ResolveCode)

			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitWrite())
				r.Post("/", router.handler.SaveShared)
				r.Post("/import/{code}", router.handler.ImportShared)
				r.Patch("/{id}", router.handler.RenameShared)
				r.Post("/{id}/unlist", router.handler.UnlistShared)
				r.Delete("/{id}", router.handler.DeleteShared)
				r.Post("/{id}/ratings", router.handler.RateShared)
				r.Post("/{id}/downloads", router.handler.RecordDownload)
			})
		})

		r.With(router.chiMiddleware.RateLimitWrite()).
			Post("/api/v1/library/{id}/share", router.handler.ShareLibraryPlaylist)

		r.Route("/api/v1/migration", func(r chi.Router) {
			r.Get("/status", router.handler.MigrationStatus)
			r.With(router.chiMiddleware.RateLimitMigration()).Post("/run", router.handler.RunMigration)
			r.With(router.chiMiddleware.RateLimitWrite()).Post("/{id}", router.handler.MigrateOne)
		})
	})

	return r
}
