// Drivelog - Driving Journal GPS Trip Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/drivelog

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authenticator attaches the caller's identity or rejects with 401.
type Authenticator interface {
	RequireAuth(next http.Handler) http.Handler
}

// Authorizer rejects callers the policy does not allow with 403.
type Authorizer interface {
	AuthorizeRequest(next http.Handler) http.Handler
}

// Router wires handlers and middleware.
type Router struct {
	handler       *Handler
	authn         Authenticator
	authz         Authorizer
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mwConfig uses defaults.
func NewRouter(handler *Handler, authn Authenticator, authz Authorizer, mwConfig *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		authn:         authn,
		authz:         authz,
		chiMiddleware: NewChiMiddleware(mwConfig),
	}
}

// SetupChi configures all routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Sync endpoints: admin only.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(PrometheusMetrics)
		r.Use(router.authn.RequireAuth)
		r.Use(router.authz.AuthorizeRequest)

		r.Post("/syncGPSTrips", router.handler.SyncGPSTrips)
		r.Post("/syncAllGPSTrips", router.handler.SyncAllGPSTrips)
		r.Get("/api/v1/sync/status", router.handler.SyncStatus)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	return r
}
