// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/caseledger/internal/models"
)

// Router wires handlers to routes.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter returns a router; a nil mw uses the default middleware.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	mw := router.chiMiddleware
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging())
	r.Use(mw.CORS())

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(mw.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(PrometheusMetrics)

		r.Get("/dashboard/stats", h.DashboardStats)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/", h.CreateAlert)
			r.Get("/{id}", h.GetAlert)
			r.Delete("/{id}", h.DeleteAlert)
			r.With(mw.RateLimitCustom(RateLimitWrite)).Post("/{id}/requeue", h.RequeueAlert)
		})

		r.Route("/cases", func(r chi.Router) {
			r.Get("/count", h.CaseCount)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", withCaseID(h.GetCase))
				r.Get("/evidences", withCaseID(h.GetEvidences))
				r.Get("/queries", withCaseID(h.GetQueries))
				r.Get("/authorities", withCaseID(h.GetAuthorities))

				r.Group(func(r chi.Router) {
					r.Use(mw.RateLimitCustom(RateLimitWrite))
					r.Post("/evidence", withCaseID(h.AddEvidence))
					r.Post("/query", withCaseID(h.AddQuery))
					r.Post("/close", withCaseID(h.CloseCase))
					r.Post("/authorities", withCaseID(h.AssignAuthority))
				})
			})
		})

		r.Get("/residents", h.ListRecipients(models.KindResident))
		r.Post("/residents", h.AddRecipient(models.KindResident))
		r.Get("/authorities", h.ListRecipients(models.KindAuthority))
		r.Post("/authorities", h.AddRecipient(models.KindAuthority))

		r.Route("/mail", func(r chi.Router) {
			r.Use(mw.RateLimitCustom(RateLimitMail))
			r.Post("/residents", h.Broadcast(models.KindResident))
			r.Post("/authorities", h.Broadcast(models.KindAuthority))
		})

		r.With(mw.RateLimitCustom(RateLimitWrite)).Post("/upload", h.Upload)

		r.Get("/sync/status", h.SyncStatus)
		r.With(mw.RateLimitCustom(RateLimitWrite)).Post("/sync/trigger", h.TriggerSync)
	})

	return r
}
