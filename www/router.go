// Package www serves the planner's JSON API and dashboard event stream.
package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

// NewRouter builds the HTTP handler. The returned func stops the SSE hub.
func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}
	h.ensureDefaultAdmin(eng.DB())

	limit := newRateLimit(eng.AppConfig().Web.RateLimit)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Post("/login", h.handleLogin)
	r.Get("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/health", h.apiHealth)
		r.Get("/orders", h.apiListOrders)
		r.Get("/orders/{id}", h.apiGetOrder)
		r.With(limit).Get("/search", h.apiSearch)
		r.Get("/metrics", h.apiMetrics)
		r.Get("/urgency", h.apiUrgency)
		r.Get("/stations", h.apiGetStations)
		r.Get("/terminals", h.apiTerminals)

		r.Get("/lots", h.apiListLots)
		r.Post("/lots", h.apiStartLot)
		r.Post("/lots/{id}/advance", h.apiAdvanceLot)
		r.Post("/lots/{id}/finish", h.apiFinishLot)
		r.Post("/lots/{id}/reject", h.apiRejectLot)

		r.Get("/occupancy", h.apiListOccupancy)
		r.Post("/occupancy", h.apiAssignOperator)
		r.Delete("/occupancy/{id}", h.apiReleaseOperator)

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.With(limit).Post("/import/preview", h.apiImportPreview)
			r.With(limit).Post("/import/commit", h.apiImportCommit)
			r.Get("/import/sessions/{id}", h.apiImportSession)
			r.Get("/import/log", h.apiImportLog)
			r.Delete("/orders/{id}", h.apiDeleteOrder)
			r.Put("/stations", h.apiSetStations)
			r.Post("/admin/password", h.apiChangePassword)
		})
	})

	return r, hub.Stop
}
