package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router: /health and /track are public, the
// rest of the surface lives under /api.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	if h.tracking != nil {
		r.Mount("/track", h.tracking.Routes())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/", h.CreateEvent)
			r.Get("/", h.ListEvents)
			r.Get("/{id}", h.GetEvent)
			r.Put("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Post("/{id}/registrations", h.RegisterAttendee)
			r.Get("/{id}/registrations", h.ListRegistrations)
			r.Post("/{id}/attendance", h.MarkAttendance)
		})

		r.Route("/attendees", func(r chi.Router) {
			r.Post("/", h.CreateAttendee)
			r.Get("/", h.ListAttendees)
			r.Get("/{id}", h.GetAttendee)
			r.Put("/{id}", h.UpdateAttendee)
			r.Delete("/{id}", h.DeleteAttendee)
			r.Get("/{id}/activity", h.AttendeeActivity)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Post("/", h.CreateTemplate)
			r.Get("/", h.ListTemplates)
			r.Get("/{id}", h.GetTemplate)
			r.Put("/{id}", h.UpdateTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", h.CreateCampaign)
			r.Get("/", h.ListCampaigns)
			r.Get("/{id}", h.GetCampaign)
			r.Put("/{id}", h.UpdateCampaign)
			r.Delete("/{id}", h.DeleteCampaign)
			r.Post("/{id}/schedule", h.ScheduleCampaign)
			r.Post("/{id}/cancel", h.CancelCampaign)
			r.Post("/{id}/send", h.SendCampaign)
			r.Get("/{id}/audience", h.PreviewAudience)
			r.Get("/{id}/stats", h.CampaignStats)
		})
	})

	return r
}
