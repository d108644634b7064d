package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/habits", func(r chi.Router) {
			r.Get("/", h.ListHabits)
			r.Post("/", h.CreateHabit)
			r.Get("/by-category", h.HabitsByCategory)
			r.Put("/{id}", h.UpdateHabit)
			r.Delete("/{id}", h.DeleteHabit)
			r.Put("/{id}/toggle", h.ToggleCompletion)
			r.Get("/{id}/stats", h.HabitStats)
		})

		r.Route("/journals", func(r chi.Router) {
			r.Get("/", h.ListJournalEntries)
			r.Post("/", h.CreateJournalEntry)
			r.Put("/{id}", h.UpdateJournalEntry)
			r.Delete("/{id}", h.DeleteJournalEntry)
			r.Put("/{id}/reflection", h.SaveReflection)
		})

		r.Post("/reflect", h.Reflect)
		r.Get("/current-date", h.CurrentDate)
		r.Put("/current-date", h.SetCurrentDate)
	})

	return r
}
