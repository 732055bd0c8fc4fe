package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func SetupRoutes(handler *Handler) *chi.Mux {
	r := chi.NewRouter()

	for _, middleware := range SetupMiddleware() {
		r.Use(middleware)
	}

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.With(ShortRequests()).Get("/health", handler.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(ShortRequests()).Get("/migrations", handler.GetMigrations)

		r.Route("/experiments", func(r chi.Router) {
			r.Use(SerializeRuns())
			r.Post("/parallel", handler.RunParallel)
			r.Post("/conflict", handler.RunConflict)
		})
	})

	return r
}
